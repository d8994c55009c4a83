package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/gazetteer/internal/paths"
	"github.com/mesh-intelligence/gazetteer/pkg/sqlite"
	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

type initOptions struct {
	authority      int
	variant        string
	bilingual      bool
	secondLanguage string
	user           string
}

func newInitCmd() *cobra.Command {
	var opts initOptions
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize gazetteer storage",
		Long: "Create the configuration and data directories, write config.yaml when it\n" +
			"is missing and seed the reference tables. An existing config.yaml wins\n" +
			"over the authority flags.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.authority, "authority", 0, "local authority code")
	cmd.Flags().StringVar(&opts.variant, "variant", string(types.VariantStandard), "authority variant (standard or scottish)")
	cmd.Flags().BoolVar(&opts.bilingual, "bilingual", false, "maintain a second language for every LPI")
	cmd.Flags().StringVar(&opts.secondLanguage, "second-language", "", "second language code (CYM or GAE)")
	cmd.Flags().StringVar(&opts.user, "user", "", "user name stamped on saved records")
	return cmd
}

func runInit(cmd *cobra.Command, opts initOptions) error {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return sysError(fmt.Errorf("create config directory: %w", err))
	}

	want := types.Config{
		Backend:           types.BackendSQLite,
		DataDir:           flags.dataDir,
		User:              opts.user,
		BilingualSourceID: types.DefaultBilingualSourceID,
		Authority: types.AuthorityConfig{
			Code:           opts.authority,
			Variant:        types.Variant(opts.variant),
			Bilingual:      opts.bilingual,
			SecondLanguage: opts.secondLanguage,
		},
	}
	if err := want.Validate(); err != nil {
		return userError(fmt.Errorf("init: %w", err))
	}
	path := paths.ConfigFile(configDir)
	written, err := writeConfigIfMissing(path, want)
	if err != nil {
		return sysError(fmt.Errorf("write config: %w", err))
	}

	s, err := resolveSettings()
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return sysError(err)
	}
	defer log.Sync()

	store := sqlite.NewBackend(log)
	if err := store.Attach(s.config); err != nil {
		return sysError(fmt.Errorf("initialize storage: %w", err))
	}
	if err := store.Detach(); err != nil {
		return sysError(fmt.Errorf("finalize storage: %w", err))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Gazetteer initialized successfully")
	if !written {
		fmt.Fprintln(out, "  using existing", path)
	}
	fmt.Fprintln(out, "  config:", configDir)
	fmt.Fprintln(out, "  data:  ", s.config.DataDir)
	return nil
}
