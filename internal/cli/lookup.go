package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/gazetteer/internal/lookup"
	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

func newLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "List and extend reference tables",
	}
	cmd.AddCommand(newLookupListCmd())
	cmd.AddCommand(newLookupAddCmd())
	return cmd
}

func newLookupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <kind>",
		Short: "List the entries of a reference table",
		Long:  "List a reference table: postTown, postcode, subLocality, ward, parish,\nauthority or crossRefSource.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := types.ParseLookupKind(args[0])
			if err != nil {
				return userError(err)
			}
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			entries := sess.lookups.Table().List(kind)
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			for _, e := range entries {
				line := fmt.Sprintf("%4d  %s", e.Ref, e.Value)
				if e.Code != "" {
					line += "  (" + e.Code + ")"
				}
				if e.Language != "" {
					line += "  " + e.Language
				}
				if e.Historic {
					line += "  historic"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func newLookupAddCmd() *cobra.Command {
	var (
		code     string
		language string
		historic bool
	)
	cmd := &cobra.Command{
		Use:   "add <kind> <value>",
		Short: "Add an entry to a reference table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := types.ParseLookupKind(args[0])
			if err != nil {
				return userError(err)
			}
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			saved, err := sess.lookups.Add(ctx, types.LookupEntry{
				Kind:     kind,
				Value:    args[1],
				Code:     code,
				Language: language,
				Historic: historic,
			})
			if err != nil {
				if _, ok := lookup.FieldErrors(err); ok {
					return userError(err)
				}
				return sysError(err)
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), saved)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %d: %s\n", saved.Kind, saved.Ref, saved.Value)
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "external code (wards, parishes, authorities, cross reference sources)")
	cmd.Flags().StringVar(&language, "language", "", "language of the value")
	cmd.Flags().BoolVar(&historic, "historic", false, "mark the entry historic")
	return cmd
}
