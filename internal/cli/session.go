package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/gazetteer/internal/address"
	"github.com/mesh-intelligence/gazetteer/internal/factory"
	"github.com/mesh-intelligence/gazetteer/internal/form"
	"github.com/mesh-intelligence/gazetteer/internal/lookup"
	"github.com/mesh-intelligence/gazetteer/internal/search"
	"github.com/mesh-intelligence/gazetteer/internal/validation"
	"github.com/mesh-intelligence/gazetteer/pkg/sqlite"
	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// session is an attached store with its reference tables and search cache
// loaded. The caller must Close it.
type session struct {
	cfg     types.Config
	log     *zap.Logger
	store   types.Store
	lookups *lookup.Service
	search  *search.Cache
}

func openSession(ctx context.Context) (*session, error) {
	s, err := resolveSettings()
	if err != nil {
		return nil, err
	}
	log, err := newLogger()
	if err != nil {
		return nil, sysError(err)
	}

	store := sqlite.NewBackend(log)
	if err := store.Attach(s.config); err != nil {
		return nil, sysError(fmt.Errorf("attach store: %w", err))
	}
	sess := &session{cfg: s.config, log: log, store: store}

	sess.lookups, err = lookup.NewService(ctx, store, log)
	if err != nil {
		sess.Close()
		return nil, sysError(err)
	}
	summaries, err := store.ListSummaries(ctx)
	if err != nil {
		sess.Close()
		return nil, sysError(err)
	}
	sess.search = search.New(summaries...)
	return sess, nil
}

// Close detaches the store and flushes the logger.
func (s *session) Close() error {
	err := s.store.Detach()
	_ = s.log.Sync()
	return err
}

// formConfig wires a form to the session's collaborators.
func (s *session) formConfig(confirm types.Confirmer) form.Config {
	a := s.cfg.Authority
	return form.Config{
		Variant: a.EffectiveVariant(),
		Settings: factory.Settings{
			Bilingual:      a.Bilingual,
			SecondLanguage: a.SecondLanguage,
			User:           s.cfg.User,
		},
		BilingualSourceID: s.cfg.EffectiveBilingualSourceID(),
		Store:             s.store,
		Validator: validation.New(validation.Options{
			Bilingual:      a.Bilingual,
			SecondLanguage: a.SecondLanguage,
			Tables:         s.lookups.Table,
		}),
		Address:   address.NewRecomputer(address.NewTableFormatter(s.lookups.Table), types.LanguageEnglish, s.log),
		Confirmer: confirm,
		Search:    s.search,
		Log:       s.log,
	}
}

// openForm opens a form on uprn, mapping a missing property to a user error.
// The validator is returned so failed saves can list their field errors.
func (s *session) openForm(ctx context.Context, uprn int64, confirm types.Confirmer) (*form.Form, types.Validator, error) {
	cfg := s.formConfig(confirm)
	f, err := form.Open(ctx, cfg, uprn)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrWrongVariant) {
			return nil, nil, userError(err)
		}
		return nil, nil, sysError(err)
	}
	return f, cfg.Validator, nil
}

// saveError turns a failed save into a CLI error, listing field errors when
// validation failed.
func saveError(v types.Validator, err error) error {
	if !errors.Is(err, types.ErrValidationFailed) {
		if errors.Is(err, types.ErrNoChanges) || errors.Is(err, types.ErrPendingEdit) {
			return userError(err)
		}
		return sysError(err)
	}
	var msgs []string
	if all, ok := v.(interface{ All() []types.FieldError }); ok {
		for _, fe := range all.All() {
			msgs = append(msgs, describe(fe))
		}
	}
	if len(msgs) == 0 {
		return userError(err)
	}
	return userError(fmt.Errorf("%w:\n  %s", err, strings.Join(msgs, "\n  ")))
}

func describe(fe types.FieldError) string {
	if fe.Collection == "" {
		return fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return fmt.Sprintf("%s[%d].%s: %s", fe.Collection, fe.Index, fe.Field, fe.Message)
}

// promptConfirmer answers form confirmations from the command's input.
// With yes set every question is answered affirmatively.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
	yes bool
}

func newPromptConfirmer(cmd *cobra.Command, yes bool) *promptConfirmer {
	return &promptConfirmer{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.ErrOrStderr(), yes: yes}
}

// ConfirmLeave asks whether to save, then whether to cascade a PAO change.
func (c *promptConfirmer) ConfirmLeave(ctx context.Context, changed []string, cascade bool) (string, error) {
	if c.yes {
		if cascade {
			return types.OutcomeSaveCascade, nil
		}
		return types.OutcomeSave, nil
	}
	ok, err := c.ask(fmt.Sprintf("Unsaved changes to %s. Save?", strings.Join(changed, ", ")))
	if err != nil || !ok {
		return types.OutcomeDiscard, err
	}
	if !cascade {
		return types.OutcomeSave, nil
	}
	ok, err = c.ask("The PAO changed. Copy it to the child properties?")
	if err != nil {
		return types.OutcomeDiscard, err
	}
	if ok {
		return types.OutcomeSaveCascade, nil
	}
	return types.OutcomeSave, nil
}

// ConfirmHistoric asks before a property is made historic.
func (c *promptConfirmer) ConfirmHistoric(ctx context.Context) (string, error) {
	if c.yes {
		return types.OutcomeContinue, nil
	}
	ok, err := c.ask("Making the property historic end-dates all of its records. Continue?")
	if err != nil || !ok {
		return types.OutcomeCancel, err
	}
	return types.OutcomeContinue, nil
}

func (c *promptConfirmer) ask(question string) (bool, error) {
	fmt.Fprintf(c.out, "%s [y/N] ", question)
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("marshal JSON: %w", err))
	}
	fmt.Fprintln(w, string(out))
	return nil
}
