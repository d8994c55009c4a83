package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

func newPropertyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "property",
		Aliases: []string{"prop"},
		Short:   "Show, create and edit properties",
	}
	cmd.AddCommand(newPropertyShowCmd())
	cmd.AddCommand(newPropertyNewCmd())
	cmd.AddCommand(newPropertyEditLPICmd())
	cmd.AddCommand(newPropertyStatusCmd())
	cmd.AddCommand(newPropertyGeometryCmd())
	cmd.AddCommand(newPropertyDeleteCmd())
	cmd.AddCommand(newPropertyDeleteRecordCmd())
	return cmd
}

func parseUPRN(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, userError(fmt.Errorf("invalid UPRN %q", s))
	}
	return n, nil
}

func newPropertyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <uprn>",
		Short: "Display a property with its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uprn, err := parseUPRN(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			p, err := sess.store.Fetch(ctx, uprn)
			if err != nil {
				if errors.Is(err, types.ErrNotFound) {
					return userError(fmt.Errorf("property %d not found", uprn))
				}
				return sysError(err)
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), p)
			}
			printProperty(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

const dateLayout = "2006-01-02"

func printProperty(w io.Writer, p types.Property) {
	fmt.Fprintf(w, "UPRN:        %d\n", p.UPRN)
	fmt.Fprintf(w, "Status:      %d\n", p.LogicalStatus)
	fmt.Fprintf(w, "Variant:     %s\n", p.Variant())
	if p.ParentUPRN != 0 {
		fmt.Fprintf(w, "Parent:      %d\n", p.ParentUPRN)
	}
	fmt.Fprintf(w, "Children:    %d\n", p.ChildCount)
	fmt.Fprintf(w, "Coordinates: %.2f, %.2f\n", p.XCoordinate, p.YCoordinate)
	fmt.Fprintf(w, "Start:       %s\n", p.StartDate.Format(dateLayout))
	if !p.EndDate.IsZero() {
		fmt.Fprintf(w, "End:         %s\n", p.EndDate.Format(dateLayout))
	}

	if lpis := p.LPIs.All(); len(lpis) > 0 {
		fmt.Fprintln(w, "\nLPIs:")
		for _, l := range lpis {
			fmt.Fprintf(w, "  [%d] %s %s  status %d  %s\n", l.PKID, l.Language, l.LPIKey, l.LogicalStatus, l.Address)
		}
	}
	if prs := p.Provenances.All(); len(prs) > 0 {
		fmt.Fprintln(w, "\nProvenances:")
		for _, pr := range prs {
			fmt.Fprintf(w, "  [%d] %s %s\n", pr.PKID, pr.ProvenanceCode, pr.WKTGeometry)
		}
	}
	if xs := p.CrossRefs.All(); len(xs) > 0 {
		fmt.Fprintln(w, "\nCross references:")
		for _, x := range xs {
			fmt.Fprintf(w, "  [%d] %s %s\n", x.PKID, x.SourceID, x.CrossReference)
		}
	}
	if s := p.Scottish; s != nil {
		for _, c := range s.Classifications.All() {
			fmt.Fprintf(w, "  class [%d] %s %s\n", c.PKID, c.ClassScheme, c.BLPUClass)
		}
		for _, o := range s.Organisations.All() {
			fmt.Fprintf(w, "  organisation [%d] %s\n", o.PKID, o.Organisation)
		}
		for _, sc := range s.SuccessorCrossRefs.All() {
			fmt.Fprintf(w, "  successor [%d] %d\n", sc.PKID, sc.Successor)
		}
	}
	if notes := p.Notes.All(); len(notes) > 0 {
		fmt.Fprintln(w, "\nNotes:")
		for _, n := range notes {
			fmt.Fprintf(w, "  [%d] %d: %s\n", n.PKID, n.SeqNo, n.Note)
		}
	}
}

type lpiOptions struct {
	usrn        int64
	paoNumber   int
	pao         string
	secondPAO   string
	postcodeRef int
	postTownRef int
}

func (o lpiOptions) apply(cmd *cobra.Command, l types.LPI) types.LPI {
	fs := cmd.Flags()
	if fs.Changed("usrn") {
		l.USRN = o.usrn
	}
	if fs.Changed("pao-number") {
		l.PAOStartNumber = o.paoNumber
	}
	if fs.Changed("postcode-ref") {
		l.PostcodeRef = o.postcodeRef
	}
	if fs.Changed("post-town-ref") {
		l.PostTownRef = o.postTownRef
	}
	switch {
	case l.Language == types.LanguageEnglish && fs.Changed("pao"):
		l.PAOText = o.pao
	case l.Language != types.LanguageEnglish && fs.Changed("second-pao"):
		l.PAOText = o.secondPAO
	case l.Language != types.LanguageEnglish && fs.Changed("pao") && l.PAOText == "":
		l.PAOText = o.pao
	}
	return l
}

func (o *lpiOptions) bind(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&o.usrn, "usrn", 0, "street reference")
	cmd.Flags().IntVar(&o.paoNumber, "pao-number", 0, "PAO start number")
	cmd.Flags().StringVar(&o.pao, "pao", "", "PAO text")
	cmd.Flags().StringVar(&o.secondPAO, "second-pao", "", "PAO text of the second-language LPI")
	cmd.Flags().IntVar(&o.postcodeRef, "postcode-ref", 0, "postcode lookup reference")
	cmd.Flags().IntVar(&o.postTownRef, "post-town-ref", 0, "post town lookup reference")
}

func newPropertyNewCmd() *cobra.Command {
	var (
		lpi        lpiOptions
		x, y       float64
		parent     int64
		provenance string
		geometry   string
		note       string
	)
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a property with its first LPI",
		Long: "Create a provisional property. Bilingual authorities get an LPI pair\n" +
			"linked by a cross reference; --second-pao names the second-language PAO.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			f, v, err := sess.openForm(ctx, 0, nil)
			if err != nil {
				return err
			}
			f.SetBLPU(func(b *types.BLPU) {
				b.XCoordinate, b.YCoordinate = x, y
				b.ParentUPRN = parent
			})

			if _, err := f.OpenRecord(types.CollectionLPI, 0, 0, 0); err != nil {
				return sysError(err)
			}
			for _, key := range f.Property().LPIs.Keys() {
				l, _ := f.Property().LPIs.Get(key)
				if _, err := f.ApplyEdit(ctx, lpi.apply(cmd, l)); err != nil {
					return sysError(err)
				}
			}

			if provenance != "" {
				rec, err := f.OpenRecord(types.CollectionProvenance, 0, 0, 0)
				if err != nil {
					return sysError(err)
				}
				pr := rec.(types.Provenance)
				pr.ProvenanceCode, pr.WKTGeometry = provenance, geometry
				if _, err := f.ApplyEdit(ctx, pr); err != nil {
					return sysError(err)
				}
			}
			if note != "" {
				rec, err := f.OpenRecord(types.CollectionNote, 0, 0, 0)
				if err != nil {
					return sysError(err)
				}
				n := rec.(types.Note)
				n.Note = note
				if _, err := f.ApplyEdit(ctx, n); err != nil {
					return sysError(err)
				}
			}

			p, err := f.Save(ctx)
			if err != nil {
				return saveError(v, err)
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created property %d\n", p.UPRN)
			return nil
		},
	}
	lpi.bind(cmd)
	cmd.Flags().Float64Var(&x, "x", 0, "easting")
	cmd.Flags().Float64Var(&y, "y", 0, "northing")
	cmd.Flags().Int64Var(&parent, "parent", 0, "parent UPRN")
	cmd.Flags().StringVar(&provenance, "provenance", "", "provenance code; adds a provenance record")
	cmd.Flags().StringVar(&geometry, "wkt", "", "provenance extent as WKT")
	cmd.Flags().StringVar(&note, "note", "", "adds a note")
	return cmd
}

func newPropertyEditLPICmd() *cobra.Command {
	var (
		lpi     lpiOptions
		cascade bool
	)
	cmd := &cobra.Command{
		Use:   "edit-lpi <uprn> <pkid>",
		Short: "Edit an LPI; shared fields are mirrored onto its bilingual partner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uprn, err := parseUPRN(args[0])
			if err != nil {
				return err
			}
			pkID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return userError(fmt.Errorf("invalid pkId %q", args[1]))
			}
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			f, v, err := sess.openForm(ctx, uprn, nil)
			if err != nil {
				return err
			}
			rec, err := f.OpenRecord(types.CollectionLPI, pkID, 0, 0)
			if err != nil {
				return userError(err)
			}
			if _, err := f.ApplyEdit(ctx, lpi.apply(cmd, rec.(types.LPI))); err != nil {
				return sysError(err)
			}

			save := f.Save
			if cascade {
				save = f.SaveCascade
			}
			p, err := save(ctx)
			if err != nil {
				return saveError(v, err)
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved property %d\n", p.UPRN)
			return nil
		},
	}
	lpi.bind(cmd)
	cmd.Flags().BoolVar(&cascade, "cascade", false, "copy the PAO onto child properties")
	return cmd
}

func newPropertyStatusCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "status <uprn> <code>",
		Short: "Change the logical status of a property",
		Long: "Change the logical status (1, 3, 6, 8 or 9). Historic (8) and rejected (9)\n" +
			"end-date the property and its records; making a property historic asks\n" +
			"for confirmation unless --yes is given.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uprn, err := parseUPRN(args[0])
			if err != nil {
				return err
			}
			code, err := strconv.Atoi(args[1])
			if err != nil {
				return userError(fmt.Errorf("invalid status %q", args[1]))
			}
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			f, v, err := sess.openForm(ctx, uprn, newPromptConfirmer(cmd, yes))
			if err != nil {
				return err
			}
			_, applied, err := f.ApplyStatus(ctx, code)
			if err != nil {
				if errors.Is(err, types.ErrInvalidStatus) {
					return userError(err)
				}
				return sysError(err)
			}
			if !applied {
				fmt.Fprintln(cmd.OutOrStdout(), "Status change cancelled")
				return nil
			}
			p, err := f.Save(ctx)
			if err != nil {
				return saveError(v, err)
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Property %d is now status %d\n", p.UPRN, p.LogicalStatus)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newPropertyGeometryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geometry <uprn> <provenance-pkid> <wkt>",
		Short: "Replace the extent of a provenance record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			uprn, err := parseUPRN(args[0])
			if err != nil {
				return err
			}
			pkID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return userError(fmt.Errorf("invalid pkId %q", args[1]))
			}
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			f, v, err := sess.openForm(ctx, uprn, nil)
			if err != nil {
				return err
			}
			changed, err := f.ReconcileGeometry(pkID, args[2])
			if err != nil {
				return userError(err)
			}
			if !changed {
				fmt.Fprintln(cmd.OutOrStdout(), "Geometry unchanged")
				return nil
			}
			p, err := f.Save(ctx)
			if err != nil {
				return saveError(v, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved property %d\n", p.UPRN)
			return nil
		},
	}
}

func newPropertyDeleteCmd() *cobra.Command {
	var cascade bool
	cmd := &cobra.Command{
		Use:   "delete <uprn>",
		Short: "Delete a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uprn, err := parseUPRN(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			f, _, err := sess.openForm(ctx, uprn, nil)
			if err != nil {
				return err
			}
			removed, err := f.DeleteProperty(ctx, cascade)
			if err != nil {
				if errors.Is(err, types.ErrHasChildren) {
					return userError(fmt.Errorf("%w; use --cascade to delete them too", err))
				}
				return sysError(err)
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), removed)
			}
			for _, u := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted property %d\n", u)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cascade, "cascade", false, "also delete child properties")
	return cmd
}

func newPropertyDeleteRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-record <uprn> <collection> <pkid>...",
		Short: "Delete child records of a property",
		Long: "Delete records from one collection (lpi, provenance, crossRef,\n" +
			"classification, organisation, successorCrossRef, note). Deleting one\n" +
			"LPI of a bilingual pair deletes its partner and their link.",
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			uprn, err := parseUPRN(args[0])
			if err != nil {
				return err
			}
			ct, err := types.ParseCollectionType(args[1])
			if err != nil {
				return userError(err)
			}
			ids := make([]int64, 0, len(args)-2)
			for _, a := range args[2:] {
				id, err := strconv.ParseInt(a, 10, 64)
				if err != nil {
					return userError(fmt.Errorf("invalid pkId %q", a))
				}
				ids = append(ids, id)
			}
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			f, v, err := sess.openForm(ctx, uprn, nil)
			if err != nil {
				return err
			}
			if _, err := f.DeleteRecords(ct, ids...); err != nil {
				return userError(err)
			}
			p, err := f.Save(ctx)
			if err != nil {
				return saveError(v, err)
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved property %d\n", p.UPRN)
			return nil
		},
	}
}
