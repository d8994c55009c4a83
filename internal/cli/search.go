package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <words>...",
		Short: "Find properties by address",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			hits := sess.search.Search(strings.Join(args, " "), limit)
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), hits)
			}
			for _, h := range hits {
				fmt.Fprintf(cmd.OutOrStdout(), "%d  %s  (status %d)\n", h.UPRN, h.Address, h.LogicalStatus)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results; 0 for all")
	return cmd
}
