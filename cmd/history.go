package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/blockcheck/internal/domains"
	"github.com/sells-group/blockcheck/internal/model"
	"github.com/sells-group/blockcheck/internal/report"
	"github.com/sells-group/blockcheck/internal/store"
)

var (
	historyDomain string
	historyStatus string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show stored check results",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		filter, err := historyFilter(historyDomain, historyStatus, historyLimit)
		if err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		if st == nil {
			return eris.New("history needs a store (store.driver is none)")
		}
		defer st.Close() //nolint:errcheck

		results, err := st.ListResults(ctx, filter)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No results.")
			return nil
		}
		report.Table(cmd.OutOrStdout(), results, cfg.Report.Location())
		return nil
	},
}

// historyFilter validates the history flags into a store filter.
func historyFilter(domain, status string, limit int) (store.ResultFilter, error) {
	var f store.ResultFilter
	if domain != "" {
		d, err := domains.Normalize(domain)
		if err != nil {
			return f, err
		}
		f.Domain = d
	}
	if status != "" {
		s, err := model.ParseStatus(status)
		if err != nil {
			return f, err
		}
		f.Status = s
	}
	if limit < 0 {
		return f, eris.New("--limit must not be negative")
	}
	f.Limit = limit
	return f, nil
}

func init() {
	historyCmd.Flags().StringVar(&historyDomain, "domain", "", "only results for this domain")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "only results with this status (blocked, not_blocked, unknown, error)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", store.DefaultListLimit, "maximum rows")
	rootCmd.AddCommand(historyCmd)
}
