package main

import (
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/blockcheck/internal/model"
	"github.com/sells-group/blockcheck/internal/report"
)

var (
	checkFile     string
	checkDomains  []string
	checkOutput   string
	checkNoNotify bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a domain list once and report the results",
	Long:  "Submits every domain to the checker page, prints one line per domain and sends the report to the configured notifiers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !report.ValidFormat(checkOutput) {
			return eris.Errorf("unknown output format %q (want text, table, json or yaml)", checkOutput)
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		list, err := loadDomains(checkFile, checkDomains)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		loc := cfg.Report.Location()
		opts := envOptions{noNotify: checkNoNotify}
		if checkOutput == report.FormatText {
			opts.onResult = streamLines(out, loc)
		}

		env, err := initEnv(ctx, "check", opts)
		if err != nil {
			return err
		}
		defer env.Close()

		rep, runErr := env.Runner.Run(ctx, list)
		if rep == nil {
			return runErr
		}
		if err := writeReport(out, rep, checkOutput, loc); err != nil {
			return err
		}
		if runErr != nil {
			return eris.Wrap(runErr, "check")
		}

		zap.L().Info("check complete",
			zap.String("run_id", rep.RunID),
			zap.Int("domains", len(rep.Results)),
			zap.Int("changes", len(rep.Changes)),
			zap.Duration("elapsed", rep.Duration()),
		)
		return nil
	},
}

// streamLines prints each result as soon as it is known.
func streamLines(w io.Writer, loc *time.Location) func(model.Result) {
	return func(r model.Result) {
		fmt.Fprintln(w, report.Line(r, loc))
	}
}

// writeReport prints the finished report. Text output has already been
// streamed line by line, so only the summary is left.
func writeReport(w io.Writer, rep *model.Report, format string, loc *time.Location) error {
	if format == report.FormatText {
		_, err := fmt.Fprintln(w, report.Summary(rep))
		return err
	}
	return report.Write(w, rep, format, loc)
}

func init() {
	checkCmd.Flags().StringVarP(&checkFile, "file", "f", "", "domain list file (default input.file)")
	checkCmd.Flags().StringSliceVarP(&checkDomains, "domain", "d", nil, "domain to check (repeatable, comma separated)")
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", report.FormatText, "output format: text, table, json, yaml")
	checkCmd.Flags().BoolVar(&checkNoNotify, "no-notify", false, "do not send the report to notifiers")
	rootCmd.AddCommand(checkCmd)
}
