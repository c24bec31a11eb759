package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

var (
	reportRun  string
	reportList bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show a past ingest run report",
	RunE: func(cmd *cobra.Command, args []string) error {
		runsDir := filepath.Join(cfg.Storage.ReportDir, "runs")
		entries, err := os.ReadDir(runsDir)
		if err != nil {
			return errs.New(errs.KindNotFound, "no runs found under %s", runsDir)
		}
		var runs []string
		for _, e := range entries {
			if e.IsDir() {
				runs = append(runs, e.Name())
			}
		}
		if len(runs) == 0 {
			return errs.New(errs.KindNotFound, "no runs found under %s", runsDir)
		}
		sort.Strings(runs)

		if reportList {
			for _, r := range runs {
				fmt.Println(r)
			}
			return nil
		}

		run := reportRun
		if run == "" {
			run = runs[len(runs)-1]
		}
		md, err := os.ReadFile(filepath.Join(runsDir, run, "report.md"))
		if err != nil {
			return errs.New(errs.KindNotFound, "no report for run %s", run)
		}
		fmt.Print(string(md))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportRun, "run", "", "run timestamp, defaults to the latest")
	reportCmd.Flags().BoolVar(&reportList, "list", false, "list run timestamps instead of printing a report")
	rootCmd.AddCommand(reportCmd)
}
