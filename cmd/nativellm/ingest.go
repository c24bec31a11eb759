package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/peakyragnar/NativeLLM/pkg/core/edgar"
	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
	"github.com/peakyragnar/NativeLLM/pkg/core/fetch"
	"github.com/peakyragnar/NativeLLM/pkg/core/fiscal"
	"github.com/peakyragnar/NativeLLM/pkg/core/pipeline"
	"github.com/peakyragnar/NativeLLM/pkg/core/storage"
)

var (
	ingestTickers     []string
	ingestTickerList  []string
	ingestTickersFile string
	ingestFilingTypes []string
	ingestStartYear   int
	ingestEndYear     int
	ingestLimit       int
	ingestWorkers     int
	ingestSkipUpload  bool
	ingestEmail       string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Download and process filings for one or more tickers",
	RunE: func(cmd *cobra.Command, args []string) error {
		tickers, err := resolveTickers()
		if err != nil {
			return err
		}

		workers := ingestWorkers
		if workers == 0 {
			workers = cfg.Pipeline.Workers
		}
		if err := pipeline.ValidateWorkers(workers); err != nil {
			return err
		}

		sec := cfg.SEC
		if ingestEmail != "" {
			sec.Email = ingestEmail
		}
		fetcher, err := fetch.NewClient(sec.UserAgent())
		if err != nil {
			return err
		}

		registry := fiscal.NewRegistry()
		if cfg.Fiscal.OverridesFile != "" {
			if err := registry.LoadOverrides(cfg.Fiscal.OverridesFile); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sink, cleanup, err := openSink(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		orch := pipeline.NewOrchestrator(edgar.NewClient(fetcher), fetcher, fiscal.NewAttributor(registry), sink)
		if cfg.Pipeline.TimeoutSecs > 0 {
			orch.FilingTimeout = time.Duration(cfg.Pipeline.TimeoutSecs) * time.Second
		}
		if cfg.Database.URL != "" {
			pg, err := storage.NewPGMetadata(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer pg.Close()
			orch = orch.WithPGMetadata(pg)
		}

		req := edgar.ListRequest{
			FilingTypes: ingestFilingTypes,
			StartYear:   ingestStartYear,
			EndYear:     ingestEndYear,
			Limit:       ingestLimit,
		}
		report := pipeline.NewSupervisor(orch, workers).Run(ctx, tickers, req)

		dir, err := pipeline.WriteReport(cfg.Storage.ReportDir, report)
		if err != nil {
			zap.L().Error("report write failed", zap.Error(err))
		} else {
			fmt.Printf("report: %s\n", dir)
		}

		succeeded, skipped, warned, failed := report.Counts()
		fmt.Printf("filings: %d succeeded, %d skipped, %d with warnings, %d failed\n",
			succeeded, skipped, warned, failed)
		// Processing failures are recorded in the report; only
		// configuration problems exit nonzero.
		return nil
	},
}

// resolveTickers merges --ticker flags with the optional --tickers-file list.
func resolveTickers() ([]string, error) {
	tickers := append([]string(nil), ingestTickers...)
	tickers = append(tickers, ingestTickerList...)
	if ingestTickersFile != "" {
		data, err := os.ReadFile(ingestTickersFile)
		if err != nil {
			return nil, errs.Wrap(errs.KindConfig, eris.Wrapf(err, "read tickers file %s", ingestTickersFile))
		}
		var batch struct {
			Tickers []string `yaml:"tickers"`
		}
		if err := yaml.Unmarshal(data, &batch); err != nil {
			return nil, errs.Wrap(errs.KindConfig, eris.Wrapf(err, "parse tickers file %s", ingestTickersFile))
		}
		tickers = append(tickers, batch.Tickers...)
	}

	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, errs.New(errs.KindConfig, "no tickers given: use --ticker or --tickers-file")
	}
	return out, nil
}

// openSink picks the artifact sink from config; --skip-upload forces local.
func openSink(ctx context.Context) (storage.Sink, func(), error) {
	if ingestSkipUpload || cfg.Storage.Driver != "gcs" {
		sink, err := storage.NewLocalSink(cfg.Storage.LocalDir)
		if err != nil {
			return nil, nil, err
		}
		return sink, func() {}, nil
	}

	sink, err := storage.NewGCSSink(ctx, storage.GCSConfig{
		Bucket:          cfg.Storage.Bucket,
		ProjectID:       cfg.Storage.ProjectID,
		Collection:      cfg.Storage.Collection,
		CredentialsFile: cfg.Storage.CredentialsFile,
	})
	if err != nil {
		return nil, nil, err
	}
	return sink, func() { _ = sink.Close() }, nil
}

func init() {
	ingestCmd.Flags().StringArrayVar(&ingestTickers, "ticker", nil, "ticker symbol (repeatable)")
	ingestCmd.Flags().StringSliceVar(&ingestTickerList, "tickers", nil, "comma-separated ticker symbols")
	ingestCmd.Flags().StringVar(&ingestTickersFile, "tickers-file", "", "YAML file with a tickers: list")
	ingestCmd.Flags().StringArrayVar(&ingestFilingTypes, "filing-type", []string{"10-K", "10-Q"}, "filing form type (repeatable)")
	ingestCmd.Flags().IntVar(&ingestStartYear, "start-year", 0, "earliest filing year, inclusive")
	ingestCmd.Flags().IntVar(&ingestEndYear, "end-year", 0, "latest filing year, inclusive")
	ingestCmd.Flags().IntVar(&ingestLimit, "limit", 0, "max filings per ticker, newest first")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "concurrent ticker workers, 1 to 5")
	ingestCmd.Flags().BoolVar(&ingestSkipUpload, "skip-upload", false, "write to local disk even when gcs is configured")
	ingestCmd.Flags().StringVar(&ingestEmail, "email", "", "SEC contact email override")
	rootCmd.AddCommand(ingestCmd)
}
