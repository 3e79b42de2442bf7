package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/clearledger/bankrecon-backend/internal/application/service"
	"github.com/clearledger/bankrecon-backend/internal/domain/masterdata"
	"github.com/clearledger/bankrecon-backend/internal/domain/statement"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/config"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/logging"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/storage"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		file       = flag.String("file", "", "Statement file to import")
		format     = flag.String("format", "", "Statement format: camt053, mt940 or csv")
		accountID  = flag.String("account", "", "Bank account identifier")
		runMatch   = flag.Bool("match", false, "Run matching after import")
		autoApply  = flag.Bool("auto-apply", false, "Auto-apply matches above the confidence minimum")
		reconcile  = flag.Bool("reconcile", false, "Reconcile balances after matching")
		tenant     = flag.String("tenant", "", "Tenant for open-item lookup")
	)
	flag.Parse()

	if *file == "" || *format == "" || *accountID == "" {
		fmt.Fprintln(os.Stderr, "usage: import -file <path> -format <camt053|mt940|csv> -account <id> [-match] [-auto-apply] [-reconcile]")
		os.Exit(2)
	}

	cfg := config.LoadOrEnvWithPath(*configFile)
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "import")

	raw, err := os.ReadFile(*file)
	if err != nil {
		logger.Error("failed to read statement file", "file", *file, "error", err)
		os.Exit(1)
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	importService := service.NewImportService(cfg, store, logger)
	rec, err := importService.Import(ctx, statement.Format(*format), raw, *accountID)
	if err != nil {
		logger.Error("import failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("imported statement %s: %d lines, %d skipped, closing balance %s %s\n",
		rec.ID, len(rec.Lines), len(rec.ParseErrors), rec.ClosingBalance.StringFixed(2), rec.Currency)
	for _, pe := range rec.ParseErrors {
		fmt.Printf("  skipped line %d: %s\n", pe.Line, pe.Reason)
	}

	if *runMatch {
		directory := masterdata.NewCachedDirectory(store, masterdata.CacheConfig{
			MaxEntries: cfg.Matching.CacheMaxEntries,
			TTL:        time.Duration(cfg.Matching.CacheTTLMinutes) * time.Minute,
		})
		matchService := service.NewMatchService(cfg, store, directory, logger)

		results, err := matchService.RunMatching(ctx, service.MatchRequest{
			StatementID: rec.ID,
			Tenant:      *tenant,
			AutoApply:   *autoApply,
		})
		if err != nil {
			logger.Error("matching failed", "error", err)
			os.Exit(1)
		}

		var applied int
		for _, r := range results {
			if r.AutoMatched {
				applied++
			}
		}
		fmt.Printf("matching: %d lines evaluated, %d auto-applied\n", len(results), applied)
		for _, r := range results {
			if best := r.Best(); best != nil && !r.Matched {
				fmt.Printf("  line %s: best candidate %s at %.2f (%s)\n",
					r.LineID, best.OpenItemID, best.Confidence, best.RuleName)
			}
		}
	}

	if *reconcile {
		reconService := service.NewReconService(cfg, store, nil, logger)
		result, err := reconService.Reconcile(ctx, rec.ID, false)
		if err != nil {
			logger.Error("reconciliation failed", "error", err)
			os.Exit(1)
		}

		verdict := "UNBALANCED"
		if result.IsBalanced {
			verdict = "BALANCED"
		}
		fmt.Printf("reconciliation: %s (bank %s, ledger %s, difference %s)\n",
			verdict, result.BankBalance.StringFixed(2), result.LedgerBalance.StringFixed(2),
			result.Difference.StringFixed(2))
		for _, d := range result.Differences {
			fmt.Printf("  [%s] %s\n", d.Kind, d.Description)
		}
	}
}
