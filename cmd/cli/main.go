package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/sie-import/internal/aggregate"
	"github.com/dvloznov/sie-import/internal/config"
	"github.com/dvloznov/sie-import/internal/domain"
	"github.com/dvloznov/sie-import/internal/gcsuploader"
	infraBQ "github.com/dvloznov/sie-import/internal/infra/bigquery"
	"github.com/dvloznov/sie-import/internal/logger"
	"github.com/dvloznov/sie-import/internal/pipeline"
	"github.com/dvloznov/sie-import/internal/sie"
	"github.com/dvloznov/sie-import/internal/stores"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "parse":
		runParse()
	case "aggregate":
		runAggregate()
	case "import":
		runImport()
	case "upload":
		runUpload()
	case "periods":
		runPeriods()
	case "run":
		runInspectRun()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("SIE import CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  parse      Summarise a local SIE file")
	fmt.Println("  aggregate  Print the monthly statement buckets of a local SIE file")
	fmt.Println("  import     Import a local file or gs:// URI into the configured store")
	fmt.Println("  upload     Upload a local SIE file to GCS")
	fmt.Println("  periods    List the stored periods of a tenant")
	fmt.Println("  run        Show an import run (BigQuery store only)")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
	fmt.Printf("\nSettings are read from .env, -config and %s_* environment variables.\n", config.EnvPrefix)
}

// setup loads configuration and returns a logger writing to stderr,
// so command output on stdout stays clean.
func setup(configFile string) (config.Config, zerolog.Logger) {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger.NewWithLevel(cfg.Log.Level)
}

func readSIE(log zerolog.Logger, path string) *sie.Result {
	f, err := os.Open(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open SIE file")
	}
	defer f.Close()

	res, err := sie.ParseReader(f)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read SIE file")
	}
	return res
}

func runParse() {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to local SIE file")
	accounts := fs.Bool("accounts", false, "Also list the chart of accounts")
	configFile := fs.String("config", "", "Config file")
	fs.Parse(os.Args[2:])

	_, log := setup(*configFile)
	if *filePath == "" {
		log.Fatal().Msg("Usage: cli parse -file PATH [-accounts]")
	}

	res := readSIE(log, *filePath)
	writeSummary(os.Stdout, res)
	if *accounts {
		fmt.Fprintf(os.Stdout, "\n=== Accounts (%d) ===\n", len(res.Accounts))
		writeAccounts(os.Stdout, res)
	}
}

func runAggregate() {
	fs := flag.NewFlagSet("aggregate", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to local SIE file")
	fiscalYear := fs.Int("fiscal-year", 0, "Fiscal year index (0 = current, -1 = previous)")
	configFile := fs.String("config", "", "Config file")
	fs.Parse(os.Args[2:])

	_, log := setup(*configFile)
	if *filePath == "" {
		log.Fatal().Msg("Usage: cli aggregate -file PATH [-fiscal-year N]")
	}

	res := readSIE(log, *filePath)
	if _, ok := res.FiscalYear(*fiscalYear); !ok {
		log.Fatal().Int("fiscal_year", *fiscalYear).Msg("Fiscal year is not declared in the file")
	}
	writePeriods(os.Stdout, aggregate.Aggregate(res, *fiscalYear))
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to local SIE file")
	gcsURI := fs.String("gcs-uri", "", "GCS URI of the SIE file (alternative to -file)")
	tenantID := fs.String("tenant", "", "Tenant ID")
	actorID := fs.String("actor", os.Getenv("USER"), "Actor recorded as importer")
	fiscalYear := fs.Int("fiscal-year", -100, "Fiscal year index (defaults to import.fiscal_year)")
	configFile := fs.String("config", "", "Config file")
	fs.Parse(os.Args[2:])

	cfg, log := setup(*configFile)
	if *tenantID == "" || (*filePath == "") == (*gcsURI == "") {
		log.Fatal().Msg("Usage: cli import -tenant ID (-file PATH | -gcs-uri gs://bucket/object) [-fiscal-year N]")
	}
	if *fiscalYear == -100 {
		*fiscalYear = cfg.Import.FiscalYear
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	backend, err := stores.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open period store")
	}
	defer backend.Close()

	req := pipeline.ImportRequest{
		TenantID:   *tenantID,
		ActorID:    *actorID,
		FiscalYear: *fiscalYear,
		GCSURI:     *gcsURI,
	}

	var storage pipeline.StorageService
	if *filePath != "" {
		data, err := os.ReadFile(*filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read SIE file")
		}
		req.File = data
		req.Filename = *filePath
	} else {
		gcs, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS client")
		}
		defer gcs.Close()
		storage = gcs
	}

	outcome, err := pipeline.ImportSIEFromGCSWithDeps(ctx, req, backend.Deps(storage))
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	writeOutcome(os.Stdout, outcome)
	if outcome.Status != domain.ImportStatusSuccess {
		os.Exit(2)
	}
}

func runUpload() {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to local SIE file")
	tenantID := fs.String("tenant", "", "Tenant ID used in the object name")
	bucketName := fs.String("bucket", "", "GCS bucket name (defaults to gcs.bucket)")
	objectName := fs.String("object", "", "GCS object name (defaults to sie/<tenant>/<uuid>-<filename>)")
	configFile := fs.String("config", "", "Config file")
	fs.Parse(os.Args[2:])

	cfg, log := setup(*configFile)
	if *bucketName == "" {
		*bucketName = cfg.GCS.Bucket
	}
	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -file PATH -tenant ID [-bucket NAME] [-object NAME]")
	}
	if *objectName == "" {
		if *tenantID == "" {
			log.Fatal().Msg("Either -object or -tenant is required")
		}
		*objectName = gcsuploader.ObjectNameFor(*tenantID, *filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := gcsuploader.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Println(gcsuploader.BuildGCSURI(*bucketName, *objectName))
}

func runPeriods() {
	fs := flag.NewFlagSet("periods", flag.ExitOnError)
	tenantID := fs.String("tenant", "", "Tenant ID")
	configFile := fs.String("config", "", "Config file")
	fs.Parse(os.Args[2:])

	cfg, log := setup(*configFile)
	if *tenantID == "" {
		log.Fatal().Msg("Usage: cli periods -tenant ID")
	}

	ctx := logger.WithContext(context.Background(), log)

	backend, err := stores.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open period store")
	}
	defer backend.Close()

	periods, err := backend.Periods.ListFinancialPeriods(ctx, *tenantID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list periods")
	}
	writeStoredPeriods(os.Stdout, periods)
}

func runInspectRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	runID := fs.String("id", "", "Import run ID")
	configFile := fs.String("config", "", "Config file")
	fs.Parse(os.Args[2:])

	cfg, log := setup(*configFile)
	if *runID == "" {
		log.Fatal().Msg("Usage: cli run -id IMPORT_RUN_ID")
	}
	if err := cfg.RequireBigQuery(); err != nil {
		log.Fatal().Err(err).Msg("Import runs are only recorded in BigQuery")
	}

	ctx := logger.WithContext(context.Background(), log)

	repo, err := infraBQ.NewRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	run, err := repo.GetImportRun(ctx, *runID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read import run")
	}
	if run == nil {
		log.Fatal().Str("import_run_id", *runID).Msg("Import run not found")
	}

	fmt.Println("\n=== Import Run ===")
	fmt.Printf("ID:         %s\n", run.ImportRunID)
	fmt.Printf("Tenant:     %s\n", run.TenantID)
	fmt.Printf("Actor:      %s\n", run.ActorID)
	fmt.Printf("Source:     %s\n", run.SourceURI)
	fmt.Printf("Fiscal yr:  %d\n", run.FiscalYear)
	fmt.Printf("Started:    %s\n", run.StartedTS.Format(time.RFC3339))
	if run.FinishedTS.Valid {
		fmt.Printf("Finished:   %s\n", run.FinishedTS.Timestamp.Format(time.RFC3339))
	}
	fmt.Printf("Status:     %s\n", run.Status)
	fmt.Printf("Periods:    %d\n", run.PeriodsImported)
	if msg := strings.TrimSpace(run.ErrorMessage); msg != "" {
		fmt.Printf("Errors:     %s\n", msg)
	}
	fmt.Println()
}
