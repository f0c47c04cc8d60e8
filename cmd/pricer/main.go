package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pricer/internal"
	"pricer/internal/config"
	"pricer/internal/connectors"
	gmailconnector "pricer/internal/connectors/gmail"
	imapconnector "pricer/internal/connectors/imap"
	"pricer/internal/listener"
	"pricer/internal/pipeline"
	"pricer/internal/pricing"
	"pricer/internal/storage"
	"pricer/internal/util"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	client := pricing.NewClient(cfg, pricing.NewMetrics())

	cmd := os.Args[1]
	switch cmd {
	case "price":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input file path")
		inType := fs.String("type", "", "xlsx|csv|html|pdf (default: by extension)")
		sheet := fs.String("sheet", "", "sheet name for multi-sheet workbooks")
		tolerance := fs.Int("tolerance", cfg.DefaultTolerance, "price tolerance percent")
		mapping := fs.String("map", "", "manual field mapping, Field=Header pairs separated by ';'")
		outDir := fs.String("out", cfg.OutputDir, "output directory")
		withCSV := fs.Bool("csv", false, "also write the flat CSV export")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		runPrice(cfg, client, *input, *inType, *sheet, *tolerance, *mapping, *outDir, *withCSV)

	case "price:items":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "text file with one item description per line")
		tolerance := fs.Int("tolerance", cfg.DefaultTolerance, "price tolerance percent")
		_ = fs.Parse(os.Args[2:])
		descriptions := fs.Args()
		if strings.TrimSpace(*file) != "" {
			lines, err := readLines(*file)
			must(err)
			descriptions = append(descriptions, lines...)
		}
		if len(descriptions) == 0 {
			must(fmt.Errorf("no descriptions given (args or --file)"))
		}
		records, err := client.PriceDescriptions(context.Background(), descriptions, *tolerance)
		must(err)
		for _, r := range pipeline.ClassifyRecords(records) {
			fmt.Printf("%d\t%s\t%s\t%s\t%s\n",
				r.ItemNumber, r.Description, r.StatusLabel,
				util.NormalizeSource(r.Source, r.Tier), util.Display(r.AdjustedPrice))
		}

	case "jobs:ingest":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "local file to register as a job")
		tolerance := fs.Int("tolerance", internal.ToleranceUnset, "price tolerance percent (omit to use the configured default)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		intake := connectors.NewIntakeService(db, cfg.RawFileDir)
		job, err := intake.StoreFile(*input, *tolerance)
		must(err)
		fmt.Printf("job stored id=%d file=%s kind=%s\n", job.ID, job.Filename, job.Kind)

	case "jobs:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		jobID := fs.Int("jobId", 0, "specific job id")
		origin := fs.String("origin", "", "filter by origin (gmail|imap|local)")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessingService(db, cfg, client)
		if *jobID != 0 {
			outcome, err := processor.ProcessByID(context.Background(), *jobID)
			must(err)
			fmt.Printf("job %d -> %s priced=%d\n", outcome.JobID, outcome.Status, outcome.Priced)
			return
		}
		processedJobs, pricedRows, err := processor.ProcessPending(context.Background(), *batch, *origin)
		must(err)
		fmt.Printf("processed jobs=%d priced=%d\n", processedJobs, pricedRows)

	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		jobID := fs.Int("jobId", 0, "job id")
		outDir := fs.String("out", cfg.OutputDir, "output directory")
		_ = fs.Parse(os.Args[2:])
		if *jobID == 0 {
			must(fmt.Errorf("--jobId is required"))
		}
		processor := pipeline.NewProcessingService(db, cfg, client)
		path, err := processor.ExportJob(context.Background(), *jobID, *outDir)
		must(err)
		fmt.Printf("exported %s\n", path)

	case "export:csv":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		jobID := fs.Int("jobId", 0, "job id")
		outDir := fs.String("out", cfg.OutputDir, "output directory")
		_ = fs.Parse(os.Args[2:])
		if *jobID == 0 {
			must(fmt.Errorf("--jobId is required"))
		}
		processor := pipeline.NewProcessingService(db, cfg, client)
		path, err := processor.ExportJobCSV(*jobID, *outDir)
		must(err)
		fmt.Printf("exported %s\n", path)

	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", cfg.MailListenerFetchMax, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawFileDir, conn)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d jobs=%d\n", *provider, result.Fetched, result.Jobs)

	case "mail:listen":
		s := listener.NewService(db, cfg, client)
		must(s.Run(context.Background()))

	default:
		usage()
		os.Exit(1)
	}
}

func runPrice(cfg config.Config, client *pricing.Client, input, inType, sheet string, tolerance int, mappingFlag, outDir string, withCSV bool) {
	content, err := os.ReadFile(input)
	must(err)

	kind := pipeline.KindFromFilename(input)
	if strings.TrimSpace(inType) != "" {
		kind = internal.InputKind(strings.ToLower(inType))
	}

	p := pipeline.NewPipeline(client, cfg)
	ctx := context.Background()
	must(p.Submit(ctx, filepath.Base(input), content, kind, tolerance))

	if p.State() == pipeline.StateSheetSelectionPending {
		if strings.TrimSpace(sheet) == "" {
			must(fmt.Errorf("workbook has multiple sheets, pick one with --sheet: %s", strings.Join(p.Sheets(), ", ")))
		}
		must(p.ChooseSheet(ctx, sheet))
	}

	if p.State() == pipeline.StateFieldMappingPending {
		manual, err := parseMappingFlag(mappingFlag)
		must(err)
		if len(manual) == 0 {
			must(fmt.Errorf("required fields unmapped: %s (headers: %s), supply --map",
				strings.Join(p.MissingFields(), ", "), strings.Join(p.AvailableHeaders(), ", ")))
		}
		must(p.ApplyMapping(ctx, manual))
	}

	if p.State() != pipeline.StateResultsReady {
		must(fmt.Errorf("pricing did not complete (state %s): %v", p.State(), p.Err()))
	}

	outputPath := filepath.Join(outDir, pipeline.PricedFilename(input))
	must(p.ExportReconciled(ctx, outputPath))
	fmt.Printf("priced %d rows -> %s\n", len(p.Results()), outputPath)

	if withCSV {
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		csvPath := filepath.Join(outDir, base+"_results.csv")
		must(pipeline.ExportResultsCSV(p.Results(), csvPath))
		fmt.Printf("wrote %s\n", csvPath)
	}
}

// parseMappingFlag reads "Description=Item Desc;QTY=Count" style pairs.
func parseMappingFlag(value string) (internal.FieldMapping, error) {
	mapping := internal.FieldMapping{}
	if strings.TrimSpace(value) == "" {
		return mapping, nil
	}
	for _, pair := range strings.Split(value, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		field, header, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("bad mapping entry %q, want Field=Header", pair)
		}
		mapping[strings.TrimSpace(field)] = strings.TrimSpace(header)
	}
	return mapping, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}

func usage() {
	fmt.Println(`usage: pricer <command> [flags]

commands:
  price         price one spreadsheet and write the reconciled workbook
  price:items   price ad-hoc item descriptions
  jobs:ingest   register a local file as a stored job
  jobs:process  price stored jobs
  export:xlsx   export a priced job as a workbook
  export:csv    export a priced job as CSV
  mail:fetch    fetch intake mail and store attachment jobs
  mail:listen   run the unattended fetch/price/export loop`)
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
