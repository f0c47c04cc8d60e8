package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"pricer/internal/config"
	"pricer/internal/connectors"
	gmailconnector "pricer/internal/connectors/gmail"
	imapconnector "pricer/internal/connectors/imap"
	"pricer/internal/pipeline"
	"pricer/internal/storage"
)

// Service is the unattended intake loop: fetch mail, price the stored
// jobs, export the priced ones. Each cycle is independent; an error in
// one cycle is logged and the next cycle starts fresh.
type Service struct {
	db     *storage.DB
	cfg    config.Config
	client pipeline.Pricer
}

func NewService(db *storage.DB, cfg config.Config, client pipeline.Pricer) *Service {
	return &Service{db: db, cfg: cfg, client: client}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(ctx); err != nil {
			fmt.Printf("listener cycle error: %v\n", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.MailListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.makeConnector(provider)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawFileDir, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return err
	}

	processor := pipeline.NewProcessingService(s.db, s.cfg, s.client)
	processedJobs, pricedRows, err := processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return err
	}

	exported := 0
	if s.cfg.MailListenerAutoExport {
		exported, err = s.exportPriced(ctx, processor, provider)
		if err != nil {
			return err
		}
	}

	fmt.Printf("listener cycle done provider=%s fetched=%d jobs=%d processed=%d priced=%d exported=%d\n",
		provider, fetchResult.Fetched, fetchResult.Jobs, processedJobs, pricedRows, exported)
	return nil
}

func (s *Service) exportPriced(ctx context.Context, processor *pipeline.ProcessingService, provider string) (int, error) {
	jobs, err := s.db.ListJobsByStatus(pipeline.JobStatusPriced, 200)
	if err != nil {
		return 0, err
	}

	exported := 0
	for _, job := range jobs {
		if job.Origin != provider {
			continue
		}
		outputDir := filepath.Join(s.cfg.OutputDir, "listener")
		if _, err := processor.ExportJob(ctx, job.ID, outputDir); err != nil {
			return exported, err
		}
		exported++
	}
	return exported, nil
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}
