package connectors

import (
	"pricer/internal/storage"
)

type FetchService struct {
	db        *storage.DB
	connector MailConnector
	intake    *IntakeService
}

type FetchResult struct {
	Fetched int
	Jobs    int
}

func NewFetchService(db *storage.DB, rawFileDir string, connector MailConnector) *FetchService {
	return &FetchService{
		db:        db,
		connector: connector,
		intake:    NewIntakeService(db, rawFileDir),
	}
}

func (s *FetchService) FetchAndStore(label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(label, max)
	if err != nil {
		return FetchResult{}, err
	}

	jobs := 0
	for _, msg := range messages {
		stored, err := s.intake.Store(msg)
		if err != nil {
			return FetchResult{}, err
		}
		jobs += len(stored)
	}

	return FetchResult{Fetched: len(messages), Jobs: jobs}, nil
}
