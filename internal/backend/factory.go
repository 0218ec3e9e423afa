package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"salestracker/internal/records/google"
	"salestracker/internal/records/memory"
	"salestracker/internal/records/mongo"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		return f.createMemoryBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MongoBackend:
		return f.createMongoBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	if config.SeedFile == "" {
		f.logger.Info("Initialized memory record store")
		return &BackendResult{Store: memory.New()}, nil
	}

	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory record store: %w", err)
	}
	f.logger.Info("Initialized memory record store", "seed_file", config.SeedFile, "records", store.Len())
	return &BackendResult{Store: store}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := google.New(ctx, google.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	if err := cli.EnsureHeader(ctx); err != nil {
		// the sheet may be unreachable right now; the app still starts offline
		f.logger.Warn("Could not verify sheet header", "error", err)
	}

	f.logger.Info("Initialized Google Sheets record store", "sheet", config.GoogleSheetName)
	return &BackendResult{Store: cli}, nil
}

func (f *DefaultFactory) createMongoBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := mongo.New(ctx, mongo.Options{
		URI:        config.MongoURI,
		Database:   config.MongoDatabase,
		Collection: config.MongoCollection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mongo record store: %w", err)
	}

	f.logger.Info("Initialized MongoDB record store", "database", config.MongoDatabase)
	return &BackendResult{
		Store: store,
		Cleanup: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return store.Close(ctx)
		},
	}, nil
}
