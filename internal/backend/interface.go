// Package backend builds the configured record store.
package backend

import (
	"context"

	"salestracker/internal/records"
)

// CleanupFunc releases the resources behind a record store
type CleanupFunc func() error

// BackendResult contains the record store and an optional cleanup function
type BackendResult struct {
	Store   records.Store
	Cleanup CleanupFunc
}

// Factory creates record stores based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for record store creation
type Config struct {
	Type BackendType

	// Memory
	SeedFile string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// MongoDB
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
}

// BackendType represents the type of record store
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SheetsBackend BackendType = "sheets"
	MongoBackend  BackendType = "mongo"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SheetsBackend, MongoBackend:
		return true
	default:
		return false
	}
}
