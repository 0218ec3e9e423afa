//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"salestracker/internal/core"
)

func TestSheetsInsertAndList(t *testing.T) {
	id := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if id == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := New(ctx, Options{
		SpreadsheetID:   id,
		SheetName:       os.Getenv("GOOGLE_SALES_SHEET_NAME"),
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatalf("ensure header: %v", err)
	}

	rec := core.SalesRecord{Date: core.DateOf(time.Now()), Cash: core.Money{Cents: 123}, Notes: "integration"}
	newID, err := c.Insert(ctx, rec)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	all, err := c.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, r := range all {
		if r.ID == newID {
			return
		}
	}
	t.Fatalf("inserted row %s not found", newID)
}
