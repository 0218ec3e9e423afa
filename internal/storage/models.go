package storage

// PendingSale is a row of the pending_sales table.
type PendingSale struct {
	ID          int64
	Date        string
	CashCents   int64
	OnlineCents int64
	Notes       string
	Synced      int64
	CreatedAt   string
}
