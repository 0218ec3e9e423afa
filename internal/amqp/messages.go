package amqp

import (
	"encoding/json"
	"time"

	"salestracker/internal/core"
)

// SaleRecordedMessage announces a sale that reached the record store.
type SaleRecordedMessage struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	CashCents   int64     `json:"cashCents"`
	OnlineCents int64     `json:"onlineCents"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewSaleRecordedMessage(rec core.SalesRecord) *SaleRecordedMessage {
	return &SaleRecordedMessage{
		ID:          rec.ID,
		Date:        rec.Date.String(),
		CashCents:   rec.Cash.Cents,
		OnlineCents: rec.Online.Cents,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SaleRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SaleRecordedMessageFromJSON(data []byte) (*SaleRecordedMessage, error) {
	var msg SaleRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// FlushRequestMessage asks a worker to flush the pending queue.
// It carries no payload; the queue itself is the source of truth.
type FlushRequestMessage struct {
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewFlushRequestMessage(reason string) *FlushRequestMessage {
	return &FlushRequestMessage{Reason: reason, Timestamp: time.Now()}
}

// ToJSON converts the message to JSON bytes
func (m *FlushRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func FlushRequestMessageFromJSON(data []byte) (*FlushRequestMessage, error) {
	var msg FlushRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
