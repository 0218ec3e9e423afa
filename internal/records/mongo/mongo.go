// Package mongo stores sales records in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"salestracker/internal/core"
	"salestracker/internal/records"
)

var _ records.Store = (*Store)(nil)

const defaultCollection = "sales"

// saleDocument is the persisted form of a record. Amounts are BSON
// Decimal128 with two fraction digits.
type saleDocument struct {
	ID           string               `bson:"_id"`
	Date         string               `bson:"date"`
	CashAmount   primitive.Decimal128 `bson:"cashAmount"`
	OnlineAmount primitive.Decimal128 `bson:"onlineAmount"`
	Notes        string               `bson:"notes,omitempty"`
	CreatedAt    time.Time            `bson:"createdAt"`
}

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type Options struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// New connects, pings and ensures the date index.
func New(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.URI) == "" {
		return nil, errors.New("missing mongo uri")
	}
	if opts.Database == "" {
		return nil, errors.New("missing mongo database")
	}
	if opts.Collection == "" {
		opts.Collection = defaultCollection
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{client: client, coll: client.Database(opts.Database).Collection(opts.Collection)}
	if _, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: 1}},
	}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create date index: %w", err)
	}

	slog.InfoContext(ctx, "Connected to MongoDB", "database", opts.Database, "collection", opts.Collection)
	return s, nil
}

func (s *Store) Insert(ctx context.Context, rec core.SalesRecord) (string, error) {
	if err := rec.Date.Validate(); err != nil {
		return "", fmt.Errorf("validate record: %w", err)
	}
	doc := toDocument(uuid.NewString(), rec, time.Now().UTC())
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("%w: insert sale: %v", records.ErrUnavailable, err)
	}
	return doc.ID, nil
}

func (s *Store) ListAll(ctx context.Context) ([]core.SalesRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "createdAt", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find sales: %v", records.ErrUnavailable, err)
	}
	defer cur.Close(ctx)

	var out []core.SalesRecord
	for cur.Next(ctx) {
		var doc saleDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode sale: %w", err)
		}
		rec, ok := fromDocument(doc)
		if !ok {
			slog.DebugContext(ctx, "Skipping sale document with bad date", "id", doc.ID, "date", doc.Date)
			continue
		}
		out = append(out, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate sales: %v", records.ErrUnavailable, err)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %v", records.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toDocument(id string, rec core.SalesRecord, now time.Time) saleDocument {
	rec = rec.Normalize()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}
	return saleDocument{
		ID:           id,
		Date:         rec.Date.String(),
		CashAmount:   toDecimal128(rec.Cash),
		OnlineAmount: toDecimal128(rec.Online),
		Notes:        rec.Notes,
		CreatedAt:    created.UTC(),
	}
}

func fromDocument(doc saleDocument) (core.SalesRecord, bool) {
	d, err := core.ParseDate(doc.Date)
	if err != nil {
		return core.SalesRecord{}, false
	}
	return core.SalesRecord{
		ID:        doc.ID,
		Date:      d,
		Cash:      fromDecimal128(doc.CashAmount),
		Online:    fromDecimal128(doc.OnlineAmount),
		Notes:     doc.Notes,
		CreatedAt: doc.CreatedAt,
	}, true
}

func toDecimal128(m core.Money) primitive.Decimal128 {
	d, err := primitive.ParseDecimal128(m.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return d
}

// fromDecimal128 reads an amount back. Unparseable or negative values
// become zero.
func fromDecimal128(d primitive.Decimal128) core.Money {
	v, err := decimal.NewFromString(d.String())
	if err != nil {
		return core.Money{}
	}
	return core.FromDecimal(v)
}
