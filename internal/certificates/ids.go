package certificates

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"certificate-studio/certificate-backend/internal/database"
)

// Sequence hands out strictly increasing numbers per key
type Sequence interface {
	Next(ctx context.Context, key string) (int64, error)
}

type mongoSequence struct {
	coll *mongo.Collection
}

// NewSequence stores counters as {_id: key, seq: n} documents
func NewSequence(db *mongo.Database) Sequence {
	return &mongoSequence{coll: db.Collection(database.CountersCollection)}
}

// Next increments and returns the counter in one atomic findAndModify, so
// two concurrent generations can never read the same value
func (s *mongoSequence) Next(ctx context.Context, key string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc struct {
		Seq int64 `bson:"seq"`
	}
	for attempt := 0; attempt < 2; attempt++ {
		err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": key}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&doc)
		if database.IsDuplicateKey(err) {
			// lost an upsert race on a brand-new key; the retry takes the update path
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("next sequence %s: %w", key, err)
		}
		return doc.Seq, nil
	}
	return 0, fmt.Errorf("next sequence %s: upsert conflict", key)
}

// IDGenerator produces CERT-<year>-<seq> identifiers. The sequence restarts
// every calendar year.
type IDGenerator struct {
	seq Sequence
	now func() time.Time
}

func NewIDGenerator(seq Sequence) *IDGenerator {
	return &IDGenerator{seq: seq, now: time.Now}
}

func (g *IDGenerator) Next(ctx context.Context) (string, error) {
	year := g.now().UTC().Year()
	n, err := g.seq.Next(ctx, fmt.Sprintf("certificate:%d", year))
	if err != nil {
		return "", err
	}
	return FormatCertificateID(year, n), nil
}

// FormatCertificateID pads the sequence to three digits; larger sequences
// simply use more digits.
func FormatCertificateID(year int, seq int64) string {
	return fmt.Sprintf("CERT-%d-%03d", year, seq)
}
