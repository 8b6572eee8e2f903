package queue

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// binarySubtypeUserDefined marks payloads as opaque user data.
const binarySubtypeUserDefined = 0x80

// MongoOption configures a MongoAdapter.
type MongoOption func(*MongoAdapter)

// WithJournal controls whether writes wait for the journal to be flushed to
// disk. Journaled writes are the default.
func WithJournal(journal bool) MongoOption {
	return func(m *MongoAdapter) {
		m.journal = journal
	}
}

// NewMongoAdapter creates a new MongoAdapter storing queues in db.
func NewMongoAdapter(db *mongo.Database, opts ...MongoOption) *MongoAdapter {
	if db == nil {
		panic("nil queue database")
	}
	m := &MongoAdapter{db: db, journal: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MongoAdapter stores each queue as a MongoDB collection.
type MongoAdapter struct {
	db      *mongo.Database
	journal bool
}

func (m *MongoAdapter) collection(c Collection) *mongo.Collection {
	wc := writeconcern.New(writeconcern.WMajority(), writeconcern.J(m.journal))
	return m.db.Collection(c.Name, options.Collection().SetWriteConcern(wc))
}

func unclaimedFilter(f Fields) bson.D {
	return bson.D{{Key: f.Claimed, Value: false}}
}

// EnsureIndexes creates the index extraction and counting rely on.
func (m *MongoAdapter) EnsureIndexes(ctx context.Context, c Collection) error {
	_, err := m.collection(c).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: c.Fields.Claimed, Value: 1},
			{Key: c.Fields.Priority, Value: -1},
			{Key: c.Fields.Created, Value: 1},
		},
	})
	return errors.Wrapf(err, "unable to create indexes for collection %q", c.Name)
}

// InsertOne inserts r as a new document.
func (m *MongoAdapter) InsertOne(ctx context.Context, c Collection, r Record) (Ack, error) {
	f := c.Fields
	doc := bson.D{
		{Key: f.Value, Value: primitive.Binary{Subtype: binarySubtypeUserDefined, Data: r.Value}},
		{Key: f.Created, Value: primitive.NewDateTimeFromTime(r.Created)},
		{Key: f.Claimed, Value: r.Claimed},
		{Key: f.Priority, Value: r.Priority},
	}
	if len(r.Description) > 0 {
		doc = append(doc, bson.E{Key: f.Description, Value: r.Description})
	}

	res, err := m.collection(c).InsertOne(ctx, doc)
	if err == mongo.ErrUnacknowledgedWrite {
		return Ack{OK: false}, nil
	}
	if err != nil {
		return Ack{}, errors.Wrapf(err, "error inserting into collection %q", c.Name)
	}
	return Ack{OK: res != nil && res.InsertedID != nil}, nil
}

// ClaimNext marks the next unclaimed document as claimed and returns it as it
// was before the update.
func (m *MongoAdapter) ClaimNext(ctx context.Context, c Collection) (*Record, error) {
	f := c.Fields
	update := bson.D{{Key: "$set", Value: bson.D{{Key: f.Claimed, Value: true}}}}
	opts := options.FindOneAndUpdate().
		// Dates have millisecond precision; _id breaks ties within one.
		SetSort(bson.D{
			{Key: f.Priority, Value: -1},
			{Key: f.Created, Value: 1},
			{Key: "_id", Value: 1},
		}).
		SetReturnDocument(options.Before)

	var doc bson.M
	err := m.collection(c).FindOneAndUpdate(ctx, unclaimedFilter(f), update, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error claiming from collection %q", c.Name)
	}
	rec, err := decodeMongoRecord(f, doc)
	return rec, errors.Wrapf(err, "invalid document in collection %q", c.Name)
}

func decodeMongoRecord(f Fields, doc bson.M) (*Record, error) {
	rec := &Record{}

	switch v := doc[f.Value].(type) {
	case primitive.Binary:
		rec.Value = v.Data
	case string:
		rec.Value = []byte(v)
	default:
		return nil, errors.Errorf("unexpected type %T for field %q", v, f.Value)
	}

	if dt, ok := doc[f.Created].(primitive.DateTime); ok {
		rec.Created = dt.Time()
	}
	rec.Claimed, _ = doc[f.Claimed].(bool)

	// Documents written by other producers may store priorities as any
	// numeric BSON type.
	switch p := doc[f.Priority].(type) {
	case int32:
		rec.Priority = int64(p)
	case int64:
		rec.Priority = p
	case float64:
		rec.Priority = int64(p)
	default:
		return nil, errors.Errorf("unexpected type %T for field %q", p, f.Priority)
	}

	if d, ok := doc[f.Description].(bson.M); ok && len(d) > 0 {
		rec.Description = map[string]interface{}(d)
	}
	return rec, nil
}

// CountUnclaimed counts the unclaimed documents of c.
func (m *MongoAdapter) CountUnclaimed(ctx context.Context, c Collection) (int64, error) {
	n, err := m.collection(c).CountDocuments(ctx, unclaimedFilter(c.Fields))
	if err != nil {
		return 0, errors.Wrapf(err, "error counting collection %q", c.Name)
	}
	return n, nil
}
