package queue

import (
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMemberOrdering(t *testing.T) {
	t.Parallel()
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)

	// Listed in the order they must be extracted.
	ordered := []struct {
		r   Record
		seq int64
	}{
		{Record{Priority: math.MaxInt64, Created: base}, 9},
		{Record{Priority: 10, Created: earlier}, 8},
		{Record{Priority: 10, Created: base}, 1},
		{Record{Priority: 10, Created: base}, 2},
		{Record{Priority: 10, Created: base.Add(time.Nanosecond)}, 0},
		{Record{Priority: 0, Created: base}, 3},
		{Record{Priority: -1, Created: base}, 4},
		{Record{Priority: math.MinInt64, Created: base}, 5},
	}

	var want, got []string
	for _, o := range ordered {
		m := memberFor(o.r, o.seq)
		want = append(want, m)
		got = append(got, m)
	}
	sort.Strings(got)
	assert.Equal(t, want, got, "Lexicographic member order should match extraction order.")
}

func TestDecodeRedisRecord(t *testing.T) {
	t.Parallel()
	f := DefaultFields()
	created := time.Date(2020, 1, 1, 0, 0, 0, 5, time.UTC)

	rec, err := decodeRedisRecord(f, map[string]string{
		"value":       "禅",
		"created":     created.Format(time.RFC3339Nano),
		"claimed":     "0",
		"priority":    "-3",
		"description": `{"to":"a@b.c"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("禅"), rec.Value)
	assert.True(t, created.Equal(rec.Created))
	assert.False(t, rec.Claimed)
	assert.Equal(t, int64(-3), rec.Priority)
	assert.Equal(t, "a@b.c", rec.Description["to"])

	_, err = decodeRedisRecord(f, map[string]string{"created": "yesterday"})
	assert.Error(t, err, "Invalid creation time should error.")
}

func TestDecodeMongoRecord(t *testing.T) {
	t.Parallel()
	f := DefaultFields()
	created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	rec, err := decodeMongoRecord(f, bson.M{
		"value":       primitive.Binary{Subtype: binarySubtypeUserDefined, Data: []byte("payload")},
		"created":     primitive.NewDateTimeFromTime(created),
		"claimed":     false,
		"priority":    int32(7),
		"description": bson.M{"k": "v"},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), rec.Value)
	assert.True(t, created.Equal(rec.Created))
	assert.Equal(t, int64(7), rec.Priority)
	assert.Equal(t, "v", rec.Description["k"])

	_, err = decodeMongoRecord(f, bson.M{"value": 12, "priority": int64(1)})
	assert.Error(t, err, "Non-binary value should error.")

	_, err = decodeMongoRecord(f, bson.M{"value": "v", "priority": "high"})
	assert.Error(t, err, "Non-numeric priority should error.")
}
