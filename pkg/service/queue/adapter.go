package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
)

// NewRedisAdapter creates a new RedisAdapter.
func NewRedisAdapter(c *redis.Client) *RedisAdapter {
	if c == nil {
		panic("nil queue client")
	}
	return &RedisAdapter{c: c}
}

// RedisAdapter stores queues in Redis.
//
// Each collection is kept as a sorted set of unclaimed members plus one hash
// per record. All members are added with the same score, so Redis orders them
// lexicographically; members are encoded so that order is priority descending,
// then creation time ascending, then insertion sequence.
type RedisAdapter struct {
	c *redis.Client
}

// claimScript pops the first unclaimed member, marks its record claimed and
// returns the record as it was before. Scripts run atomically in Redis.
//
// KEYS[1] unclaimed set, ARGV[1] record key prefix, ARGV[2] claimed field.
var claimScript = redis.NewScript(`
local members = redis.call('ZRANGE', KEYS[1], 0, 0)
if #members == 0 then
	return false
end
redis.call('ZREM', KEYS[1], members[1])
local key = ARGV[1] .. members[1]
local before = redis.call('HGETALL', key)
redis.call('HSET', key, ARGV[2], '1')
return before
`)

func unclaimedKey(c Collection) string {
	return c.Name + ":unclaimed"
}

func recordPrefix(c Collection) string {
	return c.Name + ":record:"
}

func sequenceKey(c Collection) string {
	return c.Name + ":seq"
}

// flipSign maps int64 order onto uint64 order.
func flipSign(i int64) uint64 {
	return uint64(i) ^ (1 << 63)
}

func memberFor(r Record, seq int64) string {
	return fmt.Sprintf("%016x%016x%016x",
		math.MaxUint64-flipSign(r.Priority),
		flipSign(r.Created.UnixNano()),
		uint64(seq))
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// InsertOne stores r and indexes it as unclaimed.
func (r *RedisAdapter) InsertOne(ctx context.Context, c Collection, rec Record) (Ack, error) {
	client := r.c.WithContext(ctx)

	seq, err := client.Incr(sequenceKey(c)).Result()
	if err != nil {
		return Ack{}, errors.Wrapf(err, "unable to allocate sequence for Redis queue %q", c.Name)
	}

	fields := map[string]interface{}{
		c.Fields.Value:    string(rec.Value),
		c.Fields.Created:  rec.Created.Format(time.RFC3339Nano),
		c.Fields.Claimed:  formatBool(rec.Claimed),
		c.Fields.Priority: strconv.FormatInt(rec.Priority, 10),
	}
	if len(rec.Description) > 0 {
		d, err := json.Marshal(rec.Description)
		if err != nil {
			return Ack{}, errors.Wrap(err, "unable to encode description")
		}
		fields[c.Fields.Description] = string(d)
	}

	member := memberFor(rec, seq)
	cmds, err := client.TxPipelined(func(pipe redis.Pipeliner) error {
		pipe.HMSet(recordPrefix(c)+member, fields)
		pipe.ZAdd(unclaimedKey(c), redis.Z{Score: 0, Member: member})
		return nil
	})
	if err != nil {
		return Ack{}, errors.Wrapf(err, "error inserting into Redis queue %q", c.Name)
	}
	if len(cmds) != 2 {
		return Ack{OK: false}, nil
	}
	for _, cmd := range cmds {
		if cmd.Err() != nil {
			return Ack{OK: false}, nil
		}
	}
	return Ack{OK: true}, nil
}

// ClaimNext claims the next unclaimed record.
func (r *RedisAdapter) ClaimNext(ctx context.Context, c Collection) (*Record, error) {
	client := r.c.WithContext(ctx)
	v, err := claimScript.Run(client, []string{unclaimedKey(c)}, recordPrefix(c), c.Fields.Claimed).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error claiming from Redis queue %q", c.Name)
	}

	flat, ok := v.([]interface{})
	if !ok || len(flat) == 0 {
		// The member was indexed without a record.
		return nil, errors.Errorf("missing record in Redis queue %q", c.Name)
	}
	hash := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		k, _ := flat[i].(string)
		val, _ := flat[i+1].(string)
		hash[k] = val
	}
	rec, err := decodeRedisRecord(c.Fields, hash)
	return rec, errors.Wrapf(err, "invalid record in Redis queue %q", c.Name)
}

func decodeRedisRecord(f Fields, hash map[string]string) (*Record, error) {
	rec := &Record{
		Value:   []byte(hash[f.Value]),
		Claimed: hash[f.Claimed] == "1",
	}
	var err error
	if rec.Created, err = time.Parse(time.RFC3339Nano, hash[f.Created]); err != nil {
		return nil, errors.Wrap(err, "unable to parse creation time")
	}
	if rec.Priority, err = strconv.ParseInt(hash[f.Priority], 10, 64); err != nil {
		return nil, errors.Wrap(err, "unable to parse priority")
	}
	if d, ok := hash[f.Description]; ok && d != "" {
		if err := json.Unmarshal([]byte(d), &rec.Description); err != nil {
			return nil, errors.Wrap(err, "unable to decode description")
		}
	}
	return rec, nil
}

// CountUnclaimed counts the unclaimed records of c.
func (r *RedisAdapter) CountUnclaimed(ctx context.Context, c Collection) (int64, error) {
	client := r.c.WithContext(ctx)
	n, err := client.ZCard(unclaimedKey(c)).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "error counting Redis queue %q", c.Name)
	}
	return n, nil
}
