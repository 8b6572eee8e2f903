package queue

import (
	"context"
	"encoding/json"
	"math"
	"reflect"
	"strconv"

	"github.com/pkg/errors"
)

// Request is a validated insert.
type Request struct {
	Value       string
	Priority    int64
	Description map[string]interface{}
}

// InsertOption configures a single typed insert.
type InsertOption func(*Request)

// WithPriority sets the priority of the inserted element.
func WithPriority(p int64) InsertOption {
	return func(r *Request) {
		r.Priority = p
	}
}

// WithDescription attaches metadata to the inserted element. Empty
// descriptions are not stored.
func WithDescription(d map[string]interface{}) InsertOption {
	return func(r *Request) {
		r.Description = d
	}
}

// Insert adds value to the queue.
//
// The boolean reports whether the element was durably stored. Storage failures
// are sent to the queue's reporter rather than returned, so the error is
// always nil for this typed form; callers decide whether to retry on false.
func (q *Queue) Insert(ctx context.Context, value string, opts ...InsertOption) (bool, error) {
	req := Request{Value: value, Priority: q.def.DefaultPriority}
	for _, opt := range opts {
		opt(&req)
	}
	return q.insert(ctx, req), nil
}

// InsertAny validates loosely typed arguments, as decoded from a transport,
// and inserts them.
//
// Validation failures return ErrInvalidPayload, ErrInvalidPriority or
// ErrInvalidDescription before storage is touched. A nil priority selects the
// default priority.
func (q *Queue) InsertAny(ctx context.Context, value, priority, description interface{}) (bool, error) {
	req, err := q.Validate(value, priority, description)
	if err != nil {
		return false, err
	}
	return q.insert(ctx, req), nil
}

// Validate converts loosely typed insert arguments into a Request.
func (q *Queue) Validate(value, priority, description interface{}) (Request, error) {
	var req Request

	switch v := value.(type) {
	case string:
		req.Value = v
	case []byte:
		req.Value = string(v)
	default:
		return Request{}, errors.WithStack(ErrInvalidPayload)
	}

	p, ok, err := toPriority(priority)
	if err != nil {
		return Request{}, err
	}
	if !ok {
		p = q.def.DefaultPriority
	}
	req.Priority = p

	d, err := toDescription(description)
	if err != nil {
		return Request{}, err
	}
	req.Description = d
	return req, nil
}

func toPriority(p interface{}) (int64, bool, error) {
	if p == nil {
		return 0, false, nil
	}
	if n, ok := p.(json.Number); ok {
		// Reject "1.0" and "1e3"; only integer literals are priorities.
		i, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil {
			return 0, false, errors.WithStack(ErrInvalidPriority)
		}
		return i, true, nil
	}

	v := reflect.ValueOf(p)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return 0, false, nil
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Uint() > math.MaxInt64 {
			return 0, false, errors.WithStack(ErrInvalidPriority)
		}
		return int64(v.Uint()), true, nil
	}
	return 0, false, errors.WithStack(ErrInvalidPriority)
}

func toDescription(d interface{}) (map[string]interface{}, error) {
	if d == nil {
		return nil, nil
	}
	if m, ok := d.(map[string]interface{}); ok {
		return m, nil
	}
	v := reflect.ValueOf(d)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return nil, errors.WithStack(ErrInvalidDescription)
	}
	if v.IsNil() {
		return nil, nil
	}
	out := make(map[string]interface{}, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, nil
}

func (q *Queue) insert(ctx context.Context, req Request) bool {
	r := Record{
		Value:    []byte(req.Value),
		Created:  q.now(),
		Claimed:  false,
		Priority: req.Priority,
	}
	if len(req.Description) > 0 {
		r.Description = req.Description
	}

	ack, err := q.store.InsertOne(ctx, q.coll, r)
	switch {
	case err != nil:
		q.reporter.ReportError(errors.Wrapf(err, "%s into queue %q", ErrInsertFailed, q.coll.Name).Error())
		return false
	case !ack.OK:
		q.reporter.ReportError(errors.Errorf("%s into queue %q: write not acknowledged", ErrInsertFailed, q.coll.Name).Error())
		return false
	}
	return true
}
