package queue

import (
	"context"
)

// State is the position of a Cursor.
type State int

// Cursor states.
const (
	// Unstarted cursors have never extracted an element.
	Unstarted State = iota
	// Holding cursors hold the most recently extracted element.
	Holding
	// Exhausted cursors found the queue empty on their last extraction.
	// Exhausted is not terminal; the next advance extracts again.
	Exhausted
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Holding:
		return "holding"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Cursor walks a Queue one element at a time.
//
// Every element a cursor returns has been claimed, so a cursor only moves
// forward and cannot be rewound. A Cursor is not safe for concurrent use;
// concurrent consumers should each use their own cursor.
type Cursor struct {
	q       *Queue
	state   State
	current string
}

// State returns the cursor's state. It distinguishes a cursor that has never
// advanced from one that found the queue empty, which Current cannot.
func (c *Cursor) State() State {
	return c.state
}

// Next claims the next element of the queue and makes it current.
//
// Every call performs a fresh extraction, including after the queue was found
// empty, so elements inserted later are picked up. On error the cursor is left
// unchanged.
func (c *Cursor) Next(ctx context.Context) (string, bool, error) {
	v, ok, err := c.q.Extract(ctx)
	if err != nil {
		return "", false, err
	}
	if !ok {
		c.state, c.current = Exhausted, ""
		return "", false, nil
	}
	c.state, c.current = Holding, v
	return v, true, nil
}

// Current returns the current element without advancing.
//
// The first call on an unstarted cursor advances it once.
func (c *Cursor) Current(ctx context.Context) (string, bool, error) {
	if c.state == Unstarted {
		return c.Next(ctx)
	}
	return c.current, c.state == Holding, nil
}

// HasMore reports whether the cursor holds an element or the queue has
// unclaimed elements left.
func (c *Cursor) HasMore(ctx context.Context) (bool, error) {
	if c.state == Holding {
		return true, nil
	}
	n, err := c.q.Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Each calls fn for every remaining element until the queue is observed empty
// or fn returns an error.
func (c *Cursor) Each(ctx context.Context, fn func(value string) error) error {
	for {
		more, err := c.HasMore(ctx)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}

		v, ok, err := c.Current(ctx)
		if err != nil {
			return err
		}
		if ok {
			if err := fn(v); err != nil {
				return err
			}
		}

		if _, _, err := c.Next(ctx); err != nil {
			return err
		}
	}
}
