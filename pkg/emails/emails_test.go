package emails_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwool/priority-queue/pkg/emails"
	"github.com/rwool/priority-queue/pkg/internal/queuemock"
)

func TestDefinitionIsValid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, emails.Definition().Validate())
}

func TestSendReceive(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	store := queuemock.New()
	q, err := emails.New(store)
	require.NoError(t, err)
	assert.Equal(t, emails.CollectionName, q.Name())
	assert.Equal(t, emails.DefaultPriority, q.DefaultPriority())

	sends := []struct {
		message  string
		priority int64
	}{
		{"weekly digest", emails.LowPriority},
		{"bounce notice", emails.ProblemPriority},
		{"password reset", emails.UrgentPriority},
		{"welcome", 0},
		{"reply", emails.DirectPriority},
	}
	for _, s := range sends {
		ok, err := q.Send(ctx, s.message, s.priority, map[string]interface{}{"to": "user@example.com"})
		require.NoError(t, err)
		require.True(t, ok, "Send should succeed.")
	}

	var out []string
	for {
		m, ok, err := q.Receive(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, m)
	}
	assert.Equal(t, []string{"password reset", "welcome", "reply", "weekly digest", "bounce notice"}, out)

	records := store.Records(emails.CollectionName)
	require.Len(t, records, len(sends))
	assert.Equal(t, emails.DefaultPriority, records[3].Priority, "Zero priority should use the default.")
}
