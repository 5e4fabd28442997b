package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "lead-jobs", leads.JobTermination{
		JobID:    "j1",
		Status:   leads.JobStatusCompleted,
		Counters: leads.JobCounters{Total: 3, New: 2, Updated: 1},
	})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)

	id2, err := pub.Publish(context.Background(), "lead-jobs", leads.JobTermination{
		JobID:  "j2",
		Status: leads.JobStatusFailed,
		Error:  "provider exploded",
	})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "j1", msgs[0].Event.JobID)
	require.Equal(t, leads.JobStatusCompleted, msgs[0].Event.Status)
	require.Equal(t, 2, msgs[0].Event.Counters.New)
	require.Equal(t, "provider exploded", msgs[1].Event.Error)

	msgs[0].Topic = "modified"
	require.Equal(t, "lead-jobs", pub.Messages()[0].Topic, "Messages returns a copy")
}
