package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/progress"
)

func event(stage progress.Stage, jobID string) progress.Event {
	return progress.Event{JobID: jobID, TS: time.Now().UTC(), Stage: stage, Provider: leads.ProviderBrowser}
}

func TestPrometheusSink_JobLifecycle(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	batch := []progress.Event{
		event(progress.StageJobEnqueued, "j1"),
		event(progress.StageJobStart, "j1"),
		event(progress.StageJobStart, "j2"),
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.jobsRunning))

	done := event(progress.StageJobDone, "j1")
	done.Dur = 3 * time.Second
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{done}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsCompleted.WithLabelValues("success")))

	// A duplicate terminal event must not drive the gauge negative.
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{done}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsRunning))
}

func TestPrometheusSink_MergeAndPages(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	page := event(progress.StageProviderPage, "j1")
	page.Provider = leads.ProviderPlaces
	page.Items = 20
	merged := event(progress.StageMergeDone, "j1")
	merged.Counters = leads.JobCounters{Total: 5, New: 3, Updated: 1, Skipped: 1}

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{page, merged}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.providerPages.WithLabelValues("places")))
	require.Equal(t, 20.0, testutil.ToFloat64(sink.providerItems.WithLabelValues("places")))
	require.Equal(t, 3.0, testutil.ToFloat64(sink.mergeOutcomes.WithLabelValues("new")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.mergeOutcomes.WithLabelValues("updated")))
}
