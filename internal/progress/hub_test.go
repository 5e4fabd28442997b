package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func validEvent(stage Stage) Event {
	return Event{JobID: "j1", TS: time.Now().UTC(), Stage: stage}
}

func TestHub_DeliversBatches(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: 10 * time.Millisecond}, sink)

	hub.Emit(validEvent(StageJobEnqueued))
	hub.Emit(validEvent(StageJobStart))

	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Close(context.Background()))
	require.True(t, sink.closed)
}

func TestHub_DropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: 10 * time.Millisecond}, sink)
	defer hub.Close(context.Background())

	hub.Emit(Event{Stage: StageJobStart})                             // no job id
	hub.Emit(Event{JobID: "j1", TS: time.Now(), Stage: Stage("???")}) // unknown stage

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, sink.count())
}

func TestHub_CloseFlushesPending(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: time.Hour}, sink)

	for i := 0; i < 10; i++ {
		hub.Emit(validEvent(StageMergeDone))
	}
	require.NoError(t, hub.Close(context.Background()))
	require.Equal(t, 10, sink.count())

	// Emits after close are ignored.
	hub.Emit(validEvent(StageJobDone))
	require.Equal(t, 10, sink.count())
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, Event{TS: time.Now(), Stage: StageJobStart}.Validate())
	require.Error(t, Event{JobID: "j", Stage: StageJobStart}.Validate())
	require.Error(t, Event{JobID: "j", TS: time.Now(), Stage: StageProviderPage}.Validate())
	require.NoError(t, Event{JobID: "j", TS: time.Now(), Stage: StageProviderPage, Provider: "places"}.Validate())
	require.Error(t, Event{JobID: "j", TS: time.Now(), Stage: StageJobDone, Dur: -1}.Validate())
}
