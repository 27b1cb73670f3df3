package chatapi

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsrelay/opsrelay/pkg/domain"
	"github.com/opsrelay/opsrelay/pkg/summarizer"
)

type fakeSummarizer struct {
	result *summarizer.Result
	err    error
}

func (f *fakeSummarizer) SummarizeForChat(ctx context.Context, incidentID int64, limitSimilar, limitRunbook int) (*summarizer.Result, error) {
	return f.result, f.err
}

type recordedEvent struct {
	name    string
	payload any
}

type fakeWriter struct {
	events []recordedEvent
}

func (f *fakeWriter) Send(event string, payload any) error {
	f.events = append(f.events, recordedEvent{name: event, payload: payload})
	return nil
}

func (f *fakeWriter) names() []string {
	names := make([]string, len(f.events))
	for i, e := range f.events {
		names[i] = e.name
	}
	return names
}

func chunksOf(chunks ...string) func(ctx context.Context, userMessage string, result *summarizer.Result) (<-chan string, <-chan error) {
	return func(ctx context.Context, userMessage string, result *summarizer.Result) (<-chan string, <-chan error) {
		deltas := make(chan string, len(chunks))
		errs := make(chan error, 1)
		for _, c := range chunks {
			deltas <- c
		}
		close(deltas)
		errs <- nil
		return deltas, errs
	}
}

func chunksThenError(chunks []string, cause error) func(ctx context.Context, userMessage string, result *summarizer.Result) (<-chan string, <-chan error) {
	return func(ctx context.Context, userMessage string, result *summarizer.Result) (<-chan string, <-chan error) {
		deltas := make(chan string, len(chunks))
		errs := make(chan error, 1)
		for _, c := range chunks {
			deltas <- c
		}
		close(deltas)
		errs <- cause
		return deltas, errs
	}
}

func newTestOrchestrator(sum contextBuilder) *Orchestrator {
	o := &Orchestrator{summarizer: sum, active: make(map[int64]struct{})}
	return o
}

func TestStream_SuccessSequence(t *testing.T) {
	sum := &fakeSummarizer{result: &summarizer.Result{
		Summary:   "things are bad",
		NextSteps: []string{"page on-call"},
		Citations: []domain.Citation{domain.NewAlertCitation(1, "db down")},
	}}
	o := newTestOrchestrator(sum)
	o.deltaSource = chunksOf("hello ", "world")

	w := &fakeWriter{}
	err := o.Stream(t.Context(), w, 42, "what happened", "conv-1", 3, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{EventTool, EventAssistantDelta, EventAssistantDelta, EventAssistant, EventTool, EventDone}, w.names())

	running := w.events[0].payload.(ToolPayload)
	assert.Equal(t, ToolStatusRunning, running.Status)

	done := w.events[len(w.events)-1].payload.(DonePayload)
	assert.True(t, done.OK)

	finalTool := w.events[len(w.events)-2].payload.(ToolPayload)
	assert.Equal(t, ToolStatusDone, finalTool.Status)

	assistant := w.events[3].payload.(AssistantPayload)
	assert.Equal(t, "hello world", assistant.Content)
	assert.Len(t, assistant.Citations, 1)
}

func TestStream_PartialFailureSequence(t *testing.T) {
	sum := &fakeSummarizer{result: &summarizer.Result{Summary: "s", NextSteps: nil}}
	o := newTestOrchestrator(sum)
	o.deltaSource = chunksThenError([]string{"partial "}, errors.New("provider disconnected"))

	w := &fakeWriter{}
	err := o.Stream(t.Context(), w, 7, "what now", "", 3, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{EventTool, EventAssistantDelta, EventTool, EventError, EventDone}, w.names())

	delta := w.events[1].payload.(AssistantDeltaPayload)
	assert.Equal(t, "partial ", delta.Delta)

	failedTool := w.events[2].payload.(ToolPayload)
	assert.Equal(t, ToolStatusFailed, failedTool.Status)

	done := w.events[len(w.events)-1].payload.(DonePayload)
	assert.False(t, done.OK)

	for _, e := range w.events {
		if p, ok := e.payload.(DonePayload); ok {
			assert.False(t, p.OK, "done:true must never appear after a failure")
		}
	}
}

func TestStream_ContextBuildFailure_NeverEmitsDeltas(t *testing.T) {
	sum := &fakeSummarizer{err: errors.New("db unreachable")}
	o := newTestOrchestrator(sum)
	o.deltaSource = chunksOf("should never run")

	w := &fakeWriter{}
	err := o.Stream(t.Context(), w, 1, "summary please", "", 3, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{EventTool, EventTool, EventError, EventDone}, w.names())
	done := w.events[len(w.events)-1].payload.(DonePayload)
	assert.False(t, done.OK)
}

func TestStream_EmptyContent_TreatedAsFailure(t *testing.T) {
	sum := &fakeSummarizer{result: &summarizer.Result{Summary: "s"}}
	o := newTestOrchestrator(sum)
	o.deltaSource = chunksOf()

	w := &fakeWriter{}
	err := o.Stream(t.Context(), w, 1, "hi", "", 3, 3)
	require.NoError(t, err)
	assert.NotContains(t, w.names(), EventAssistant)
	done := w.events[len(w.events)-1].payload.(DonePayload)
	assert.False(t, done.OK)
}

func TestStream_DistinctAssistantIDsAcrossCalls(t *testing.T) {
	sum := &fakeSummarizer{result: &summarizer.Result{Summary: "s", NextSteps: []string{"step"}}}
	o := newTestOrchestrator(sum)
	o.deltaSource = chunksOf("hi")

	w1 := &fakeWriter{}
	require.NoError(t, o.Stream(t.Context(), w1, 9, "hi", "", 3, 3))
	w2 := &fakeWriter{}
	require.NoError(t, o.Stream(t.Context(), w2, 9, "hi", "", 3, 3))

	id1 := w1.events[1].payload.(AssistantDeltaPayload).ID
	id2 := w2.events[1].payload.(AssistantDeltaPayload).ID
	assert.NotEqual(t, id1, id2)
}

func TestStream_RejectsConcurrentTurnsOnSameIncident(t *testing.T) {
	sum := &fakeSummarizer{result: &summarizer.Result{Summary: "s"}}
	o := newTestOrchestrator(sum)
	require.NoError(t, o.claim(5))

	err := o.Stream(t.Context(), &fakeWriter{}, 5, "hi", "", 3, 3)
	assert.ErrorIs(t, err, ErrChatBusy)

	o.release(5)
	o.deltaSource = chunksOf("ok")
	assert.NoError(t, o.Stream(t.Context(), &fakeWriter{}, 5, "hi", "", 3, 3))
}

func TestBuildFallbackMessage_KeywordPriority(t *testing.T) {
	summary := "incident is bad"
	steps := []string{"restart service"}

	assert.Equal(t, "Recommended next steps:\n1. restart service", buildFallbackMessage("what should I do next?", summary, steps))
	assert.Equal(t, summary, buildFallbackMessage("give me a summary", summary, steps))
	assert.Equal(t, summary+"\n\nRecommended next steps:\n1. restart service", buildFallbackMessage("anything else?", summary, steps))
}

func TestChunkText_EmptyYieldsNoChunks(t *testing.T) {
	assert.Nil(t, chunkText(""))
	assert.Len(t, chunkText("123456789012345678901234567890"), 2)
}
