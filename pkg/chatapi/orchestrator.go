package chatapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/opsrelay/opsrelay/pkg/summarizer"
)

const toolName = "incident.summarize"

// contextBuilder is the subset of *summarizer.Summarizer the
// Orchestrator needs; narrowed to an interface so tests can substitute
// a fake without a live database.
type contextBuilder interface {
	SummarizeForChat(ctx context.Context, incidentID int64, limitSimilar, limitRunbook int) (*summarizer.Result, error)
}

// Orchestrator runs one chat turn per incident at a time, streaming a
// grounded, citation-backed answer as server-sent events (spec §4.10).
type Orchestrator struct {
	summarizer contextBuilder

	openaiClient *openai.Client
	chatModel    string

	mu     sync.Mutex
	active map[int64]struct{}

	// deltaSource defaults to o.streamDeltas; overridable in tests to
	// simulate provider streaming behavior without a live OpenAI client.
	deltaSource func(ctx context.Context, userMessage string, result *summarizer.Result) (<-chan string, <-chan error)
}

// NewOrchestrator builds an Orchestrator. openaiClient may be nil, in
// which case every turn uses the deterministic fallback.
func NewOrchestrator(sum *summarizer.Summarizer, openaiClient *openai.Client, chatModel string) *Orchestrator {
	o := &Orchestrator{
		summarizer:   sum,
		openaiClient: openaiClient,
		chatModel:    chatModel,
		active:       make(map[int64]struct{}),
	}
	o.deltaSource = o.streamDeltas
	return o
}

// ErrChatBusy is returned when a chat turn is already in flight for
// the given incident.
var ErrChatBusy = fmt.Errorf("chatapi: a chat turn is already running for this incident")

// Stream runs one chat turn for incidentID, emitting the tool /
// assistant_delta / assistant / error / done event sequence described
// in spec §4.10 to w. It returns nil once the terminal "done" event has
// been sent, regardless of whether the turn succeeded.
func (o *Orchestrator) Stream(ctx context.Context, w EventWriter, incidentID int64, message, conversationID string, limitSimilar, limitRunbook int) error {
	if err := o.claim(incidentID); err != nil {
		return err
	}
	defer o.release(incidentID)

	turnCtx := ctx

	if err := w.Send(EventTool, ToolPayload{Tool: toolName, Status: ToolStatusRunning}); err != nil {
		return err
	}

	result, err := o.summarizer.SummarizeForChat(turnCtx, incidentID, limitSimilar, limitRunbook)
	if err != nil {
		return o.fail(w, fmt.Errorf("build chat context: %w", err))
	}

	assistantID := uuid.NewString()
	var content strings.Builder

	deltas, streamErr := o.deltaSource(turnCtx, message, result)
	for delta := range deltas {
		content.WriteString(delta)
		if err := w.Send(EventAssistantDelta, AssistantDeltaPayload{
			ID:             assistantID,
			Role:           "assistant",
			Delta:          delta,
			ConversationID: conversationID,
		}); err != nil {
			return err
		}
	}
	if err := <-streamErr; err != nil {
		return o.fail(w, err)
	}
	if content.Len() == 0 {
		return o.fail(w, fmt.Errorf("chatapi: assistant produced no content"))
	}

	if err := w.Send(EventAssistant, AssistantPayload{
		ID:             assistantID,
		Role:           "assistant",
		Content:        content.String(),
		Citations:      result.Citations,
		ConversationID: conversationID,
	}); err != nil {
		return err
	}
	if err := w.Send(EventTool, ToolPayload{Tool: toolName, Status: ToolStatusDone}); err != nil {
		return err
	}
	return w.Send(EventDone, DonePayload{OK: true})
}

// fail emits the failure trio (tool:failed, error, done:false) and
// returns nil so a caller never follows it with a success event.
func (o *Orchestrator) fail(w EventWriter, cause error) error {
	slog.Warn("chat turn failed", "error", cause)
	if err := w.Send(EventTool, ToolPayload{Tool: toolName, Status: ToolStatusFailed}); err != nil {
		return err
	}
	if err := w.Send(EventError, ErrorPayload{Message: cause.Error()}); err != nil {
		return err
	}
	return w.Send(EventDone, DonePayload{OK: false})
}

// streamDeltas yields assistant-message chunks on the returned channel
// and reports the terminal error (nil on success) on the error
// channel exactly once, after the delta channel is closed. It uses the
// OpenAI Responses-equivalent streaming chat completion when a client
// is configured, and the deterministic keyword-based fallback
// otherwise.
func (o *Orchestrator) streamDeltas(ctx context.Context, userMessage string, result *summarizer.Result) (<-chan string, <-chan error) {
	deltas := make(chan string)
	errs := make(chan error, 1)

	if o.openaiClient == nil {
		go func() {
			defer close(deltas)
			defer close(errs)
			fallback := buildFallbackMessage(userMessage, result.Summary, result.NextSteps)
			for _, chunk := range chunkText(fallback) {
				select {
				case deltas <- chunk:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			errs <- nil
		}()
		return deltas, errs
	}

	go func() {
		defer close(deltas)
		defer close(errs)

		req := openai.ChatCompletionRequest{
			Model: o.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(userMessage, result.Summary, result.NextSteps, result.Citations)},
			},
			Stream: true,
		}
		stream, err := o.openaiClient.CreateChatCompletionStream(ctx, req)
		if err != nil {
			errs <- fmt.Errorf("chatapi: start completion stream: %w", err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if err == io.EOF {
				errs <- nil
				return
			}
			if err != nil {
				errs <- fmt.Errorf("chatapi: receive completion chunk: %w", err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			chunk := resp.Choices[0].Delta.Content
			if chunk == "" {
				continue
			}
			select {
			case deltas <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return deltas, errs
}

func (o *Orchestrator) claim(incidentID int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[incidentID]; busy {
		return ErrChatBusy
	}
	o.active[incidentID] = struct{}{}
	return nil
}

func (o *Orchestrator) release(incidentID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, incidentID)
}
