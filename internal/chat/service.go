package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/parlachat/parla/internal/completion"
	"github.com/parlachat/parla/internal/observability"
	"github.com/parlachat/parla/internal/session"
	"github.com/parlachat/parla/internal/summary"
)

// Snapshot is one UI-visible rendering of a session's conversation while a
// reply is still streaming. Each turn produces its own snapshot sequence:
// one per fragment plus a final one, with the assistant text growing
// prefix-monotonically.
type Snapshot struct {
	SessionID  string
	ClearInput bool
	History    []session.Turn
	Final      bool
}

// SnapshotHandler receives snapshots synchronously; the write back to the
// client is the turn's only suspension point, so a slow consumer throttles
// fragment consumption rather than piling up buffered state.
type SnapshotHandler func(Snapshot) error

// TurnResult reports how a turn ended. StreamErr is diagnostic only: a
// mid-stream provider failure still commits the partial reply and the turn
// still counts as done for the client.
type TurnResult struct {
	Committed bool
	Partial   bool
	StreamErr error
}

// Options configures the per-session conversation service.
type Options struct {
	SystemPrompt string
	// SummaryThreshold is how many committed turns trigger one summary;
	// SummaryWindow is how many trailing turns each summary covers.
	SummaryThreshold int
	SummaryWindow    int
}

// Service orchestrates one user turn end to end: validate, stream, commit,
// summarize. It holds no per-turn state of its own; durable state lives in
// the session store.
type Service struct {
	store     *session.Store
	adapter   completion.Adapter
	summaries summary.Sink
	metrics   *observability.Metrics

	systemPrompt     string
	summaryThreshold int
	summaryWindow    int
}

func NewService(
	store *session.Store,
	adapter completion.Adapter,
	summaries summary.Sink,
	metrics *observability.Metrics,
	opts Options,
) *Service {
	threshold := opts.SummaryThreshold
	if threshold <= 0 {
		threshold = 10
	}
	window := opts.SummaryWindow
	if window <= 0 {
		window = threshold
	}
	return &Service{
		store:            store,
		adapter:          adapter,
		summaries:        summaries,
		metrics:          metrics,
		systemPrompt:     opts.SystemPrompt,
		summaryThreshold: threshold,
		summaryWindow:    window,
	}
}

// emitError marks a handler failure so it is not mistaken for a provider
// stream failure on the way back out of the adapter.
type emitError struct{ err error }

func (e *emitError) Error() string { return e.err.Error() }
func (e *emitError) Unwrap() error { return e.err }

// HandleTurn runs one full user turn for the session. Empty or
// whitespace-only input is a no-op turn: one unchanged snapshot, no provider
// contact. On a clean stream the user/assistant pair is committed and the
// summarization trigger runs synchronously; on a mid-stream failure the
// partial reply is committed anyway and summarization is skipped.
//
// The returned error is only non-nil when a snapshot could not be delivered;
// provider failures are reported through TurnResult.StreamErr.
func (s *Service) HandleTurn(ctx context.Context, sessionID, input string, emit SnapshotHandler) (TurnResult, error) {
	start := time.Now()
	hist := s.store.GetOrCreate(sessionID)

	if strings.TrimSpace(input) == "" {
		s.metrics.SessionEvents.WithLabelValues("turn_noop").Inc()
		err := emit(Snapshot{SessionID: sessionID, ClearInput: true, History: hist.Turns(), Final: true})
		return TurnResult{}, err
	}

	// One in-flight turn per session id: later turns queue instead of racing
	// on append order.
	lock := s.store.TurnLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	s.metrics.SessionEvents.WithLabelValues("turn_started").Inc()

	prior := hist.Turns()
	var buf strings.Builder
	firstFragment := true

	_, streamErr := s.adapter.StreamReply(ctx, completion.Request{
		SessionID: sessionID,
		System:    s.systemPrompt,
		History:   prior,
		Input:     input,
	}, func(delta string) error {
		if delta == "" {
			return nil
		}
		if firstFragment {
			firstFragment = false
			s.metrics.ObserveTurnStage("input_to_first_fragment", time.Since(start))
		}
		buf.WriteString(delta)
		if err := emit(s.partialSnapshot(sessionID, prior, input, buf.String())); err != nil {
			return &emitError{err: err}
		}
		return nil
	})
	s.metrics.ObserveTurnStage("stream_total", time.Since(start))

	var emitErr *emitError
	if errors.As(streamErr, &emitErr) {
		// The client went away mid-stream. Commit what we have so the session
		// survives a reconnect, then surface the delivery failure.
		s.commit(sessionID, input, buf.String())
		s.metrics.SessionEvents.WithLabelValues("turn_partial").Inc()
		return TurnResult{Committed: true, Partial: true}, emitErr.err
	}

	commitStart := time.Now()
	s.commit(sessionID, input, buf.String())
	s.metrics.ObserveTurnStage("commit", time.Since(commitStart))

	result := TurnResult{Committed: true}
	if streamErr != nil {
		// Best-effort partial commit; the turn still reaches done and
		// summarization is not attempted for it.
		result.Partial = true
		result.StreamErr = streamErr
		s.metrics.SessionEvents.WithLabelValues("turn_partial").Inc()
		s.metrics.ProviderErrors.WithLabelValues("stream", providerErrorCode(streamErr)).Inc()
		log.Printf("session %s: stream failed after %d chars, committed partial reply: %v", sessionID, buf.Len(), streamErr)
	} else {
		s.metrics.SessionEvents.WithLabelValues("turn_completed").Inc()

		summarizeStart := time.Now()
		if res := s.maybeSummarize(ctx, sessionID, hist); res.Fired {
			s.metrics.ObserveTurnStage("summarize", time.Since(summarizeStart))
			if res.Err != nil {
				// Summarization must never fail the turn that triggered it.
				s.metrics.SummaryEvents.WithLabelValues("failed").Inc()
				log.Printf("session %s: summary generation failed: %v", sessionID, res.Err)
			} else {
				s.metrics.SummaryEvents.WithLabelValues("written").Inc()
				log.Printf("session %s: saved %d-turn summary", sessionID, s.summaryWindow)
			}
		}
	}

	s.metrics.ObserveTurnStage("turn_total", time.Since(start))
	s.metrics.ObserveTurnLatency(time.Since(start))

	err := emit(Snapshot{SessionID: sessionID, ClearInput: true, History: hist.Turns(), Final: true})
	return result, err
}

func (s *Service) partialSnapshot(sessionID string, prior []session.Turn, input, partial string) Snapshot {
	turns := make([]session.Turn, 0, len(prior)+2)
	turns = append(turns, prior...)
	turns = append(turns,
		session.Turn{Role: session.RoleUser, Content: input},
		session.Turn{Role: session.RoleAssistant, Content: partial},
	)
	return Snapshot{SessionID: sessionID, ClearInput: true, History: turns}
}

func (s *Service) commit(sessionID, input, reply string) {
	s.store.Append(sessionID,
		session.Turn{Role: session.RoleUser, Content: input},
		session.Turn{Role: session.RoleAssistant, Content: reply},
	)
}

func providerErrorCode(err error) string {
	var pe *completion.ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "unknown"
}

// DiagnosticCode maps a stream error to a stable code for error events.
func DiagnosticCode(err error) string { return providerErrorCode(err) }
