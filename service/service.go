package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"purescan-service/history"
	"purescan-service/llm"
	"purescan-service/metrics"
	"purescan-service/models"
	"purescan-service/normalizer"
	"purescan-service/prompt"
)

var (
	// ErrScanInProgress is returned when a session already has an analysis
	// running; one scan at a time per session.
	ErrScanInProgress = errors.New("a scan is already in progress")
	// ErrScanAbandoned is returned when the session left the scan before
	// the analysis completed; the result is discarded.
	ErrScanAbandoned = errors.New("scan abandoned before completion")
)

// Publisher emits scan-completed events. Best-effort: errors are logged
// and never fail the scan.
type Publisher interface {
	Publish(message interface{}) error
}

// Scanner runs the capture-to-result pipeline: build the instruction
// request, call the remote model, normalize whatever comes back, and
// record the result in session history. A failed remote call degrades to
// the fixed simulation result when a fallback client is configured.
type Scanner struct {
	client    llm.Client
	fallback  llm.Client // nil disables the demo fallback
	history   *history.Store
	publisher Publisher // nil disables event publishing
	timeout   time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// session tracks the per-user scan state machine. The generation counter
// detects abandonment: Abandon bumps it, and a completion whose recorded
// generation no longer matches is discarded.
type session struct {
	analyzing  bool
	generation uint64
}

func NewScanner(client llm.Client, fallback llm.Client, store *history.Store, publisher Publisher, timeout time.Duration) *Scanner {
	return &Scanner{
		client:    client,
		fallback:  fallback,
		history:   store,
		publisher: publisher,
		timeout:   timeout,
		sessions:  make(map[string]*session),
	}
}

// Scan analyzes one capture for the user and returns the normalized
// result. Exactly one scan may run per session; a second concurrent call
// fails with ErrScanInProgress. Remote failures fall back to the
// simulation client when configured, so with a fallback the only error
// paths are concurrency and abandonment.
func (s *Scanner) Scan(ctx context.Context, userID string, capture prompt.Capture) (models.ScanResult, error) {
	gen, err := s.begin(userID)
	if err != nil {
		return models.ScanResult{}, err
	}

	start := time.Now()
	metrics.ScansInFlight.Inc()
	defer metrics.ScansInFlight.Dec()

	source := "text"
	if len(capture.ImageData) > 0 {
		source = "image"
	}

	req := prompt.Build(capture)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outcome := "normalized"
	provider := s.client.SourceName()
	raw, err := s.client.AnalyzeLabel(callCtx, req)
	if err != nil {
		metrics.RemoteErrorsTotal.WithLabelValues(provider).Inc()
		if s.fallback == nil {
			s.finish(userID)
			metrics.ScansTotal.WithLabelValues("error", source).Inc()
			return models.ScanResult{}, fmt.Errorf("analysis failed: %w", err)
		}
		log.WithError(err).Warnf("Remote analysis failed, using %s fallback", s.fallback.SourceName())
		outcome = "fallback"
		provider = s.fallback.SourceName()
		// The fallback is local and deterministic; its error path is
		// unreachable in practice but kept honest.
		raw, err = s.fallback.AnalyzeLabel(callCtx, req)
		if err != nil {
			s.finish(userID)
			metrics.ScansTotal.WithLabelValues("error", source).Inc()
			return models.ScanResult{}, fmt.Errorf("fallback analysis failed: %w", err)
		}
	}

	result := normalizer.Normalize(raw)
	result.ID = uuid.New().String()

	if !s.commit(userID, gen) {
		metrics.ScansTotal.WithLabelValues("abandoned", source).Inc()
		return models.ScanResult{}, ErrScanAbandoned
	}

	s.history.Append(userID, result)
	metrics.ScansTotal.WithLabelValues(outcome, source).Inc()
	metrics.ScanDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	s.publishEvent(userID, outcome, provider, result)

	log.WithFields(log.Fields{
		"user_id": userID,
		"scan_id": result.ID,
		"outcome": outcome,
		"score":   result.Score,
		"status":  result.Status,
	}).Info("Scan completed")

	return result, nil
}

// Abandon discards the in-flight scan for the session, if any. The
// pending analysis keeps running but its result is dropped on completion.
func (s *Scanner) Abandon(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok || !sess.analyzing {
		return
	}
	sess.generation++
	sess.analyzing = false
	log.WithField("user_id", userID).Info("Scan abandoned")
}

// begin transitions the session into the analyzing state and returns the
// generation the eventual completion must match.
func (s *Scanner) begin(userID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{}
		s.sessions[userID] = sess
	}
	if sess.analyzing {
		return 0, ErrScanInProgress
	}
	sess.analyzing = true
	sess.generation++
	return sess.generation, nil
}

// commit ends the analysis and reports whether the result is still wanted.
func (s *Scanner) commit(userID string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok || sess.generation != gen {
		return false
	}
	sess.analyzing = false
	return true
}

// finish resets the session state after a failed analysis.
func (s *Scanner) finish(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[userID]; ok {
		sess.analyzing = false
	}
}

func (s *Scanner) publishEvent(userID, outcome, source string, result models.ScanResult) {
	if s.publisher == nil {
		return
	}
	event := models.ScanCompletedEvent{
		UserID:    userID,
		Outcome:   outcome,
		Source:    source,
		Result:    result,
		Timestamp: time.Now().UTC(),
	}
	if err := s.publisher.Publish(event); err != nil {
		metrics.EventPublishErrorTotal.Inc()
		log.WithError(err).Warn("Failed to publish scan-completed event")
	}
}
