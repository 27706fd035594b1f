package agent

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"augur/internal/decision"
	"augur/internal/gateway/lobby"
	"augur/internal/gateway/notifier"
	"augur/internal/logger"
	"augur/internal/pkg/circuit"
	"augur/internal/scoring"
)

// Deps are the components one game cycle runs through.
type Deps struct {
	Assets    AssetLister
	Forecasts Aggregator
	History   HistoryReader
	Decider   Decider
	Submitter Submitter
	Scorer    Scorer
	Notifier  notifier.TextNotifier
}

type Options struct {
	// Username identifies the agent among participants and rankings.
	Username         string
	HistoryWindow    int
	StaleAfter       time.Duration
	PipelineTimeout  time.Duration
	FailureThreshold int
	FailureCooldown  time.Duration
}

type joinResult struct {
	gameID string
	result decision.Result
	err    error
}

type scoreResult struct {
	gameID string
	report scoring.Report
	err    error
}

// Handler is the game lifecycle state machine. A single goroutine (Run)
// owns all state; pipelines run in their own goroutines and report back
// over channels so the event loop never waits on the network.
type Handler struct {
	deps    Deps
	opts    Options
	breaker *circuit.CircuitBreaker

	phase      Phase
	active     *session
	pendingEnd *lobby.GameUpdate
	// pendingStart is the newest waiting game seen while scoring.
	pendingStart *lobby.GameUpdate

	joinDone  chan joinResult
	scoreDone chan scoreResult

	gamesJoined int
	gamesScored int
	failures    int
	lastError   string
	lastResult  *GameResult

	status atomic.Value
	now    func() time.Time
}

func NewHandler(deps Deps, opts Options) *Handler {
	if deps.Notifier == nil {
		deps.Notifier = notifier.Noop{}
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 3
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.FailureCooldown <= 0 {
		opts.FailureCooldown = 2 * time.Minute
	}
	opts.Username = strings.TrimSpace(opts.Username)
	h := &Handler{
		deps:      deps,
		opts:      opts,
		breaker:   circuit.NewCircuitBreaker("game-pipeline", opts.FailureThreshold, opts.FailureCooldown),
		phase:     PhaseWatching,
		joinDone:  make(chan joinResult, 1),
		scoreDone: make(chan scoreResult, 1),
		now:       time.Now,
	}
	h.breaker.SetStateChangeHandler(func(name string, from, to circuit.State) {
		logger.Warnf("[agent] circuit %s: %s -> %s", name, from, to)
	})
	h.refreshStatus()
	return h
}

// Status returns the latest snapshot. Safe from any goroutine.
func (h *Handler) Status() Status {
	if v, ok := h.status.Load().(Status); ok {
		return v
	}
	return Status{Phase: PhaseWatching}
}

// Run consumes lifecycle updates until ctx is cancelled or the channel is
// closed. A game in flight when the channel closes stays unscored.
func (h *Handler) Run(ctx context.Context, updates <-chan lobby.GameUpdate) error {
	logger.Infof("[agent] lifecycle handler started (user=%s)", h.opts.Username)
	for {
		select {
		case <-ctx.Done():
			h.logAbandonedOnExit("context cancelled")
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				h.logAbandonedOnExit("lifecycle stream closed")
				return nil
			}
			h.handleUpdate(ctx, u)
		case r := <-h.joinDone:
			h.onJoinDone(ctx, r)
		case r := <-h.scoreDone:
			h.onScoreDone(ctx, r)
		}
		h.refreshStatus()
	}
}

func (h *Handler) handleUpdate(ctx context.Context, u lobby.GameUpdate) {
	id := strings.TrimSpace(u.ID)
	if id == "" {
		return
	}
	switch h.phase {
	case PhaseWatching:
		if u.State == lobby.StateWaitingForPlayers {
			h.startJoin(ctx, u)
		}
	case PhaseJoining:
		if id != h.active.id {
			logger.Debugf("[agent] ignoring game=%s state=%s while joining game=%s", id, u.State, h.active.id)
			return
		}
		if u.State == lobby.StateEnded {
			logger.Infof("[agent] game=%s ended before the join completed, scoring deferred", id)
			cp := u
			h.pendingEnd = &cp
		}
	case PhaseJoined:
		if id == h.active.id {
			if u.State == lobby.StateEnded {
				h.startScoring(ctx, u)
			}
			return
		}
		if u.State == lobby.StateWaitingForPlayers && h.isStale() {
			logger.Warnf("[agent] abandoning game=%s unscored: no end event after %s", h.active.id, h.now().Sub(h.active.joinedAt).Round(time.Second))
			h.lastError = fmt.Sprintf("game %s abandoned without end event", h.active.id)
			h.reset()
			h.startJoin(ctx, u)
			return
		}
		logger.Debugf("[agent] ignoring game=%s state=%s while in game=%s", id, u.State, h.active.id)
	case PhaseScoring:
		if id != h.active.id && u.State == lobby.StateWaitingForPlayers {
			cp := u
			h.pendingStart = &cp
		}
	}
}

func (h *Handler) isStale() bool {
	if h.opts.StaleAfter <= 0 || h.active == nil || h.active.joinedAt.IsZero() {
		return false
	}
	return h.now().Sub(h.active.joinedAt) > h.opts.StaleAfter
}

func (h *Handler) startJoin(ctx context.Context, u lobby.GameUpdate) {
	if hasParticipant(u.Participants, h.opts.Username) {
		logger.Infof("[agent] already participating in game=%s, not joining again", u.ID)
		return
	}
	if !h.breaker.Allow() {
		logger.Warnf("[agent] skipping game=%s: pipeline circuit open after %d failures", u.ID, h.breaker.Failures())
		return
	}
	h.phase = PhaseJoining
	h.active = &session{id: u.ID, startedAt: h.now()}
	h.pendingEnd = nil
	logger.Infof("[agent] game=%s waiting for players, starting pipeline", u.ID)
	go h.runJoin(ctx, u.ID)
}

func (h *Handler) onJoinDone(ctx context.Context, r joinResult) {
	if h.phase != PhaseJoining || h.active == nil || h.active.id != r.gameID {
		logger.Warnf("[agent] dropping stale pipeline result for game=%s", r.gameID)
		return
	}
	if r.err != nil {
		h.breaker.RecordFailure()
		h.failures++
		h.lastError = r.err.Error()
		logger.Errorf("[agent] game=%s abandoned: %v", r.gameID, r.err)
		if h.pendingEnd != nil {
			logger.Infof("[agent] discarding deferred end event for game=%s", r.gameID)
		}
		h.reset()
		return
	}
	h.breaker.RecordSuccess()
	h.gamesJoined++
	h.lastError = ""
	h.phase = PhaseJoined
	h.active.joinedAt = h.now()
	h.active.traceID = r.result.TraceID
	h.active.predictions = r.result.Decision
	h.active.degenerate = r.result.Degenerate
	if end := h.pendingEnd; end != nil {
		h.pendingEnd = nil
		h.startScoring(ctx, *end)
	}
}

func (h *Handler) startScoring(ctx context.Context, u lobby.GameUpdate) {
	h.phase = PhaseScoring
	predictions := make(decision.Decision, len(h.active.predictions))
	for k, v := range h.active.predictions {
		predictions[k] = v
	}
	logger.Infof("[agent] game=%s ended, scoring %d predictions", u.ID, len(predictions))
	go h.runScoring(ctx, u, predictions)
}

func (h *Handler) onScoreDone(ctx context.Context, r scoreResult) {
	if r.err != nil {
		logger.Warnf("[agent] scoring game=%s: %v", r.gameID, r.err)
		h.lastError = r.err.Error()
	} else {
		h.gamesScored++
		h.lastResult = &GameResult{
			GameID:   r.gameID,
			Rank:     r.report.Rank,
			Points:   r.report.Points,
			Hits:     r.report.Hits(),
			Scored:   len(r.report.Outcomes),
			Skipped:  r.report.Skipped,
			ScoredAt: h.now(),
		}
	}
	h.reset()
	if next := h.pendingStart; next != nil {
		h.pendingStart = nil
		h.handleUpdate(ctx, *next)
	}
}

func (h *Handler) reset() {
	h.phase = PhaseWatching
	h.active = nil
	h.pendingEnd = nil
}

func (h *Handler) logAbandonedOnExit(reason string) {
	if h.active != nil {
		logger.Warnf("[agent] %s with game=%s in phase %s, left unscored", reason, h.active.id, h.phase)
		return
	}
	logger.Infof("[agent] %s, lifecycle handler stopped", reason)
}

func (h *Handler) refreshStatus() {
	st := Status{
		Phase:       h.phase,
		GamesJoined: h.gamesJoined,
		GamesScored: h.gamesScored,
		Failures:    h.failures,
		Breaker:     h.breaker.State().String(),
		LastError:   h.lastError,
		LastResult:  h.lastResult,
		UpdatedAt:   h.now(),
	}
	if s := h.active; s != nil {
		st.GameID = s.id
		st.TraceID = s.traceID
		st.Degenerate = s.degenerate
		if len(s.predictions) > 0 {
			st.Predictions = make(map[string]int, len(s.predictions))
			for k, v := range s.predictions {
				st.Predictions[k] = v
			}
		}
		if !s.joinedAt.IsZero() {
			at := s.joinedAt
			st.JoinedAt = &at
		}
	}
	h.status.Store(st)
}

func hasParticipant(participants []string, username string) bool {
	if username == "" {
		return false
	}
	for _, p := range participants {
		if strings.EqualFold(strings.TrimSpace(p), username) {
			return true
		}
	}
	return false
}
