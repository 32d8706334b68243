package tui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"patientboard/internal/board"
	"patientboard/internal/gateway"
)

// resultMsg carries a finished request back onto the event loop.
type resultMsg board.Result

// syncer runs drained requests one at a time, in the order they were issued.
type syncer struct {
	gw      gateway.Gateway
	timeout time.Duration
	log     zerolog.Logger

	mu       sync.Mutex
	queue    []board.Request
	inflight int

	kick    chan struct{}
	results chan board.Result
}

func newSyncer(gw gateway.Gateway, log zerolog.Logger) *syncer {
	return &syncer{
		gw:      gw,
		timeout: 15 * time.Second,
		log:     log,
		kick:    make(chan struct{}, 1),
		results: make(chan board.Result),
	}
}

func (s *syncer) enqueue(reqs ...board.Request) {
	if len(reqs) == 0 {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, reqs...)
	s.mu.Unlock()
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// pending counts queued plus in-flight requests.
func (s *syncer) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) + s.inflight
}

func (s *syncer) pop() (board.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return board.Request{}, false
	}
	req := s.queue[0]
	s.queue = s.queue[1:]
	s.inflight++
	return req, true
}

// step runs the next queued request synchronously.
func (s *syncer) step(ctx context.Context) (board.Result, bool) {
	req, ok := s.pop()
	if !ok {
		return board.Result{}, false
	}
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	res := gateway.Run(rctx, s.gw, req)
	cancel()
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()

	evt := s.log.Debug()
	if res.Err != nil {
		evt = s.log.Warn().Err(res.Err)
	}
	evt.Str("kind", string(req.Kind)).Str("request", req.ID).Str("column", req.Column).Msg("sync")
	return res, true
}

func (s *syncer) run(ctx context.Context) {
	for {
		res, ok := s.step(ctx)
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.kick:
				continue
			}
		}
		select {
		case s.results <- res:
		case <-ctx.Done():
			return
		}
	}
}

// flush waits for queued requests to finish, discarding their results. It returns how many
// were still outstanding at the deadline.
func (s *syncer) flush(timeout time.Duration) int {
	deadline := time.After(timeout)
	for s.pending() > 0 {
		select {
		case <-s.results:
		case <-deadline:
			return s.pending()
		case <-time.After(20 * time.Millisecond):
		}
	}
	return 0
}

// wait blocks for the next result. Re-issue it after every resultMsg.
func (s *syncer) wait() tea.Cmd {
	return func() tea.Msg {
		return resultMsg(<-s.results)
	}
}
