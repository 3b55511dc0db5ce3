package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// Clock abstracts time for the scheduler.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type searchRequest struct {
	ctx        context.Context
	reply      chan searchReply
	query      string
	maxResults int
}

type searchReply struct {
	err  error
	resp model.SearchResponse
}

// Scheduler serializes searches through a FIFO queue with a single request in
// flight and a minimum spacing between request starts.
type Scheduler struct {
	next    Searcher
	clock   Clock
	limiter *rate.Limiter
	queue   chan searchRequest
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewScheduler wraps next. A nil clock uses wall time.
func NewScheduler(next Searcher, interval time.Duration, clock Clock) *Scheduler {
	if clock == nil {
		clock = realClock{}
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	s := &Scheduler{
		next:    next,
		clock:   clock,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		queue:   make(chan searchRequest),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

// Search enqueues the query and waits for its turn.
func (s *Scheduler) Search(ctx context.Context, query string, maxResults int) (model.SearchResponse, error) {
	req := searchRequest{
		ctx:        ctx,
		query:      query,
		maxResults: maxResults,
		reply:      make(chan searchReply, 1),
	}

	select {
	case s.queue <- req:
	case <-ctx.Done():
		return model.SearchResponse{}, ctx.Err()
	case <-s.done:
		return model.SearchResponse{}, fmt.Errorf("%w: scheduler closed", common.ErrSearchUnavailable)
	}

	select {
	case r := <-req.reply:
		return r.resp, r.err
	case <-ctx.Done():
		return model.SearchResponse{}, ctx.Err()
	case <-s.stopped:
		return model.SearchResponse{}, fmt.Errorf("%w: scheduler closed", common.ErrSearchUnavailable)
	}
}

// Close stops the worker. Queued callers receive ErrSearchUnavailable.
func (s *Scheduler) Close() error {
	s.once.Do(func() {
		close(s.done)
		<-s.stopped
	})
	return nil
}

func (s *Scheduler) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.done:
			return
		case req := <-s.queue:
			resp, err := s.serve(req)
			req.reply <- searchReply{resp: resp, err: err}
		}
	}
}

func (s *Scheduler) serve(req searchRequest) (model.SearchResponse, error) {
	if err := req.ctx.Err(); err != nil {
		return model.SearchResponse{}, err
	}

	now := s.clock.Now()
	reservation := s.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		select {
		case <-s.clock.After(delay):
		case <-req.ctx.Done():
			reservation.CancelAt(s.clock.Now())
			return model.SearchResponse{}, req.ctx.Err()
		case <-s.done:
			reservation.CancelAt(s.clock.Now())
			return model.SearchResponse{}, fmt.Errorf("%w: scheduler closed", common.ErrSearchUnavailable)
		}
	}

	return s.next.Search(req.ctx, req.query, req.maxResults)
}
