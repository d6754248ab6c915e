// Package tracker keeps the "next pass" record for each satellite and
// resolves concurrent searches for the same satellite in favor of the most
// recent request.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/star/skypass/internal/metrics"
	"github.com/star/skypass/internal/passes"
	"github.com/star/skypass/internal/propagation"
	"github.com/star/skypass/internal/tle"
	"github.com/star/skypass/internal/transform"
)

// Result is the committed outcome of one next-pass search.
type Result struct {
	Token     uint64      `json:"token"`
	NORADID   int         `json:"norad_id"`
	Name      string      `json:"name"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Start     time.Time   `json:"start"`
	Completed time.Time   `json:"completed"`
	Found     bool        `json:"found"`
	Pass      passes.Pass `json:"pass"`
	Error     string      `json:"error,omitempty"`
}

// Status is the state of a satellite's record.
type Status struct {
	LatestToken uint64  `json:"latest_token"`
	Pending     bool    `json:"pending"`
	Result      *Result `json:"result,omitempty"`
}

// Tracker runs next-pass searches in the background. Tokens come from a
// single counter shared by all satellites; for each satellite only the
// result of the most recently issued token is ever committed.
type Tracker struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   passes.Options
	model  propagation.ModelFactory
	logger *slog.Logger

	mu      sync.Mutex
	counter uint64
	latest  map[int]uint64
	results map[int]Result
	wg      sync.WaitGroup
}

// New creates a Tracker whose searches stop when ctx is done or Close is
// called. A nil model uses propagation.KeplerModel.
func New(ctx context.Context, opts passes.Options, model propagation.ModelFactory, logger *slog.Logger) *Tracker {
	if model == nil {
		model = propagation.KeplerModel
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Tracker{
		ctx:     ctx,
		cancel:  cancel,
		opts:    opts,
		model:   model,
		logger:  logger,
		latest:  make(map[int]uint64),
		results: make(map[int]Result),
	}
}

// Request starts a search for the next pass of entry over obs after start
// and returns its token. Any search still running for the same satellite
// is superseded: it stops at its next poll and its result is dropped.
func (t *Tracker) Request(entry tle.TLE, obs transform.Observer, start time.Time) uint64 {
	norad := entry.CatalogNumber

	t.mu.Lock()
	t.counter++
	token := t.counter
	t.latest[norad] = token
	t.mu.Unlock()

	model, err := t.model(entry)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		res := Result{
			Token:     token,
			NORADID:   norad,
			Name:      entry.Name,
			Latitude:  obs.LatDeg,
			Longitude: obs.LonDeg,
			Start:     start,
		}
		if err != nil {
			res.Error = err.Error()
			res.Completed = time.Now()
			t.commit(res)
			return
		}

		cancelled := func() bool {
			return t.ctx.Err() != nil || !t.isLatest(norad, token)
		}

		began := time.Now()
		p, ok := passes.FindNextPassWith(model, obs, start, t.opts, cancelled)
		outcome := metrics.SearchOutcome(ok, cancelled)
		metrics.RecordPassSearch(time.Since(began), outcome)

		if t.ctx.Err() != nil {
			return
		}
		res.Found, res.Pass = ok, p
		res.Completed = time.Now()
		t.commit(res)
	}()

	return token
}

func (t *Tracker) isLatest(norad int, token uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest[norad] == token
}

// commit stores res unless a newer request for the satellite was issued.
func (t *Tracker) commit(res Result) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.latest[res.NORADID] != res.Token {
		metrics.IncStaleResults()
		t.logger.Debug("dropping superseded pass result",
			"norad_id", res.NORADID,
			"token", res.Token,
			"latest_token", t.latest[res.NORADID],
		)
		return false
	}
	t.results[res.NORADID] = res
	return true
}

// Latest returns the committed result for a satellite.
func (t *Tracker) Latest(norad int) (Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.results[norad]
	return r, ok
}

// Status reports the latest token for a satellite, whether its search is
// still running, and the committed result if any. ok is false when the
// satellite was never requested.
func (t *Tracker) Status(norad int) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	token, ok := t.latest[norad]
	if !ok {
		return Status{}, false
	}
	s := Status{LatestToken: token}
	if r, ok := t.results[norad]; ok {
		s.Result = &r
		s.Pending = r.Token != token
	} else {
		s.Pending = true
	}
	return s, true
}

// Wait blocks until every search started so far has finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// Close cancels running searches and waits for them to return.
func (t *Tracker) Close() {
	t.cancel()
	t.wg.Wait()
}
