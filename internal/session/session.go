// Package session holds the client location state: the selected coordinate,
// the chart controls, and the report fetched for the coordinate.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/augurworld/augur/internal/chart"
	"github.com/augurworld/augur/internal/domain"
	"github.com/augurworld/augur/internal/urlstate"
)

// ErrNoReport is returned by Chart while no report is loaded.
var ErrNoReport = errors.New("no report loaded")

// Status is the load state of the current coordinate.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusError:
		return "error"
	default:
		return "status(" + strconv.Itoa(int(s)) + ")"
	}
}

// Fetcher loads the report for a coordinate.
type Fetcher interface {
	Fetch(ctx context.Context, coord domain.Coordinate) (*domain.PrecipitationReport, error)
}

// Labeler resolves a coordinate to a display label. A Fetcher that also
// implements Labeler gets its label requested alongside every fetch.
type Labeler interface {
	Label(ctx context.Context, coord domain.Coordinate, lang string) (string, error)
}

// State is a snapshot of the session.
type State struct {
	Coordinate    *domain.Coordinate
	Year          int
	OverlayPeriod int
	Uncertainty   bool
	Language      string
	Report        *domain.PrecipitationReport
	Status        Status
	Err           error
	Place         string
}

// Session owns the client state. Only the response to the most recent
// selection is ever applied, and listeners see snapshots in the order the
// state changed.
type Session struct {
	fetcher      Fetcher
	labeler      Labeler
	codec        *urlstate.Codec
	periods      []int
	tileTemplate string
	logger       *slog.Logger

	mu        sync.Mutex
	state     State
	seq       uint64
	cancel    context.CancelFunc
	listeners []func(State)

	// Snapshots waiting for delivery, queued under mu. At most one goroutine
	// drains the queue at a time.
	pending     []State
	dispatching bool
}

// New creates an idle session. periods are the return periods the chart
// shows; tileTemplate is the overlay URL with a {period} placeholder.
func New(fetcher Fetcher, codec *urlstate.Codec, periods []int, tileTemplate string, logger *slog.Logger) *Session {
	defaults := codec.Defaults()
	s := &Session{
		fetcher:      fetcher,
		codec:        codec,
		periods:      slices.Clone(periods),
		tileTemplate: tileTemplate,
		logger:       logger,
		state: State{
			Year:          defaults.Year,
			OverlayPeriod: defaults.OverlayPeriod,
		},
	}
	if l, ok := fetcher.(Labeler); ok {
		s.labeler = l
	}
	return s
}

// OnChange registers fn to run after every state change. Snapshots are
// delivered one at a time, in the order the changes happened.
func (s *Session) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// State returns a snapshot of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SelectLocation makes coord the current coordinate, drops the previous
// report and starts fetching. Any fetch still in flight is cancelled and its
// result discarded. The returned channel closes once this request settles.
func (s *Session) SelectLocation(ctx context.Context, coord domain.Coordinate) <-chan struct{} {
	s.mu.Lock()
	seq := s.supersedeLocked()
	fctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	c := coord
	s.state.Coordinate = &c
	s.state.Report = nil
	s.state.Status = StatusLoading
	s.state.Err = nil
	s.state.Place = ""
	lang := s.state.Language
	drain := s.enqueueLocked()
	s.mu.Unlock()

	if drain {
		s.dispatch()
	}

	done := make(chan struct{})
	go s.load(fctx, cancel, seq, coord, lang, done)
	return done
}

// Retry re-issues the fetch for the current coordinate.
func (s *Session) Retry(ctx context.Context) <-chan struct{} {
	s.mu.Lock()
	coord := s.state.Coordinate
	s.mu.Unlock()
	if coord == nil {
		return closed()
	}
	return s.SelectLocation(ctx, *coord)
}

// Clear forgets the coordinate and report and cancels any fetch in flight.
func (s *Session) Clear() {
	s.update(func(st *State) {
		s.supersedeLocked()
		st.Coordinate = nil
		st.Report = nil
		st.Status = StatusIdle
		st.Err = nil
		st.Place = ""
	})
}

// SetYear selects the future year the chart shows. No fetch is needed.
func (s *Session) SetYear(year int) error {
	if !s.codec.ValidYear(year) {
		return fmt.Errorf("%w: year %d is not available", domain.ErrBadRequest, year)
	}
	s.update(func(st *State) { st.Year = year })
	return nil
}

// SetUncertainty toggles the uncertainty band. No fetch is needed.
func (s *Session) SetUncertainty(on bool) {
	s.update(func(st *State) { st.Uncertainty = on })
}

// SetOverlayPeriod selects the return period of the map overlay. It does not
// affect the chart.
func (s *Session) SetOverlayPeriod(period int) error {
	if !s.codec.ValidOverlayPeriod(period) {
		return fmt.Errorf("%w: overlay period %d is not available", domain.ErrBadRequest, period)
	}
	s.update(func(st *State) { st.OverlayPeriod = period })
	return nil
}

// SetLanguage sets the UI language carried in share links and label requests.
func (s *Session) SetLanguage(lang string) {
	s.update(func(st *State) { st.Language = lang })
}

// ApplyQuery initialises the state from a share query. Invalid values fall
// back to defaults; a valid lat/lng pair selects that location.
func (s *Session) ApplyQuery(ctx context.Context, rawQuery string) <-chan struct{} {
	q := s.codec.Decode(rawQuery)
	s.update(func(st *State) {
		st.Year = q.Year
		st.OverlayPeriod = q.OverlayPeriod
		st.Language = q.Language
	})
	if q.Coordinate == nil {
		return closed()
	}
	return s.SelectLocation(ctx, *q.Coordinate)
}

// ShareQuery encodes the shareable state as a query string.
func (s *Session) ShareQuery() string {
	st := s.State()
	return s.codec.Encode(urlstate.State{
		Coordinate:    st.Coordinate,
		Year:          st.Year,
		OverlayPeriod: st.OverlayPeriod,
		Language:      st.Language,
	})
}

// OverlayTileURL returns the tile URL template for the selected overlay period.
func (s *Session) OverlayTileURL() string {
	period := s.State().OverlayPeriod
	return strings.ReplaceAll(s.tileTemplate, "{period}", strconv.Itoa(period))
}

// Chart renders the current report for the selected year.
func (s *Session) Chart() (chart.Model, error) {
	st := s.State()
	if st.Report == nil {
		return chart.Model{}, ErrNoReport
	}
	return chart.Render(st.Report, st.Year, s.periods, st.Uncertainty)
}

func (s *Session) load(ctx context.Context, cancel context.CancelFunc, seq uint64, coord domain.Coordinate, lang string, done chan struct{}) {
	defer close(done)
	defer cancel()

	var wg sync.WaitGroup
	if s.labeler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			label, err := s.labeler.Label(ctx, coord, lang)
			if err != nil {
				s.logger.Debug("place label unavailable", "lat", coord.Lat, "lng", coord.Lng, "error", err)
				return
			}
			s.apply(seq, func(st *State) { st.Place = label })
		}()
	}

	report, err := s.fetcher.Fetch(ctx, coord)
	applied := s.apply(seq, func(st *State) {
		if err != nil {
			st.Status = StatusError
			st.Err = err
			return
		}
		st.Report = report
		st.Status = StatusLoaded
	})
	if !applied {
		s.logger.Debug("discarded stale location response", "lat", coord.Lat, "lng", coord.Lng)
	} else if err != nil {
		s.logger.Warn("location fetch failed", "lat", coord.Lat, "lng", coord.Lng, "error", err)
	}
	wg.Wait()
}

// apply runs fn only if seq is still the latest selection.
func (s *Session) apply(seq uint64, fn func(*State)) bool {
	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return false
	}
	fn(&s.state)
	drain := s.enqueueLocked()
	s.mu.Unlock()

	if drain {
		s.dispatch()
	}
	return true
}

func (s *Session) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	drain := s.enqueueLocked()
	s.mu.Unlock()

	if drain {
		s.dispatch()
	}
}

// supersedeLocked invalidates the request in flight and returns the new sequence number.
func (s *Session) supersedeLocked() uint64 {
	s.seq++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return s.seq
}

// enqueueLocked queues a snapshot of the current state. It reports whether
// the caller must drain the queue, which is the case when no other goroutine
// is already draining it.
func (s *Session) enqueueLocked() bool {
	if len(s.listeners) == 0 {
		return false
	}
	s.pending = append(s.pending, s.state)
	if s.dispatching {
		return false
	}
	s.dispatching = true
	return true
}

// dispatch delivers queued snapshots in order until the queue is empty.
// Listeners run without mu held and may call back into the session; the
// snapshots they cause are delivered after the current one.
func (s *Session) dispatch() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.dispatching = false
			s.mu.Unlock()
			return
		}
		snap := s.pending[0]
		s.pending[0] = State{}
		s.pending = s.pending[1:]
		listeners := slices.Clone(s.listeners)
		s.mu.Unlock()

		for _, fn := range listeners {
			fn(snap)
		}
	}
}

func closed() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
