// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package screen implements the coordinator of the address search screen. A Controller owns the
// session state and forwards events between the location source, the geocoder and the presenters.
// All state changes happen on the goroutine running Controller.Run. Collaborator calls that may
// block run in their own goroutines and post their results back to the loop.
package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wneessen/everymap/internal/geobus"
	"github.com/wneessen/everymap/internal/geocode"
	"github.com/wneessen/everymap/internal/logger"
	"github.com/wneessen/everymap/internal/vartype"
)

const (
	DefaultTimeout = time.Second * 10
	eventQueueSize = 64
)

var (
	ErrIndexOutOfRange  = errors.New("result index out of range")
	ErrControllerClosed = errors.New("screen controller is not running")
	ErrAlreadyRunning   = errors.New("screen controller is already running")
	ErrMissingOption    = errors.New("missing required option")
)

// MapView is the map surface of the screen.
type MapView interface {
	CenterOn(coord geobus.Coordinate)
	SetRegion(region geocode.Region)
	SetVisible(visible bool)
}

// ResultPresenter is the list of search results the user selects from.
type ResultPresenter interface {
	Render(result geocode.SearchResult)
	NoResults(query string)
	SetVisible(visible bool)
}

// DetailOpener presents the detail view for a selected search result.
type DetailOpener interface {
	Open(detail Detail)
}

// Detail is handed to the DetailOpener when a result is selected. Origin is unset if no location
// was reported during the session.
type Detail struct {
	Candidate  geocode.Candidate
	RegionName string
	Origin     vartype.Variable[geobus.Coordinate]
}

// SessionState is the state owned by the Controller.
type SessionState struct {
	CurrentLocation vartype.Variable[geobus.Coordinate]
	CurrentRegion   vartype.Variable[geocode.Region]
	LastSearch      vartype.Variable[geocode.SearchResult]
	Presenting      bool
	Centered        bool
}

// Options configure a Controller. Geocoder, Map, Results, Detail and Logger are required.
type Options struct {
	Geocoder geocode.Geocoder
	Map      MapView
	Results  ResultPresenter
	Detail   DetailOpener
	Logger   *logger.Logger

	// Timeout bounds every geocoder call. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Debounce delays searches until the query did not change for the given duration. Zero
	// searches on every call.
	Debounce time.Duration
}

type event func(ctx context.Context)

type Controller struct {
	geocoder geocode.Geocoder
	mapView  MapView
	results  ResultPresenter
	detail   DetailOpener
	logger   *logger.Logger
	timeout  time.Duration
	debounce time.Duration

	events  chan event
	done    chan struct{}
	running atomic.Bool
	pending sync.WaitGroup

	// only accessed from the loop goroutine
	state     SessionState
	querySeq  uint64
	debouncer *time.Timer
}

func New(opts Options) (*Controller, error) {
	switch {
	case opts.Geocoder == nil:
		return nil, fmt.Errorf("%w: geocoder", ErrMissingOption)
	case opts.Map == nil:
		return nil, fmt.Errorf("%w: map view", ErrMissingOption)
	case opts.Results == nil:
		return nil, fmt.Errorf("%w: result presenter", ErrMissingOption)
	case opts.Detail == nil:
		return nil, fmt.Errorf("%w: detail opener", ErrMissingOption)
	case opts.Logger == nil:
		return nil, fmt.Errorf("%w: logger", ErrMissingOption)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}

	return &Controller{
		geocoder: opts.Geocoder,
		mapView:  opts.Map,
		results:  opts.Results,
		detail:   opts.Detail,
		logger:   opts.Logger,
		timeout:  opts.Timeout,
		debounce: opts.Debounce,
		events:   make(chan event, eventQueueSize),
		done:     make(chan struct{}),
	}, nil
}

// Run processes events until ctx is cancelled. It waits for in-flight geocoder calls to return
// before it returns. A Controller can only be run once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		if c.debouncer != nil {
			c.debouncer.Stop()
		}
		close(c.done)
		c.pending.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			ev(ctx)
		}
	}
}

// post enqueues an event for the loop. It reports false if the loop has stopped.
func (c *Controller) post(ev event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// call runs fn on the loop and waits for it to finish.
func (c *Controller) call(ctx context.Context, fn func(ctx context.Context)) error {
	finished := make(chan struct{})
	if !c.post(func(ctx context.Context) {
		defer close(finished)
		fn(ctx)
	}) {
		return ErrControllerClosed
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrControllerClosed
	}
}

// OnLocationAvailable records a new location. The first location of the session centers the
// map. Every location triggers a reverse geocoding of its region.
func (c *Controller) OnLocationAvailable(coord geobus.Coordinate) {
	c.post(func(ctx context.Context) {
		if !coord.Valid() {
			c.logger.Warn("ignoring invalid location", slog.String("coordinate", coord.String()))
			return
		}
		c.state.CurrentLocation.Set(coord)
		if !c.state.Centered {
			c.mapView.CenterOn(coord)
			c.state.Centered = true
		}
		c.reverse(ctx, coord)
	})
}

// OnLocationUnavailable records that a location source failed. The session keeps working with
// whatever location is already known.
func (c *Controller) OnLocationUnavailable(err error) {
	c.post(func(context.Context) {
		c.logger.Warn("location is unavailable", logger.Err(err))
	})
}

// RefreshRegion reverse geocodes the current location again. It does nothing if no location is
// known yet.
func (c *Controller) RefreshRegion() {
	c.post(func(ctx context.Context) {
		coord, ok := c.state.CurrentLocation.Get()
		if !ok {
			return
		}
		c.reverse(ctx, coord)
	})
}

// reverse starts a reverse geocoding request. Overlapping requests are not cancelled, the result
// that arrives last wins.
func (c *Controller) reverse(ctx context.Context, coord geobus.Coordinate) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		addr, err := c.geocoder.Reverse(reqCtx, coord)
		cancel()
		c.post(func(context.Context) {
			c.onGeocodeResult(coord, addr, err)
		})
	}()
}

func (c *Controller) onGeocodeResult(coord geobus.Coordinate, addr geocode.Address, err error) {
	if err != nil {
		c.logger.Warn("failed to reverse geocode location, keeping previous region", logger.Err(err),
			slog.String("coordinate", coord.String()))
		return
	}
	if !addr.AddressFound {
		c.logger.Warn("no address found for location, keeping previous region",
			slog.String("coordinate", coord.String()))
		return
	}
	c.state.CurrentRegion.Set(addr.Region)
	c.mapView.SetRegion(addr.Region)
	c.logger.Debug("region updated", slog.String("region", addr.Region.Name()),
		slog.Bool("cache_hit", addr.CacheHit))
}

// OnSearchQueryChanged searches for query. Blank queries are ignored.
func (c *Controller) OnSearchQueryChanged(query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}
	c.post(func(ctx context.Context) {
		c.querySeq++
		if c.debounce == 0 {
			c.search(ctx, query)
			return
		}

		seq := c.querySeq
		if c.debouncer != nil {
			c.debouncer.Stop()
		}
		c.debouncer = time.AfterFunc(c.debounce, func() {
			c.post(func(ctx context.Context) {
				if seq != c.querySeq {
					return
				}
				c.search(ctx, query)
			})
		})
	})
}

func (c *Controller) search(ctx context.Context, query string) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		result, err := c.geocoder.Search(reqCtx, query)
		cancel()
		c.post(func(context.Context) {
			c.onSearchResult(query, result, err)
		})
	}()
}

func (c *Controller) onSearchResult(query string, result geocode.SearchResult, err error) {
	if err != nil || result.Empty() {
		if err != nil {
			c.logger.Warn("address search failed", logger.Err(err), slog.String("query", query))
		}
		empty := geocode.SearchResult{Query: query}
		c.state.LastSearch.Set(empty)
		c.results.Render(empty)
		c.results.NoResults(query)
		return
	}
	if result.Query == "" {
		result.Query = query
	}
	c.state.LastSearch.Set(result)
	c.results.Render(result)
	c.logger.Debug("search results updated", slog.String("query", query),
		slog.Int("candidates", len(result.Candidates)), slog.Bool("cache_hit", result.CacheHit))
}

// OnResultSelected opens the detail view for the search result at index. An index outside the
// last search result returns ErrIndexOutOfRange and changes nothing. A selection whose ctx is
// cancelled before the controller gets to it is dropped.
func (c *Controller) OnResultSelected(ctx context.Context, index int) error {
	var selectErr error
	err := c.call(ctx, func(context.Context) {
		if selectErr = ctx.Err(); selectErr != nil {
			return
		}
		result := c.state.LastSearch.Value()
		if index < 0 || index >= len(result.Candidates) {
			selectErr = fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(result.Candidates))
			return
		}
		c.detail.Open(Detail{
			Candidate:  result.Candidates[index],
			RegionName: c.state.CurrentRegion.Value().Name(),
			Origin:     c.state.CurrentLocation,
		})
	})
	if err != nil {
		return err
	}
	return selectErr
}

// OnSearchPresentationChanged switches between the map and the result list.
func (c *Controller) OnSearchPresentationChanged(presenting bool) {
	c.post(func(context.Context) {
		c.state.Presenting = presenting
		c.mapView.SetVisible(!presenting)
		c.results.SetVisible(presenting)
	})
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot(ctx context.Context) (SessionState, error) {
	var state SessionState
	err := c.call(ctx, func(context.Context) {
		state = c.state
		if last, ok := c.state.LastSearch.Get(); ok {
			last.Candidates = slices.Clone(last.Candidates)
			state.LastSearch.Set(last)
		}
	})
	return state, err
}
