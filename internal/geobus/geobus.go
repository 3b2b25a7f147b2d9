// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/wneessen/everymap/internal/logger"
)

const (
	accuracyEpsilon = 1e-6
	initialBackoff  = time.Second
	maxBackoff      = 30 * time.Second
)

const (
	AccuracyCountry = 300000
	AccuracyRegion  = 100000
	AccuracyCity    = 15000
	AccuracyZip     = 3000
	AccuracyUnknown = 1000000
	TruncPrecision  = 4
)

var ErrLoggerRequired = errors.New("logger is required")

// Provider is a location source. LookupStream emits results until the context is cancelled
// or the source gives up, in which case the channel is closed.
type Provider interface {
	Name() string
	LookupStream(ctx context.Context, key string) <-chan Result
}

// Observer is notified about every result that replaced the best known location of a key.
type Observer func(Result)

// GeoBus keeps the best location result per key and fans it out to subscribers.
type GeoBus struct {
	mu          sync.RWMutex
	logger      *logger.Logger
	observer    Observer
	best        map[string]Result
	subscribers map[string]map[chan Result]struct{}
	globalSubs  map[chan Result]struct{}
}

// Result represents a location result with associated metadata.
type Result struct {
	Key            string
	Lat, Lon       float64
	Alt            float64
	AccuracyMeters float64
	Source         string
	At             time.Time
	TTL            time.Duration
}

// MovedFrom reports whether r is a newer position of the same source as prev. Accuracy is not
// considered.
func (r Result) MovedFrom(prev Result) bool {
	if prev.Key == "" || r.Source != prev.Source || r.At.Before(prev.At) {
		return false
	}
	return r.Lat != prev.Lat || r.Lon != prev.Lon
}

// BetterThan reports whether r is at least as recent as prev and more accurate.
func (r Result) BetterThan(prev Result) bool {
	if prev.Key == "" {
		return true
	}
	if r.At.Before(prev.At) {
		return false
	}
	return r.AccuracyMeters < prev.AccuracyMeters-accuracyEpsilon
}

// IsExpired checks if the Result has exceeded its time-to-live.
func (r Result) IsExpired() bool {
	return r.TTL > 0 && time.Since(r.At) > r.TTL
}

// Coordinate returns the position of the result.
func (r Result) Coordinate() Coordinate {
	return Coordinate{Lat: r.Lat, Lon: r.Lon, Acc: r.AccuracyMeters}
}

// New initializes and returns a new GeoBus.
func New(log *logger.Logger) (*GeoBus, error) {
	if log == nil {
		return nil, ErrLoggerRequired
	}
	return &GeoBus{
		logger:      log,
		best:        make(map[string]Result),
		subscribers: make(map[string]map[chan Result]struct{}),
		globalSubs:  make(map[chan Result]struct{}),
	}, nil
}

// SetObserver registers a function that is called for every accepted result.
func (b *GeoBus) SetObserver(fn Observer) {
	b.mu.Lock()
	b.observer = fn
	b.mu.Unlock()
}

func (b *GeoBus) NewOrchestrator(provider []Provider) *Orchestrator {
	return &Orchestrator{
		Bus:       b,
		Providers: provider,
	}
}

// Subscribe adds a subscriber for updates associated with the given key and buffer size, returning a result
// channel and an unsubscribe function. A non-expired best result is delivered right away.
func (b *GeoBus) Subscribe(key string, size int) (<-chan Result, func()) {
	resultChan := make(chan Result, size)
	b.mu.Lock()
	if _, ok := b.subscribers[key]; !ok {
		b.subscribers[key] = make(map[chan Result]struct{})
	}

	b.subscribers[key][resultChan] = struct{}{}
	if best, ok := b.best[key]; ok && !best.IsExpired() {
		select {
		case resultChan <- best:
		default:
		}
	}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			if subs, ok := b.subscribers[key]; ok {
				delete(subs, resultChan)
				if len(subs) == 0 {
					delete(b.subscribers, key)
				}
			}
			b.mu.Unlock()
			close(resultChan)
		})
	}

	return resultChan, unsub
}

// SubscribeAll subscribes to the updates of all keys.
func (b *GeoBus) SubscribeAll(buffer int) (<-chan Result, func()) {
	ch := make(chan Result, buffer)
	b.mu.Lock()
	b.globalSubs[ch] = struct{}{}
	for _, v := range b.best {
		if v.IsExpired() {
			continue
		}
		select {
		case ch <- v:
		default:
		}
	}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.globalSubs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Publish offers a result to the bus. Results without accuracy information are ignored.
func (b *GeoBus) Publish(r Result) {
	if r.AccuracyMeters == 0 {
		return
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	prev, have := b.best[r.Key]

	// Update/broadcast the result if it's better than the previous one, expired, if the coordinate has
	// changed significantly or if the source of the current best result reports a new position
	if !have || prev.IsExpired() || r.MovedFrom(prev) ||
		r.BetterThan(prev) && r.Coordinate().PosHasSignificantChange(prev.Coordinate()) {
		b.best[r.Key] = r
		b.logger.Debug("accepted location result", slog.String("key", r.Key), slog.String("source", r.Source),
			slog.Float64("accuracy", r.AccuracyMeters))
		if b.observer != nil {
			b.observer(r)
		}
		b.broadcastResult(r)
		return
	}

	// Refresh the TTL if the same source confirmed its position
	if prev.Source == r.Source && !r.At.Before(prev.At) {
		prev.At = r.At
		b.best[r.Key] = prev
	}
}

func (b *GeoBus) broadcastResult(r Result) {
	if subs, ok := b.subscribers[r.Key]; ok {
		for ch := range subs {
			select {
			case ch <- r:
			default:
			}
		}
	}
	for ch := range b.globalSubs {
		select {
		case ch <- r:
		default:
		}
	}
}

// Best returns the best non-expired result for key.
func (b *GeoBus) Best(key string) (Result, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.best[key]
	return r, ok && !r.IsExpired()
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Truncate cuts x down to the given number of decimal places.
func Truncate(x float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Trunc(x*p) / p
}
