// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpsd

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/everymap/internal/geobus"
	"github.com/wneessen/everymap/internal/logger"
)

const (
	DefaultAddress = "localhost:2947"
	name           = "gpsd"
)

var ErrWatchEnded = errors.New("gpsd watch ended")

type GeolocationGPSDProvider struct {
	name    string
	addr    string
	period  time.Duration
	ttl     time.Duration
	logger  *logger.Logger
	watchFn func(ctx context.Context, fixes chan<- geobus.Coordinate) error
}

func NewGeolocationGPSDProvider(log *logger.Logger, addr string) (*GeolocationGPSDProvider, error) {
	if log == nil {
		return nil, geobus.ErrLoggerRequired
	}
	if addr == "" {
		addr = DefaultAddress
	}
	provider := &GeolocationGPSDProvider{
		name:   name,
		addr:   addr,
		period: time.Second * 30,
		ttl:    time.Minute * 2,
		logger: log,
	}
	provider.watchFn = provider.watch
	return provider, nil
}

func (p *GeolocationGPSDProvider) Name() string {
	return p.name
}

// LookupStream watches gpsd for position reports and emits a result for every fix that moved.
// Lost connections are re-established after the provider's period.
func (p *GeolocationGPSDProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)
	fixes := make(chan geobus.Coordinate)

	go p.connect(ctx, fixes)
	go func() {
		defer close(out)
		state := geobus.GeolocationState{}

		for {
			var coord geobus.Coordinate
			select {
			case <-ctx.Done():
				return
			case coord = <-fixes:
			}

			if !state.HasChanged(coord) {
				continue
			}
			state.Update(coord)

			select {
			case <-ctx.Done():
				return
			case out <- p.createResult(key, coord):
			}
		}
	}()

	return out
}

func (p *GeolocationGPSDProvider) connect(ctx context.Context, fixes chan<- geobus.Coordinate) {
	for {
		if err := p.watchFn(ctx, fixes); err != nil {
			p.logger.Debug("gpsd watch failed, retrying", logger.Err(err), slog.String("address", p.addr),
				slog.Duration("retry_in", p.period))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.period):
		}
	}
}

// watch connects to gpsd and forwards fixes until the connection ends. go-gpsd has no way to
// close a session, so a cancelled context only detaches from it.
func (p *GeolocationGPSDProvider) watch(ctx context.Context, fixes chan<- geobus.Coordinate) error {
	session, err := gpsd.Dial(p.addr)
	if err != nil {
		return err
	}

	session.AddFilter("TPV", func(r any) {
		tpv, ok := r.(*gpsd.TPVReport)
		if !ok {
			return
		}
		coord, ok := coordFromTPV(tpv)
		if !ok {
			return
		}
		select {
		case <-ctx.Done():
		case fixes <- coord:
		}
	})

	done := session.Watch()
	select {
	case <-ctx.Done():
		return nil
	case <-done:
		return ErrWatchEnded
	}
}

// coordFromTPV converts a TPV report into a coordinate. Reports without at least a 2D fix are
// rejected. The accuracy is the larger of the horizontal error estimates.
func coordFromTPV(tpv *gpsd.TPVReport) (geobus.Coordinate, bool) {
	if tpv == nil || tpv.Mode < gpsd.Mode2D {
		return geobus.Coordinate{}, false
	}
	acc := math.Max(tpv.Epx, tpv.Epy)
	if acc <= 0 {
		acc = geobus.AccuracyZip
	}
	coord := geobus.Coordinate{
		Lat: geobus.Truncate(tpv.Lat, geobus.TruncPrecision),
		Lon: geobus.Truncate(tpv.Lon, geobus.TruncPrecision),
		Acc: geobus.Truncate(acc, geobus.TruncPrecision),
	}
	return coord, coord.Valid()
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationGPSDProvider) createResult(key string, coord geobus.Coordinate) geobus.Result {
	return geobus.Result{
		Key:            key,
		Lat:            coord.Lat,
		Lon:            coord.Lon,
		AccuracyMeters: coord.Acc,
		Source:         p.name,
		At:             time.Now(),
		TTL:            p.ttl,
	}
}
