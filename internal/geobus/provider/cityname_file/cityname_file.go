// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package cityname_file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wneessen/everymap/internal/geobus"
	"github.com/wneessen/everymap/internal/geocode"
)

const (
	name     = "cityname_file"
	ttlTime  = time.Hour * 12
	pollTime = time.Minute * 5
)

var (
	ErrNoCoordinates    = errors.New("no valid city name found in cityname file")
	ErrGeocoderRequired = errors.New("geocoder is required")
)

// CitynameFileProvider reads a place name from a file and resolves it to a coordinate through the
// geocoder's address search. The first line yielding a candidate wins.
type CitynameFileProvider struct {
	name     string
	path     string
	period   time.Duration
	ttl      time.Duration
	coder    geocode.Geocoder
	locateFn func(ctx context.Context) (geobus.Coordinate, error)
}

// NewCitynameFileProvider initializes a CitynameFileProvider with a file path and default update
// interval and TTL settings.
func NewCitynameFileProvider(path string, coder geocode.Geocoder) (*CitynameFileProvider, error) {
	if coder == nil {
		return nil, ErrGeocoderRequired
	}
	provider := &CitynameFileProvider{
		coder:  coder,
		name:   name,
		path:   path,
		period: pollTime,
		ttl:    ttlTime,
	}
	provider.locateFn = provider.readFile
	return provider, nil
}

// Name returns the name of the CitynameFileProvider instance.
func (p *CitynameFileProvider) Name() string {
	return p.name
}

// LookupStream re-reads the file every period and emits a result whenever the resolved position
// changes.
func (p *CitynameFileProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)
	go func() {
		defer close(out)
		state := geobus.GeolocationState{}
		firstRun := true

		for {
			if !firstRun {
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.period):
				}
			}
			firstRun = false

			coords, err := p.locateFn(ctx)
			if err != nil {
				continue
			}
			coords.Acc = geobus.AccuracyCity
			if !state.HasChanged(coords) {
				continue
			}
			state.Update(coords)

			select {
			case <-ctx.Done():
				return
			case out <- p.createResult(key, coords):
			}
		}
	}()
	return out
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *CitynameFileProvider) createResult(key string, coord geobus.Coordinate) geobus.Result {
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

func (p *CitynameFileProvider) readFile(ctx context.Context) (geobus.Coordinate, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return geobus.Coordinate{}, fmt.Errorf("failed to read cityname file %q: %w", p.path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		result, err := p.coder.Search(ctx, line)
		if err != nil || result.Empty() {
			continue
		}
		return result.Candidates[0].Coordinate, nil
	}
	return geobus.Coordinate{}, ErrNoCoordinates
}
