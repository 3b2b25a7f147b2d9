// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package ipgeo locates the host by the public IP address it uses to reach an IP geolocation API.
// The position is coarse, so it serves as fallback for the more precise providers.
package ipgeo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/wneessen/everymap/internal/geobus"
	"github.com/wneessen/everymap/internal/http"
)

const (
	GeoIPEndpoint  = "https://reallyfreegeoip.org/json/"
	GeoAPIEndpoint = "https://geoapi.info/api/geo"
	LookupTimeout  = time.Second * 5
)

var ErrHTTPClientRequired = errors.New("http client is required")

// address is the part of an API answer the accuracy is derived from. Each field is only set
// when the API knows it.
type address struct {
	country, region, city, zip string
}

// accuracy maps the most detailed known address part to an accuracy radius.
func (a address) accuracy() float64 {
	switch {
	case a.zip != "":
		return geobus.AccuracyZip
	case a.city != "":
		return geobus.AccuracyCity
	case a.region != "":
		return geobus.AccuracyRegion
	case a.country != "":
		return geobus.AccuracyCountry
	}
	return geobus.AccuracyUnknown
}

// decoder reads a coordinate and the address hierarchy from the answer of a specific API.
type decoder interface {
	position() (lat, lon float64, err error)
	address() address
}

// Provider polls a single IP geolocation API.
type Provider struct {
	name     string
	endpoint string
	http     *http.Client
	period   time.Duration
	ttl      time.Duration
	answer   func() decoder
	locateFn func(ctx context.Context) (geobus.Coordinate, error)
}

// NewGeoIP returns a provider for reallyfreegeoip.org.
func NewGeoIP(client *http.Client) (*Provider, error) {
	return newProvider(client, "geoip", GeoIPEndpoint, 30*time.Minute, time.Hour,
		func() decoder { return new(geoIPAnswer) })
}

// NewGeoAPI returns a provider for geoapi.info.
func NewGeoAPI(client *http.Client) (*Provider, error) {
	return newProvider(client, "geoapi", GeoAPIEndpoint, 10*time.Minute, 2*time.Hour,
		func() decoder { return new(geoAPIAnswer) })
}

func newProvider(client *http.Client, name, endpoint string, period, ttl time.Duration,
	answer func() decoder,
) (*Provider, error) {
	if client == nil {
		return nil, ErrHTTPClientRequired
	}
	provider := &Provider{
		name:     name,
		endpoint: endpoint,
		http:     client,
		period:   period,
		ttl:      ttl,
		answer:   answer,
	}
	provider.locateFn = provider.locate
	return provider, nil
}

func (p *Provider) Name() string {
	return p.name
}

// LookupStream polls the API every period and emits a result whenever the position changed since
// the last emission. Failed lookups are retried with the next poll.
func (p *Provider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)
	go func() {
		defer close(out)
		state := geobus.GeolocationState{}
		ticker := time.NewTicker(p.period)
		defer ticker.Stop()

		for {
			if coord, err := p.locateFn(ctx); err == nil && state.HasChanged(coord) {
				state.Update(coord)
				result := geobus.Result{
					Key:            key,
					Lat:            coord.Lat,
					Lon:            coord.Lon,
					AccuracyMeters: coord.Acc,
					Source:         p.name,
					At:             time.Now(),
					TTL:            p.ttl,
				}
				select {
				case <-ctx.Done():
					return
				case out <- result:
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

func (p *Provider) locate(ctx context.Context) (geobus.Coordinate, error) {
	answer := p.answer()
	if _, err := p.http.GetWithTimeout(ctx, p.endpoint, answer, nil, nil, LookupTimeout); err != nil {
		return geobus.Coordinate{}, fmt.Errorf("failed to get geolocation data from %s: %w", p.name, err)
	}
	lat, lon, err := answer.position()
	if err != nil {
		return geobus.Coordinate{}, fmt.Errorf("invalid %s response: %w", p.name, err)
	}
	coord := geobus.Coordinate{
		Lat: geobus.Truncate(lat, geobus.TruncPrecision),
		Lon: geobus.Truncate(lon, geobus.TruncPrecision),
		Acc: answer.address().accuracy(),
	}
	if !coord.Valid() {
		return geobus.Coordinate{}, fmt.Errorf("invalid %s response: coordinate %s out of range", p.name, coord)
	}
	return coord, nil
}

type geoIPAnswer struct {
	CountryCode string  `json:"country_code"`
	RegionCode  string  `json:"region_code,omitempty"`
	City        string  `json:"city,omitempty"`
	ZipCode     string  `json:"zip_code,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

func (a *geoIPAnswer) position() (float64, float64, error) {
	return a.Latitude, a.Longitude, nil
}

func (a *geoIPAnswer) address() address {
	return address{country: a.CountryCode, region: a.RegionCode, city: a.City, zip: a.ZipCode}
}

type geoAPIAnswer struct {
	Location struct {
		CountryCode string `json:"country,omitempty"`
		Region      string `json:"region,omitempty"`
		City        string `json:"city,omitempty"`
		ZipCode     string `json:"postalCode,omitempty"`
		Coordinates struct {
			Latitude  string `json:"latitude"`
			Longitude string `json:"longitude"`
		} `json:"coordinates"`
	} `json:"location"`
}

// geoapi.info sends the coordinate as strings.
func (a *geoAPIAnswer) position() (float64, float64, error) {
	lat, err := strconv.ParseFloat(a.Location.Coordinates.Latitude, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(a.Location.Coordinates.Longitude, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse longitude: %w", err)
	}
	return lat, lon, nil
}

func (a *geoAPIAnswer) address() address {
	loc := a.Location
	return address{country: loc.CountryCode, region: loc.Region, city: loc.City, zip: loc.ZipCode}
}
