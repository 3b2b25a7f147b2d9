// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/wneessen/everymap/internal/geobus"
)

// RateLimitedGeocoder spaces out requests to a Geocoder. Public geocoding services like the OSM
// Nominatim instance allow at most one request per second.
type RateLimitedGeocoder struct {
	coder   Geocoder
	limiter *rate.Limiter
}

// NewRateLimitedGeocoder limits coder to perSecond requests per second with a burst of one.
func NewRateLimitedGeocoder(coder Geocoder, perSecond float64) *RateLimitedGeocoder {
	return &RateLimitedGeocoder{
		coder:   coder,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (r *RateLimitedGeocoder) Name() string {
	return r.coder.Name()
}

func (r *RateLimitedGeocoder) Reverse(ctx context.Context, coords geobus.Coordinate) (Address, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Address{}, fmt.Errorf("rate limit wait for reverse geocoding failed: %w", err)
	}
	return r.coder.Reverse(ctx, coords)
}

func (r *RateLimitedGeocoder) Search(ctx context.Context, query string) (SearchResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return SearchResult{}, fmt.Errorf("rate limit wait for address search failed: %w", err)
	}
	return r.coder.Search(ctx, query)
}
