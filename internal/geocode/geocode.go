// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/wneessen/everymap/internal/geobus"
)

var ErrNoResults = errors.New("no results found")

// Area is a single administrative level of a Region.
type Area struct {
	Name string
}

// Region is a hierarchical administrative area, from the broadest (Area1, e.g. a city) to the
// narrowest (Area3, e.g. a neighbourhood).
type Region struct {
	Area1 Area
	Area2 Area
	Area3 Area
}

// Name joins the non-empty area names with single spaces.
func (r Region) Name() string {
	parts := make([]string, 0, 3)
	for _, area := range []Area{r.Area1, r.Area2, r.Area3} {
		if name := strings.TrimSpace(area.Name); name != "" {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, " ")
}

// IsZero reports whether the region carries no area names at all.
func (r Region) IsZero() bool {
	return r.Name() == ""
}

// Address is the result of a reverse geocoding lookup. AddressFound is false on a geocode miss.
type Address struct {
	AddressFound bool
	CacheHit     bool
	Latitude     float64
	Longitude    float64
	DisplayName  string
	Region       Region
	Country      string
	Postcode     string
	Street       string
	HouseNumber  string
}

// Candidate is a single forward search result.
type Candidate struct {
	RoadAddress    string
	JibunAddress   string
	EnglishAddress string
	DisplayName    string
	Coordinate     geobus.Coordinate
	// Distance in meters from the search origin, if the provider reports one
	Distance float64
	// Raw carries provider specific fields that have no dedicated field
	Raw map[string]any
}

// Label returns the best human readable name of the candidate.
func (c Candidate) Label() string {
	switch {
	case c.RoadAddress != "":
		return c.RoadAddress
	case c.DisplayName != "":
		return c.DisplayName
	default:
		return c.JibunAddress
	}
}

// SearchResult is an ordered set of candidates as returned by the provider.
type SearchResult struct {
	Query      string
	TotalCount int
	Candidates []Candidate
	CacheHit   bool
}

// Empty reports whether the result set has nothing selectable.
func (s SearchResult) Empty() bool {
	return len(s.Candidates) == 0
}

// Geocoder is implemented by every geocoding backend.
type Geocoder interface {
	Name() string
	Reverse(ctx context.Context, coords geobus.Coordinate) (Address, error)
	Search(ctx context.Context, query string) (SearchResult, error)
}
