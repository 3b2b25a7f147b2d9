// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"sync"

	"github.com/mattn/go-runewidth"

	"github.com/wneessen/everymap/internal/geobus"
	"github.com/wneessen/everymap/internal/geocode"
	"github.com/wneessen/everymap/internal/vartype"
)

const labelWidth = 48

// ResultList prints search results as a numbered table. Rows are 1-based.
type ResultList struct {
	*Presenter
	term *Terminal

	mu      sync.Mutex
	origin  vartype.Variable[geobus.Coordinate]
	last    vartype.Variable[geocode.SearchResult]
	visible bool
}

// NewResultList returns a hidden result list.
func (p *Presenter) NewResultList(term *Terminal) *ResultList {
	return &ResultList{Presenter: p, term: term}
}

// SetOrigin sets the location distances are measured from.
func (r *ResultList) SetOrigin(coord geobus.Coordinate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.origin.Set(coord)
}

func (r *ResultList) Render(result geocode.SearchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last.Set(result)
	r.draw()
}

func (r *ResultList) NoResults(query string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.visible {
		return
	}
	r.term.Print(fmt.Sprintf("%s: %q", r.loc("no results for"), query))
}

func (r *ResultList) SetVisible(visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.visible == visible {
		return
	}
	r.visible = visible
	r.draw()
}

// must be called with the lock held
func (r *ResultList) draw() {
	result, ok := r.last.Get()
	if !r.visible || !ok || result.Empty() {
		return
	}

	lines := make([]string, 0, len(result.Candidates)+1)
	lines = append(lines, fmt.Sprintf("%s (%d/%d): %s", r.loc("search results"), len(result.Candidates),
		max(result.TotalCount, len(result.Candidates)), result.Query))
	for i, candidate := range result.Candidates {
		label := runewidth.FillRight(runewidth.Truncate(candidate.Label(), labelWidth, "…"), labelWidth)
		lines = append(lines, fmt.Sprintf("%3d. %s  %s", i+1, label, r.distanceTo(candidate)))
	}
	r.term.Print(lines...)
}

// distanceTo prefers the distance reported by the geocoder.
func (r *ResultList) distanceTo(candidate geocode.Candidate) string {
	if candidate.Distance > 0 {
		return r.distance(candidate.Distance)
	}
	origin, ok := r.origin.Get()
	if !ok {
		return ""
	}
	return r.distance(origin.DistanceTo(candidate.Coordinate))
}
