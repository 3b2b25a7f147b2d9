// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"sync"

	"github.com/wneessen/everymap/internal/geobus"
	"github.com/wneessen/everymap/internal/geocode"
	"github.com/wneessen/everymap/internal/vartype"
)

// MapView prints the map surface: the center coordinate and the region label.
type MapView struct {
	*Presenter
	term *Terminal

	mu      sync.Mutex
	center  vartype.Variable[geobus.Coordinate]
	region  geocode.Region
	visible bool
}

// NewMapView returns a visible map surface.
func (p *Presenter) NewMapView(term *Terminal) *MapView {
	return &MapView{Presenter: p, term: term, visible: true}
}

func (m *MapView) CenterOn(coord geobus.Coordinate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.center.Set(coord)
	m.draw()
}

func (m *MapView) SetRegion(region geocode.Region) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.region = region
	m.draw()
}

func (m *MapView) SetVisible(visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.visible == visible {
		return
	}
	m.visible = visible
	m.draw()
}

// Redraw prints the map surface again if it is visible.
func (m *MapView) Redraw() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draw()
}

// must be called with the lock held
func (m *MapView) draw() {
	if !m.visible {
		return
	}
	region := m.region.Name()
	if region == "" {
		region = m.loc("unknown region")
	}
	m.term.Print(
		fmt.Sprintf("[%s] %s: %s", m.loc("map"), m.loc("centered on"), m.center),
		fmt.Sprintf("[%s] %s: %s", m.loc("map"), m.loc("region"), region),
	)
}
