// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

// GeolocationState tracks the last coordinate a location source emitted, so sources only emit
// when the position actually moved.
type GeolocationState struct {
	last     Coordinate
	haveLast bool
}

// HasChanged reports whether the coordinate differs from the last emitted one. An empty state
// always reports a change. Accuracy changes alone do not count as a positional change.
func (s *GeolocationState) HasChanged(c Coordinate) bool {
	if !s.haveLast {
		return true
	}
	return s.last.Lat != c.Lat || s.last.Lon != c.Lon
}

// Update stores the coordinate as the last emitted one.
func (s *GeolocationState) Update(c Coordinate) {
	s.last = c
	s.haveLast = true
}
