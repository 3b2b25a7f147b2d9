// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"

	"github.com/vorlif/humanize"
)

const (
	metersPerMile = 1609.344
	feetPerMeter  = 3.28084
)

func (p *Presenter) templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"timeFormat":    p.timeFormat,
		"localizedTime": p.localizedTime,
		"floatFormat":   p.floatFormat,
		"distance":      p.distance,
		"loc":           p.loc,
		"lc":            strings.ToLower,
		"uc":            strings.ToUpper,
	}
}

func (p *Presenter) loc(val string) string {
	val = strings.ToLower(val)
	if raw, ok := i18nVars[val]; ok {
		return p.localizer.Get(raw)
	}
	return val
}

func (p *Presenter) localizedTime(val time.Time) string {
	return p.humanizer.FormatTime(val, humanize.TimeFormat)
}

func (p *Presenter) timeFormat(val time.Time, fmt string) string {
	return val.Format(fmt)
}

func (p *Presenter) floatFormat(val float64, precision int) string {
	pow := math.Pow(10, float64(precision))
	return fmt.Sprintf("%.*f", precision, math.Trunc(val*pow)/pow)
}

// distance formats meters in the configured unit system.
func (p *Presenter) distance(meters float64) string {
	if p.units == "imperial" {
		miles := meters / metersPerMile
		if miles < 0.1 {
			return fmt.Sprintf("%.0f ft", meters*feetPerMeter)
		}
		return p.floatFormat(miles, 1) + " mi"
	}
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return p.floatFormat(meters/1000, 1) + " km"
}

func (p *Presenter) condition(code int) string {
	raw, ok := WMOWeatherCodes[code]
	if !ok {
		return ""
	}
	return p.localizer.Get(raw)
}
