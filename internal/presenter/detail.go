// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/wneessen/everymap/internal/conditions"
	"github.com/wneessen/everymap/internal/geobus"
	"github.com/wneessen/everymap/internal/geocode"
	"github.com/wneessen/everymap/internal/logger"
	"github.com/wneessen/everymap/internal/screen"
	"github.com/wneessen/everymap/internal/vartype"
)

// ConditionsLookup is implemented by conditions.Service.
type ConditionsLookup interface {
	Lookup(ctx context.Context, coord geobus.Coordinate) (conditions.Conditions, error)
}

// DetailContext is the data the detail template is executed with.
type DetailContext struct {
	Candidate  geocode.Candidate
	RegionName string
	Origin     vartype.Variable[geobus.Coordinate]

	HasDistance bool
	Distance    float64

	HasDaylight bool
	Sunrise     time.Time
	Sunset      time.Time

	HasWeather  bool
	Temperature float64
	TempUnit    string
	Condition   string
}

// DetailView prints the detail of a selected search result. Conditions at the destination are
// looked up in the background, a failed lookup only omits them.
type DetailView struct {
	*Presenter
	term       *Terminal
	tpl        *template.Template
	conditions ConditionsLookup
	logger     *logger.Logger
	timeout    time.Duration
	wg         sync.WaitGroup
}

// NewDetailView parses the detail template. conditions may be nil.
func (p *Presenter) NewDetailView(term *Terminal, tpl string, cond ConditionsLookup, log *logger.Logger,
	timeout time.Duration,
) (*DetailView, error) {
	parsed, err := template.New("detail").Funcs(p.templateFuncMap()).Parse(tpl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse detail template: %w", err)
	}
	return &DetailView{
		Presenter:  p,
		term:       term,
		tpl:        parsed,
		conditions: cond,
		logger:     log,
		timeout:    timeout,
	}, nil
}

func (d *DetailView) Open(detail screen.Detail) {
	d.wg.Go(func() {
		var cond conditions.Conditions
		if d.conditions != nil {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			var err error
			cond, err = d.conditions.Lookup(ctx, detail.Candidate.Coordinate)
			cancel()
			if err != nil {
				d.logger.Warn("failed to look up destination conditions", logger.Err(err),
					slog.String("coordinate", detail.Candidate.Coordinate.String()))
			}
		}

		out, err := d.Render(d.BuildContext(detail, cond))
		if err != nil {
			d.logger.Error("failed to render detail view", logger.Err(err))
			return
		}
		d.term.Print(out)
	})
}

// Wait blocks until all pending detail views are printed.
func (d *DetailView) Wait() {
	d.wg.Wait()
}

func (d *DetailView) BuildContext(detail screen.Detail, cond conditions.Conditions) DetailContext {
	ctx := DetailContext{
		Candidate:  detail.Candidate,
		RegionName: detail.RegionName,
		Origin:     detail.Origin,
	}
	switch origin, ok := detail.Origin.Get(); {
	case detail.Candidate.Distance > 0:
		ctx.HasDistance = true
		ctx.Distance = detail.Candidate.Distance
	case ok:
		ctx.HasDistance = true
		ctx.Distance = origin.DistanceTo(detail.Candidate.Coordinate)
	}
	if cond.HasDaylight() {
		ctx.HasDaylight = true
		ctx.Sunrise = cond.Sunrise
		ctx.Sunset = cond.Sunset
	}
	if cond.HasWeather {
		ctx.HasWeather = true
		ctx.Temperature = cond.Temperature
		ctx.TempUnit = cond.TempUnit
		ctx.Condition = d.condition(cond.WeatherCode)
	}
	return ctx
}

func (d *DetailView) Render(ctx DetailContext) (string, error) {
	buf := bytes.NewBuffer(nil)
	if err := d.tpl.Execute(buf, ctx); err != nil {
		return "", fmt.Errorf("failed to execute detail template: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
