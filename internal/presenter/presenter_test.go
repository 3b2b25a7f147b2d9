// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"

	"github.com/wneessen/everymap/internal/conditions"
	"github.com/wneessen/everymap/internal/config"
	"github.com/wneessen/everymap/internal/geobus"
	"github.com/wneessen/everymap/internal/geocode"
	"github.com/wneessen/everymap/internal/i18n"
	"github.com/wneessen/everymap/internal/logger"
	"github.com/wneessen/everymap/internal/screen"
	"github.com/wneessen/everymap/internal/vartype"
)

var (
	now     = time.Now()
	gangnam = geobus.Coordinate{Lat: 37.4979, Lon: 127.0276}
	region  = geocode.Region{
		Area1: geocode.Area{Name: "Seoul"},
		Area3: geocode.Area{Name: "Gangnam-gu"},
	}
	sunrise = time.Date(2026, 6, 21, 5, 11, 2, 0, time.UTC)
	sunset  = time.Date(2026, 6, 21, 19, 56, 41, 0, time.UTC)

	search = geocode.SearchResult{
		Query:      "테헤란로",
		TotalCount: 3,
		Candidates: []geocode.Candidate{
			{
				RoadAddress: "서울특별시 강남구 테헤란로 152",
				Coordinate:  geobus.Coordinate{Lat: 37.5003, Lon: 127.0364},
			},
			{
				RoadAddress: "Teheran-ro 427, Gangnam-gu",
				Coordinate:  geobus.Coordinate{Lat: 37.5066, Lon: 127.0537},
				Distance:    2500,
			},
		},
	}
)

// buffer is safe to write from the detail view goroutines.
type buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type mockConditions struct {
	cond conditions.Conditions
	err  error
}

func (m mockConditions) Lookup(context.Context, geobus.Coordinate) (conditions.Conditions, error) {
	return m.cond, m.err
}

func TestPresenter_loc(t *testing.T) {
	t.Run("localized value is found", func(t *testing.T) {
		pres := testPresenter(t, "en", "metric")
		want := "Search results"
		if got := pres.loc("search results"); got != want {
			t.Errorf("failed to get localized value: got %s, want %s", got, want)
		}
	})
	t.Run("localized german value is found", func(t *testing.T) {
		pres := testPresenter(t, "de", "metric")
		want := "Entfernung"
		if got := pres.loc("Distance"); got != want {
			t.Errorf("failed to get localized value: got %s, want %s", got, want)
		}
	})
	t.Run("localized value is not found", func(t *testing.T) {
		pres := testPresenter(t, "en", "metric")
		want := "foobar"
		if got := pres.loc("foobar"); got != want {
			t.Errorf("failed to get localized value: got %s, want %s", got, want)
		}
	})
}

func TestPresenter_timeFormat(t *testing.T) {
	t.Run("RFC3339 format is used", func(t *testing.T) {
		pres := new(Presenter)
		if got := pres.timeFormat(now, time.RFC3339); got != now.Format(time.RFC3339) {
			t.Errorf("failed to get time format: got %s, want %s", got, now.Format(time.RFC3339))
		}
	})
}

func TestPresenter_localizedTime(t *testing.T) {
	afternoon := time.Date(2026, 10, 18, 15, 4, 0, 0, time.UTC)
	t.Run("german time", func(t *testing.T) {
		pres := testPresenter(t, "de", "metric")
		if got := pres.localizedTime(afternoon); got != "15:04" {
			t.Errorf("expected localized time to be %q, got %q", "15:04", got)
		}
	})
	t.Run("korean time", func(t *testing.T) {
		pres := testPresenter(t, "ko", "metric")
		got := pres.localizedTime(afternoon)
		if !strings.Contains(got, "오후") || !strings.Contains(got, "3:04") {
			t.Errorf("expected korean afternoon time, got %q", got)
		}
	})
}

func TestPresenter_floatFormat(t *testing.T) {
	tests := []struct {
		name string
		val  float64
		prec int
		want string
	}{
		{"0.0", 0.0, 0, "0"},
		{"0.4", 0.4, 1, "0.4"},
		{"0.1234", 0.1234, 4, "0.1234"},
		{"0.123", 0.1234, 3, "0.123"},
		{"0.1", 0.1234, 1, "0.1"},
		{"0", 0.1234, 0, "0"},
	}

	pres := new(Presenter)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pres.floatFormat(tt.val, tt.prec); got != tt.want {
				t.Errorf("failed to get float format: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPresenter_distance(t *testing.T) {
	tests := []struct {
		name   string
		units  string
		meters float64
		want   string
	}{
		{"meters", "metric", 850, "850 m"},
		{"kilometers", "metric", 2540, "2.5 km"},
		{"feet", "imperial", 100, "328 ft"},
		{"miles", "imperial", 16093.44, "10.0 mi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pres := &Presenter{units: tt.units}
			if got := pres.distance(tt.meters); got != tt.want {
				t.Errorf("failed to format distance: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPresenter_condition(t *testing.T) {
	pres := testPresenter(t, "de", "metric")
	if got := pres.condition(3); got != "Bedeckt" {
		t.Errorf("failed to get localized condition: got %s, want %s", got, "Bedeckt")
	}
	if got := pres.condition(1234); got != "" {
		t.Errorf("expected unknown weather code to be empty, got %s", got)
	}
}

func TestMapView(t *testing.T) {
	t.Run("centering prints the map", func(t *testing.T) {
		buf := &buffer{}
		view := testPresenter(t, "en", "metric").NewMapView(NewTerminal(buf))
		view.CenterOn(gangnam)
		if !strings.Contains(buf.String(), "Centered on: "+gangnam.String()) {
			t.Errorf("expected center to be printed, got: %s", buf.String())
		}
		if !strings.Contains(buf.String(), "Region: Unknown region") {
			t.Errorf("expected unknown region to be printed, got: %s", buf.String())
		}
	})
	t.Run("region label is composed", func(t *testing.T) {
		buf := &buffer{}
		view := testPresenter(t, "en", "metric").NewMapView(NewTerminal(buf))
		view.SetRegion(region)
		if !strings.Contains(buf.String(), "Region: Seoul Gangnam-gu\n") {
			t.Errorf("expected region to be printed, got: %s", buf.String())
		}
	})
	t.Run("hidden map prints nothing", func(t *testing.T) {
		buf := &buffer{}
		view := testPresenter(t, "en", "metric").NewMapView(NewTerminal(buf))
		view.SetVisible(false)
		view.CenterOn(gangnam)
		view.SetRegion(region)
		view.Redraw()
		if buf.String() != "" {
			t.Errorf("expected no output, got: %s", buf.String())
		}
		view.SetVisible(true)
		if !strings.Contains(buf.String(), "Seoul Gangnam-gu") {
			t.Errorf("expected map to be redrawn when shown, got: %s", buf.String())
		}
	})
}

func TestResultList(t *testing.T) {
	t.Run("hidden list prints nothing", func(t *testing.T) {
		buf := &buffer{}
		list := testPresenter(t, "en", "metric").NewResultList(NewTerminal(buf))
		list.Render(search)
		list.NoResults("nowhere")
		if buf.String() != "" {
			t.Errorf("expected no output, got: %s", buf.String())
		}
	})
	t.Run("showing the list prints the last result", func(t *testing.T) {
		buf := &buffer{}
		list := testPresenter(t, "en", "metric").NewResultList(NewTerminal(buf))
		list.Render(search)
		list.SetVisible(true)
		out := buf.String()
		if !strings.Contains(out, "Search results (2/3): 테헤란로") {
			t.Errorf("expected header to be printed, got: %s", out)
		}
		if !strings.Contains(out, "  1. 서울특별시 강남구 테헤란로 152") {
			t.Errorf("expected first row to be printed, got: %s", out)
		}
		if !strings.Contains(out, "  2. Teheran-ro 427, Gangnam-gu") {
			t.Errorf("expected second row to be printed, got: %s", out)
		}
	})
	t.Run("distance columns are aligned", func(t *testing.T) {
		buf := &buffer{}
		list := testPresenter(t, "en", "metric").NewResultList(NewTerminal(buf))
		list.SetOrigin(gangnam)
		list.SetVisible(true)
		list.Render(search)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected 3 lines, got %d: %s", len(lines), buf.String())
		}
		first, second := lines[1], lines[2]
		if !strings.HasSuffix(second, "2.5 km") {
			t.Errorf("expected geocoder supplied distance, got: %s", second)
		}
		if !strings.HasSuffix(first, " km") && !strings.HasSuffix(first, " m") {
			t.Errorf("expected distance from origin, got: %s", first)
		}
		firstWidth := runewidth.StringWidth(first[:strings.LastIndex(first, "  ")])
		secondWidth := runewidth.StringWidth(second[:strings.LastIndex(second, "  ")])
		if firstWidth != secondWidth {
			t.Errorf("expected aligned columns, got widths %d and %d", firstWidth, secondWidth)
		}
	})
	t.Run("no results notice", func(t *testing.T) {
		buf := &buffer{}
		list := testPresenter(t, "en", "metric").NewResultList(NewTerminal(buf))
		list.SetVisible(true)
		list.Render(geocode.SearchResult{Query: "nowhere"})
		list.NoResults("nowhere")
		if buf.String() != "No results for: \"nowhere\"\n" {
			t.Errorf("expected no results notice, got: %q", buf.String())
		}
	})
	t.Run("long labels are truncated", func(t *testing.T) {
		buf := &buffer{}
		list := testPresenter(t, "en", "metric").NewResultList(NewTerminal(buf))
		list.SetVisible(true)
		list.Render(geocode.SearchResult{Query: "long", Candidates: []geocode.Candidate{
			{RoadAddress: strings.Repeat("가", 40)},
		}})
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if width := runewidth.StringWidth(strings.TrimRight(lines[1], " ")); width > labelWidth+5 {
			t.Errorf("expected label to be truncated, got width %d", width)
		}
	})
}

func TestDetailView(t *testing.T) {
	detail := screen.Detail{
		Candidate:  search.Candidates[0],
		RegionName: region.Name(),
		Origin:     vartype.NewVariable(gangnam),
	}
	cond := conditions.Conditions{
		Sunrise:     sunrise,
		Sunset:      sunset,
		HasWeather:  true,
		Temperature: 24.36,
		TempUnit:    "°C",
		WeatherCode: 2,
	}

	t.Run("invalid template fails", func(t *testing.T) {
		_, err := testPresenter(t, "en", "metric").NewDetailView(NewTerminal(io.Discard), "{{invalid", nil,
			testLogger(), time.Second)
		if err == nil {
			t.Fatal("expected detail view creation to fail")
		}
		if !strings.Contains(err.Error(), "failed to parse") {
			t.Errorf("expected parse error, got: %s", err)
		}
	})
	t.Run("template execution error", func(t *testing.T) {
		view, err := testPresenter(t, "en", "metric").NewDetailView(NewTerminal(io.Discard), "{{.Data}}", nil,
			testLogger(), time.Second)
		if err != nil {
			t.Fatalf("failed to create detail view: %s", err)
		}
		if _, err = view.Render(DetailContext{}); err == nil {
			t.Error("expected template execution to fail")
		}
	})
	t.Run("context is built", func(t *testing.T) {
		view := testDetailView(t, io.Discard, nil)
		ctx := view.BuildContext(detail, cond)
		if !ctx.HasDistance || ctx.Distance <= 0 {
			t.Errorf("expected distance from origin, got %f", ctx.Distance)
		}
		if !ctx.HasDaylight || !ctx.Sunrise.Equal(sunrise) || !ctx.Sunset.Equal(sunset) {
			t.Errorf("expected daylight times, got %s and %s", ctx.Sunrise, ctx.Sunset)
		}
		if !ctx.HasWeather || ctx.Condition != "Partly cloudy" {
			t.Errorf("expected weather condition %q, got %q", "Partly cloudy", ctx.Condition)
		}
		if ctx.RegionName != "Seoul Gangnam-gu" {
			t.Errorf("expected region name %q, got %q", "Seoul Gangnam-gu", ctx.RegionName)
		}
	})
	t.Run("candidate distance wins over origin", func(t *testing.T) {
		view := testDetailView(t, io.Discard, nil)
		withDistance := detail
		withDistance.Candidate = search.Candidates[1]
		ctx := view.BuildContext(withDistance, conditions.Conditions{})
		if ctx.Distance != 2500 {
			t.Errorf("expected distance 2500, got %f", ctx.Distance)
		}
		if ctx.HasDaylight || ctx.HasWeather {
			t.Error("expected no conditions")
		}
	})
	t.Run("no origin means no distance", func(t *testing.T) {
		view := testDetailView(t, io.Discard, nil)
		ctx := view.BuildContext(screen.Detail{Candidate: search.Candidates[0]}, conditions.Conditions{})
		if ctx.HasDistance {
			t.Errorf("expected no distance, got %f", ctx.Distance)
		}
	})
	t.Run("open prints the detail", func(t *testing.T) {
		buf := &buffer{}
		view := testDetailView(t, buf, mockConditions{cond: cond})
		view.Open(detail)
		view.Wait()
		out := buf.String()
		for _, want := range []string{
			"서울특별시 강남구 테헤란로 152",
			"Coordinates: 37.500300,127.036400",
			"From: Seoul Gangnam-gu",
			"Distance: ",
			"Sunrise: ",
			"Weather: Partly cloudy, 24.3°C",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got: %s", want, out)
			}
		}
	})
	t.Run("failed conditions lookup omits the section", func(t *testing.T) {
		buf := &buffer{}
		view := testDetailView(t, buf, mockConditions{err: errors.New("intentionally failed")})
		view.Open(detail)
		view.Wait()
		out := buf.String()
		if !strings.Contains(out, "From: Seoul Gangnam-gu") {
			t.Errorf("expected detail to be printed, got: %s", out)
		}
		if strings.Contains(out, "Weather:") || strings.Contains(out, "Sunrise:") {
			t.Errorf("expected conditions to be omitted, got: %s", out)
		}
	})
}

func testPresenter(t *testing.T, locale, units string) *Presenter {
	t.Helper()
	lang, err := i18n.New(locale)
	if err != nil {
		t.Fatalf("failed to create i18n provider: %s", err)
	}
	return New(lang, language.Make(locale), units)
}

func testDetailView(t *testing.T, out io.Writer, cond ConditionsLookup) *DetailView {
	t.Helper()
	view, err := testPresenter(t, "en", "metric").NewDetailView(NewTerminal(out), config.DefaultDetailTpl, cond,
		testLogger(), time.Second)
	if err != nil {
		t.Fatalf("failed to create detail view: %s", err)
	}
	return view
}

func testLogger() *logger.Logger {
	return logger.NewLogger(slog.LevelDebug, io.Discard)
}
