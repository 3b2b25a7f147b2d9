// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package conditions looks up the daylight and weather conditions at a destination.
package conditions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hectormalot/omgo"
	"github.com/nathan-osman/go-sunrise"

	"github.com/wneessen/everymap/internal/geobus"
	"github.com/wneessen/everymap/internal/logger"
)

const FetchTimeout = time.Second * 10

var ErrInvalidCoordinate = errors.New("invalid coordinate")

// WeatherFetcher is implemented by omgo.Client.
type WeatherFetcher interface {
	Forecast(ctx context.Context, loc omgo.Location, opts *omgo.Options) (*omgo.Forecast, error)
}

// Conditions at a destination. Sunrise and Sunset are zero during polar day or night.
type Conditions struct {
	Sunrise     time.Time
	Sunset      time.Time
	IsDay       bool
	HasWeather  bool
	Temperature float64
	TempUnit    string
	WeatherCode int
}

type Service struct {
	logger  *logger.Logger
	weather WeatherFetcher
	units   string
	now     func() time.Time
}

// New returns a conditions service. With disableWeather only daylight times are looked up.
func New(log *logger.Logger, units string, disableWeather bool) (*Service, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	svc := &Service{logger: log, units: units, now: time.Now}
	if disableWeather {
		return svc, nil
	}

	client, err := omgo.NewClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create Open-Meteo client: %w", err)
	}
	svc.weather = client
	return svc, nil
}

// HasDaylight reports whether the conditions carry sunrise and sunset times.
func (c Conditions) HasDaylight() bool {
	return !c.Sunrise.IsZero() && !c.Sunset.IsZero()
}

// Lookup returns the conditions at coord. A failed weather lookup is returned as error alongside
// the daylight times, which are always available for a valid coordinate.
func (s *Service) Lookup(ctx context.Context, coord geobus.Coordinate) (Conditions, error) {
	var cond Conditions
	if !coord.Valid() {
		return cond, fmt.Errorf("%w: %s", ErrInvalidCoordinate, coord)
	}

	now := s.now()
	cond.Sunrise, cond.Sunset = sunrise.SunriseSunset(coord.Lat, coord.Lon, now.Year(), now.Month(), now.Day())
	cond.IsDay = now.After(cond.Sunrise) && now.Before(cond.Sunset)
	if s.weather == nil {
		return cond, nil
	}

	location, err := omgo.NewLocation(coord.Lat, coord.Lon)
	if err != nil {
		return cond, fmt.Errorf("failed create Open-Meteo location from coordinates: %w", err)
	}
	opts := &omgo.Options{
		Timezone:      "auto",
		HourlyMetrics: []string{"temperature_2m", "weather_code"},
	}
	switch s.units {
	case "imperial":
		opts.TemperatureUnit = "fahrenheit"
		opts.PrecipitationUnit = "inch"
		opts.WindspeedUnit = "mph"
	default:
		opts.TemperatureUnit = "celsius"
		opts.PrecipitationUnit = "mm"
		opts.WindspeedUnit = "kmh"
	}

	ctxFetch, cancelFetch := context.WithTimeout(ctx, FetchTimeout)
	defer cancelFetch()
	forecast, err := s.weather.Forecast(ctxFetch, location, opts)
	if err != nil {
		return cond, fmt.Errorf("failed to get forecast data: %w", err)
	}
	if forecast == nil {
		return cond, errors.New("empty forecast data")
	}

	cond.HasWeather = true
	cond.Temperature = forecast.CurrentWeather.Temperature
	cond.WeatherCode = int(forecast.CurrentWeather.WeatherCode)
	cond.TempUnit = forecast.HourlyUnits["temperature_2m"]
	if cond.TempUnit == "" {
		cond.TempUnit = s.tempUnit()
	}
	s.logger.Debug("destination conditions fetched", slog.String("coordinate", coord.String()),
		slog.Float64("temperature", cond.Temperature))

	return cond, nil
}

func (s *Service) tempUnit() string {
	if s.units == "imperial" {
		return "°F"
	}
	return "°C"
}
