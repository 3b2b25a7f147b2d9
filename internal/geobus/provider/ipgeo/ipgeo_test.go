// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package ipgeo

import (
	"context"
	"errors"
	"log/slog"
	stdhttp "net/http"
	"os"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/wneessen/everymap/internal/geobus"
	"github.com/wneessen/everymap/internal/http"
	"github.com/wneessen/everymap/internal/logger"
	"github.com/wneessen/everymap/internal/testhelper"
)

func TestNew(t *testing.T) {
	constructors := []struct {
		name string
		fn   func(*http.Client) (*Provider, error)
	}{
		{"geoip", NewGeoIP},
		{"geoapi", NewGeoAPI},
	}
	for _, tc := range constructors {
		t.Run(tc.name, func(t *testing.T) {
			provider, err := tc.fn(http.New(logger.New(slog.LevelInfo)))
			if err != nil {
				t.Fatalf("failed to create %s provider: %s", tc.name, err)
			}
			if provider.Name() != tc.name {
				t.Errorf("expected provider name to be %s, got %s", tc.name, provider.Name())
			}
			if _, err = tc.fn(nil); !errors.Is(err, ErrHTTPClientRequired) {
				t.Errorf("expected error to be %s, got %s", ErrHTTPClientRequired, err)
			}
		})
	}
}

func TestProvider_locate(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*http.Client) (*Provider, error)
		file string
		lat  float64
		lon  float64
		acc  float64
	}{
		{"geoip zip", NewGeoIP, "geoip.json", 37.5665, 126.978, geobus.AccuracyZip},
		{"geoip country only", NewGeoIP, "geoip_countryonly.json", 37.5665, 126.978, geobus.AccuracyCountry},
		{"geoapi zip", NewGeoAPI, "geoapi.json", 40.7185, -74.0025, geobus.AccuracyZip},
		{"geoapi city", NewGeoAPI, "geoapi_nozip.json", 40.7185, -74.0025, geobus.AccuracyCity},
		{"geoapi region", NewGeoAPI, "geoapi_nocity.json", 40.7185, -74.0025, geobus.AccuracyRegion},
		{"geoapi country", NewGeoAPI, "geoapi_noregion.json", 40.7185, -74.0025, geobus.AccuracyCountry},
		{"geoapi unknown", NewGeoAPI, "geoapi_nocountry.json", 40.7185, -74.0025, geobus.AccuracyUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider, err := tc.fn(fixtureClient(t, tc.file))
			if err != nil {
				t.Fatalf("failed to create provider: %s", err)
			}
			coord, err := provider.locate(t.Context())
			if err != nil {
				t.Fatalf("failed to locate coordinates: %s", err)
			}
			if coord.Lat != tc.lat || coord.Lon != tc.lon {
				t.Errorf("expected position to be %f,%f, got %f,%f", tc.lat, tc.lon, coord.Lat, coord.Lon)
			}
			if coord.Acc != tc.acc {
				t.Errorf("expected accuracy to be %f, got %f", tc.acc, coord.Acc)
			}
		})
	}
	t.Run("broken coordinates fail", func(t *testing.T) {
		for _, file := range []string{"geoapi_brokenlat.json", "geoapi_brokenlon.json"} {
			provider, err := NewGeoAPI(fixtureClient(t, file))
			if err != nil {
				t.Fatalf("failed to create provider: %s", err)
			}
			if _, err = provider.locate(t.Context()); err == nil {
				t.Errorf("expected locate to fail for %s", file)
			}
		}
	})
	t.Run("failing API request", func(t *testing.T) {
		client := http.New(logger.New(slog.LevelInfo))
		client.Transport = testhelper.MockRoundTripper{Fn: func(*stdhttp.Request) (*stdhttp.Response, error) {
			return nil, errors.New("intentionally failing")
		}}
		provider, err := NewGeoIP(client)
		if err != nil {
			t.Fatalf("failed to create provider: %s", err)
		}
		if _, err = provider.locate(t.Context()); err == nil {
			t.Error("expected locate to fail")
		}
	})
}

func TestProvider_LookupStream(t *testing.T) {
	t.Run("failed lookups are retried", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			provider, err := NewGeoIP(http.New(logger.New(slog.LevelInfo)))
			if err != nil {
				t.Fatalf("failed to create provider: %s", err)
			}
			var lookups atomic.Int32
			provider.locateFn = func(context.Context) (geobus.Coordinate, error) {
				if lookups.Add(1) == 1 {
					return geobus.Coordinate{}, errors.New("intentionally failing")
				}
				return geobus.Coordinate{Lat: 1, Lon: 2, Acc: geobus.AccuracyCity}, nil
			}

			result := <-provider.LookupStream(ctx, "test")
			if result.Key != "test" || result.Lat != 1 || result.Lon != 2 {
				t.Errorf("unexpected result: %+v", result)
			}
			if result.Source != "geoip" {
				t.Errorf("expected source to be geoip, got %s", result.Source)
			}
			if result.TTL != provider.ttl {
				t.Errorf("expected TTL to be %s, got %s", provider.ttl, result.TTL)
			}
			if lookups.Load() != 2 {
				t.Errorf("expected 2 lookups, got %d", lookups.Load())
			}
		})
	})
	t.Run("unchanged positions are emitted only once", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			provider, err := NewGeoAPI(fixtureClient(t, "geoapi.json"))
			if err != nil {
				t.Fatalf("failed to create provider: %s", err)
			}
			out := provider.LookupStream(ctx, "test")
			<-out

			time.Sleep(provider.period*3 + time.Second)
			synctest.Wait()
			select {
			case r := <-out:
				t.Errorf("expected no further result, got %+v", r)
			default:
			}
		})
	})
	t.Run("stream closes on cancellation", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			provider, err := NewGeoIP(http.New(logger.New(slog.LevelInfo)))
			if err != nil {
				t.Fatalf("failed to create provider: %s", err)
			}
			provider.locateFn = func(context.Context) (geobus.Coordinate, error) {
				return geobus.Coordinate{}, errors.New("offline")
			}
			out := provider.LookupStream(ctx, "test")
			cancel()
			if _, ok := <-out; ok {
				t.Error("expected stream to be closed")
			}
		})
	})
}

func fixtureClient(t *testing.T, file string) *http.Client {
	t.Helper()
	client := http.New(logger.New(slog.LevelInfo))
	client.Transport = testhelper.MockRoundTripper{Fn: func(*stdhttp.Request) (*stdhttp.Response, error) {
		data, err := os.Open("../../../../testdata/" + file)
		if err != nil {
			t.Fatalf("failed to open JSON response file: %s", err)
		}
		return &stdhttp.Response{StatusCode: 200, Body: data, Header: make(stdhttp.Header)}, nil
	}}
	return client
}
