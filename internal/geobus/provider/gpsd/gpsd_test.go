// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpsd

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/everymap/internal/geobus"
	"github.com/wneessen/everymap/internal/logger"
)

const (
	testLat = 40.7185
	testLon = -74.0025
)

func TestNewGeolocationGPSDProvider(t *testing.T) {
	t.Run("new GPSd provider succeeds", func(t *testing.T) {
		provider := testProvider(t)
		if provider.addr != DefaultAddress {
			t.Errorf("expected default address %q, got %q", DefaultAddress, provider.addr)
		}
	})
	t.Run("custom address is used", func(t *testing.T) {
		provider, err := NewGeolocationGPSDProvider(logger.New(slog.LevelInfo), "gps.local:2947")
		if err != nil {
			t.Fatalf("failed to create GPSd provider: %s", err)
		}
		if provider.addr != "gps.local:2947" {
			t.Errorf("expected address %q, got %q", "gps.local:2947", provider.addr)
		}
	})
	t.Run("new GPSd provider without logger fails", func(t *testing.T) {
		_, err := NewGeolocationGPSDProvider(nil, "")
		if !errors.Is(err, geobus.ErrLoggerRequired) {
			t.Errorf("expected error to be %s, got %s", geobus.ErrLoggerRequired, err)
		}
	})
}

func TestGeolocationGPSDProvider_Name(t *testing.T) {
	provider := testProvider(t)
	if !strings.EqualFold(provider.Name(), name) {
		t.Errorf("expected provider name to be %s, got %s", name, provider.Name())
	}
}

func TestGeolocationGPSDProvider_createResult(t *testing.T) {
	provider := testProvider(t)
	result := provider.createResult("test", geobus.Coordinate{Lat: testLat, Lon: testLon, Acc: geobus.AccuracyCity})
	if result.Lat != testLat {
		t.Errorf("expected latitude to be %f, got %f", testLat, result.Lat)
	}
	if result.Lon != testLon {
		t.Errorf("expected longitude to be %f, got %f", testLon, result.Lon)
	}
	if result.Key != "test" {
		t.Errorf("expected key to be %s, got %s", "test", result.Key)
	}
	if result.AccuracyMeters != geobus.AccuracyCity {
		t.Errorf("expected accuracy to be %d, got %f", geobus.AccuracyCity, result.AccuracyMeters)
	}
	if result.Source != provider.Name() {
		t.Errorf("expected source to be %s, got %s", provider.Name(), result.Source)
	}
	if result.TTL != provider.ttl {
		t.Errorf("expected TTL to be %d, got %d", provider.ttl, result.TTL)
	}
}

func TestCoordFromTPV(t *testing.T) {
	tests := []struct {
		name    string
		report  *gpsd.TPVReport
		wantOK  bool
		wantAcc float64
	}{
		{"nil report", nil, false, 0},
		{"no fix", &gpsd.TPVReport{Mode: gpsd.NoFix, Lat: testLat, Lon: testLon}, false, 0},
		{"2D fix", &gpsd.TPVReport{Mode: gpsd.Mode2D, Lat: testLat, Lon: testLon, Epx: 8, Epy: 12}, true, 12},
		{"3D fix", &gpsd.TPVReport{Mode: gpsd.Mode3D, Lat: testLat, Lon: testLon, Epx: 5, Epy: 4}, true, 5},
		{"fix without error estimate", &gpsd.TPVReport{Mode: gpsd.Mode3D, Lat: testLat, Lon: testLon}, true, geobus.AccuracyZip},
		{"fix out of range", &gpsd.TPVReport{Mode: gpsd.Mode3D, Lat: 120, Lon: testLon}, false, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			coord, ok := coordFromTPV(tc.report)
			if ok != tc.wantOK {
				t.Fatalf("expected ok to be %t, got %t", tc.wantOK, ok)
			}
			if !ok {
				return
			}
			if coord.Lat != testLat || coord.Lon != testLon {
				t.Errorf("unexpected coordinate: %s", coord)
			}
			if coord.Acc != tc.wantAcc {
				t.Errorf("expected accuracy to be %f, got %f", tc.wantAcc, coord.Acc)
			}
		})
	}
}

func TestGeolocationGPSDProvider_LookupStream(t *testing.T) {
	t.Run("watching gpsd fails on first run but then succeeds", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			var runCount atomic.Int32
			provider := testProvider(t)
			provider.period = time.Millisecond * 10
			provider.watchFn = func(ctx context.Context, fixes chan<- geobus.Coordinate) error {
				if runCount.Add(1) == 1 {
					return errors.New("intentionally failing")
				}
				select {
				case fixes <- geobus.Coordinate{Lat: 1.0, Lon: 2.0, Acc: 3.0}:
				case <-ctx.Done():
				}
				<-ctx.Done()
				return nil
			}

			out := provider.LookupStream(ctx, "test")
			if out == nil {
				t.Fatal("expected stream to be non-nil")
			}

			var result geobus.Result
			select {
			case r := <-out:
				result = r
				cancel()
			case <-ctx.Done():
				t.Fatalf("context done before result: %v", ctx.Err())
			}
			synctest.Wait()

			if result.Lat != 1.0 {
				t.Errorf("expected latitude to be %f, got %f", 1.0, result.Lat)
			}
			if result.Lon != 2.0 {
				t.Errorf("expected longitude to be %f, got %f", 2.0, result.Lon)
			}
			if result.AccuracyMeters != 3.0 {
				t.Errorf("expected accuracy to be %f, got %f", 3.0, result.AccuracyMeters)
			}
			if runCount.Load() != 2 {
				t.Errorf("expected 2 watch attempts, got %d", runCount.Load())
			}
		})
	})
	t.Run("repeated fixes at the same position are emitted once", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			provider := testProvider(t)
			provider.watchFn = func(ctx context.Context, fixes chan<- geobus.Coordinate) error {
				for _, coord := range []geobus.Coordinate{
					{Lat: testLat, Lon: testLon, Acc: 5},
					{Lat: testLat, Lon: testLon, Acc: 4},
					{Lat: testLat + 1, Lon: testLon, Acc: 5},
				} {
					select {
					case fixes <- coord:
					case <-ctx.Done():
						return nil
					}
				}
				<-ctx.Done()
				return nil
			}

			out := provider.LookupStream(ctx, "test")
			first := <-out
			second := <-out
			if first.Lat != testLat {
				t.Errorf("expected first latitude to be %f, got %f", testLat, first.Lat)
			}
			if second.Lat != testLat+1 {
				t.Errorf("expected second latitude to be %f, got %f", testLat+1, second.Lat)
			}
			cancel()
			synctest.Wait()
		})
	})
}

func testProvider(t *testing.T) *GeolocationGPSDProvider {
	t.Helper()
	provider, err := NewGeolocationGPSDProvider(logger.New(slog.LevelInfo), "")
	if err != nil {
		t.Fatalf("failed to create GPSd provider: %s", err)
	}
	return provider
}
