// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocodeearth

import (
	"errors"
	"log/slog"
	stdhttp "net/http"
	"os"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/wneessen/everymap/internal/geobus"
	"github.com/wneessen/everymap/internal/geocode"
	"github.com/wneessen/everymap/internal/http"
	"github.com/wneessen/everymap/internal/logger"
	"github.com/wneessen/everymap/internal/testhelper"
)

const (
	cityExpected     = "A.T. Kearney, Berlin, Germany"
	cityRegion       = "Berlin Mitte Friedrichstadt"
	cityFile         = "../../../../testdata/geocodeearth_berlin.json"
	noMatchFile      = "../../../../testdata/geocodeearth_nomatch.json"
	searchFile       = "../../../../testdata/geocodeearth_search_berlin.json"
	searchNoGeometry = "../../../../testdata/geocodeearth_search_nogeometry.json"
	testAPIKey       = "test-api-key"
)

var cityCoords = geobus.Coordinate{Lat: 52.5129, Lon: 13.3910}

func TestNew(t *testing.T) {
	t.Run("creating a new provider succeeds", func(t *testing.T) {
		coder := testCoderWithRoundtripFunc(t, nil)
		if coder.Name() != name {
			t.Errorf("expected provider name to be %q, got %q", name, coder.Name())
		}
	})
	t.Run("creating a provider without API key fails", func(t *testing.T) {
		_, err := New(http.New(logger.New(slog.LevelDebug)), language.English, "", 5)
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("expected error to be %s, got %s", ErrMissingAPIKey, err)
		}
	})
}

func TestGeocodeEarth_Reverse(t *testing.T) {
	t.Run("reverse geocoding succeeds", func(t *testing.T) {
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			if req.URL.Path != "/v1/reverse" {
				t.Errorf("expected reverse endpoint, got %q", req.URL.Path)
			}
			return respondWithFile(t, cityFile)(req)
		}
		coder := testCoderWithRoundtripFunc(t, rtFn)
		addr, err := coder.Reverse(t.Context(), cityCoords)
		if err != nil {
			t.Fatal(err)
		}
		if !addr.AddressFound {
			t.Fatal("expected address to be found")
		}
		if addr.DisplayName != cityExpected {
			t.Errorf("expected address to be %q, got %q", cityExpected, addr.DisplayName)
		}
		if addr.Region.Name() != cityRegion {
			t.Errorf("expected region to be %q, got %q", cityRegion, addr.Region.Name())
		}
	})
	t.Run("reverse cached geocoding succeeds", func(t *testing.T) {
		coder := geocode.NewCachedGeocoder(testCoderWithRoundtripFunc(t, respondWithFile(t, cityFile)),
			time.Second, time.Second)
		if _, err := coder.Reverse(t.Context(), cityCoords); err != nil {
			t.Fatal(err)
		}
		addr, err := coder.Reverse(t.Context(), cityCoords)
		if err != nil {
			t.Fatal(err)
		}
		if !addr.CacheHit {
			t.Error("expected cache hit")
		}
	})
	t.Run("reverse geocoding without features is a miss", func(t *testing.T) {
		coder := testCoderWithRoundtripFunc(t, respondWithFile(t, noMatchFile))
		addr, err := coder.Reverse(t.Context(), cityCoords)
		if err != nil {
			t.Fatal(err)
		}
		if addr.AddressFound {
			t.Error("expected address not to be found")
		}
	})
	t.Run("API responding with a non-200 response", func(t *testing.T) {
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			return &stdhttp.Response{StatusCode: 500, Body: stdhttp.NoBody, Header: make(stdhttp.Header)}, nil
		}
		coder := testCoderWithRoundtripFunc(t, rtFn)
		if _, err := coder.Reverse(t.Context(), cityCoords); !errors.Is(err, http.ErrUnexpectedStatus) {
			t.Errorf("expected error to be %s, got %s", http.ErrUnexpectedStatus, err)
		}
	})
}

func TestGeocodeEarth_Search(t *testing.T) {
	t.Run("address search succeeds", func(t *testing.T) {
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			if req.URL.Path != "/v1/search" {
				t.Errorf("expected search endpoint, got %q", req.URL.Path)
			}
			if text := req.URL.Query().Get("text"); text != "Friedrichstraße 67" {
				t.Errorf("expected search text to be %q, got %q", "Friedrichstraße 67", text)
			}
			return respondWithFile(t, searchFile)(req)
		}
		coder := testCoderWithRoundtripFunc(t, rtFn)
		result, err := coder.Search(t.Context(), "Friedrichstraße 67")
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Candidates) != 1 {
			t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
		}
		candidate := result.Candidates[0]
		if candidate.Coordinate.Lat != 52.512894 || candidate.Coordinate.Lon != 13.391005 {
			t.Errorf("unexpected coordinate: %s", candidate.Coordinate)
		}
		if candidate.Distance != 1250 {
			t.Errorf("expected distance to be 1250m, got %f", candidate.Distance)
		}
		if candidate.RoadAddress != "Friedrichstraße 67" {
			t.Errorf("expected road address to be %q, got %q", "Friedrichstraße 67", candidate.RoadAddress)
		}
	})
	t.Run("address search with broken geometry fails", func(t *testing.T) {
		coder := testCoderWithRoundtripFunc(t, respondWithFile(t, searchNoGeometry))
		if _, err := coder.Search(t.Context(), "Berlin"); !errors.Is(err, ErrInvalidGeometry) {
			t.Errorf("expected error to be %s, got %s", ErrInvalidGeometry, err)
		}
	})
	t.Run("address search fails", func(t *testing.T) {
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			return nil, errors.New("intentionally failing")
		}
		coder := testCoderWithRoundtripFunc(t, rtFn)
		if _, err := coder.Search(t.Context(), "Berlin"); err == nil {
			t.Fatal("expected API request to fail")
		}
	})
}

func respondWithFile(t *testing.T, file string) func(req *stdhttp.Request) (*stdhttp.Response, error) {
	t.Helper()
	return func(req *stdhttp.Request) (*stdhttp.Response, error) {
		data, err := os.Open(file)
		if err != nil {
			t.Fatalf("failed to open JSON response file: %s", err)
		}
		return &stdhttp.Response{StatusCode: 200, Body: data, Header: make(stdhttp.Header)}, nil
	}
}

func testCoderWithRoundtripFunc(t *testing.T, fn func(req *stdhttp.Request) (*stdhttp.Response, error)) *GeocodeEarth {
	t.Helper()
	testHttpClient := http.New(logger.New(slog.LevelDebug))
	testHttpClient.Transport = testhelper.MockRoundTripper{Fn: fn}
	coder, err := New(testHttpClient, language.English, testAPIKey, 5)
	if err != nil {
		t.Fatalf("failed to create geocoder: %s", err)
	}
	return coder
}
