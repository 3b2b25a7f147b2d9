// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package testhelper provides shared helpers for the package tests.
package testhelper

import (
	"net/http"
	"os"
	"testing"
)

// TestOnlineAPIURL is a cheap endpoint used by tests that need a real network round trip.
const TestOnlineAPIURL = "https://nominatim.openstreetmap.org/status?format=json"

// MockRoundTripper lets tests replace the transport of an HTTP client with a function.
type MockRoundTripper struct {
	Fn func(*http.Request) (*http.Response, error)
}

func (m MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.Fn(req)
}

// PerformIntegrationTests skips the test unless online API tests were requested.
func PerformIntegrationTests(t *testing.T) {
	t.Helper()
	if val := os.Getenv("PERFORM_ONLINE_API_TESTS"); val != "true" {
		t.Skip("skipping online API test, set PERFORM_ONLINE_API_TESTS=true to enable")
	}
}
