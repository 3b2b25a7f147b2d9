// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package i18n

import (
	"testing"

	"golang.org/x/text/language"
)

func TestNew(t *testing.T) {
	t.Run("new i18n provider with empty locale string succeeds", func(t *testing.T) {
		provider, err := New("")
		if err != nil {
			t.Fatalf("failed to create i18n provider: %s", err)
		}
		if provider == nil {
			t.Fatal("expected i18n provider to be non-nil")
		}
	})
	t.Run("german translation is loaded", func(t *testing.T) {
		provider, err := New("de")
		if err != nil {
			t.Fatalf("failed to create i18n provider: %s", err)
		}
		if got := provider.Get("Search results"); got != "Suchergebnisse" {
			t.Errorf("expected translation %q, got %q", "Suchergebnisse", got)
		}
	})
	t.Run("korean translation is loaded", func(t *testing.T) {
		provider, err := New("ko")
		if err != nil {
			t.Fatalf("failed to create i18n provider: %s", err)
		}
		if got := provider.Get("Search results"); got != "검색 결과" {
			t.Errorf("expected translation %q, got %q", "검색 결과", got)
		}
	})
	t.Run("unknown language falls back to english", func(t *testing.T) {
		provider, err := New("xx")
		if err != nil {
			t.Fatalf("failed to create i18n provider: %s", err)
		}
		if got := provider.Get("Search results"); got != "Search results" {
			t.Errorf("expected untranslated message, got %q", got)
		}
	})
}

func TestLanguage(t *testing.T) {
	if tag := Language("ko-KR"); tag != language.MustParse("ko-KR") {
		t.Errorf("expected language tag ko-KR, got %s", tag)
	}
	if tag := Language(""); tag == language.Und {
		t.Error("expected detected language to not be undefined")
	}
}
