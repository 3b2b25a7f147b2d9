// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package presenter implements the terminal surfaces of the address search screen.
package presenter

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/vorlif/humanize"
	"github.com/vorlif/humanize/locale/de"
	"github.com/vorlif/humanize/locale/ko"
	"github.com/vorlif/spreak"
	"golang.org/x/text/language"
)

// Terminal serializes the output of all surfaces onto a single writer.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// Print writes lines as one block.
func (t *Terminal) Print(lines ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintln(t.out, strings.Join(lines, "\n"))
}

// Presenter holds the localization shared by all surfaces.
type Presenter struct {
	localizer *spreak.Localizer
	humanizer *humanize.Humanizer
	units     string
}

func New(localizer *spreak.Localizer, lang language.Tag, units string) *Presenter {
	collection := humanize.MustNew(humanize.WithLocale(de.New(), ko.New()))
	return &Presenter{
		localizer: localizer,
		humanizer: collection.CreateHumanizer(lang),
		units:     units,
	}
}
