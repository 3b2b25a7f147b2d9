// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var ErrProviderFailed = errors.New("location provider failed")

// Orchestrator runs all location providers and publishes their results to a GeoBus.
type Orchestrator struct {
	Bus       *GeoBus
	Providers []Provider

	// OnFailure is called once when a provider fails and again only after it delivered a result
	// in between. It may be nil.
	OnFailure func(provider string, err error)
}

// Track runs every provider for the given key until the context is cancelled.
func (o *Orchestrator) Track(ctx context.Context, key string) {
	var wg sync.WaitGroup
	for _, p := range o.Providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			o.trackProvider(ctx, p, key)
		}(p)
	}
	<-ctx.Done()
	wg.Wait()
}

// trackProvider keeps a provider stream alive, restarting it with exponential backoff whenever
// the provider fails or closes its stream.
func (o *Orchestrator) trackProvider(ctx context.Context, p Provider, key string) {
	backoff := initialBackoff
	reported := false
	fail := func(reason string) {
		if reported || o.OnFailure == nil {
			return
		}
		reported = true
		o.OnFailure(p.Name(), fmt.Errorf("%w: %s: %s", ErrProviderFailed, p.Name(), reason))
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		lookupChan := o.safeLookup(ctx, p, key)
		if lookupChan == nil {
			fail("failed to start")
			o.Bus.logger.Debug("location provider failed to start", slog.String("provider", p.Name()),
				slog.Duration("retry_in", backoff))
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

	stream:
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-lookupChan:
				if !ok {
					fail("stream closed")
					if !sleepOrDone(ctx, backoff) {
						return
					}
					backoff = nextBackoff(backoff)
					break stream
				}
				o.Bus.Publish(r)
				backoff = initialBackoff
				reported = false
			}
		}
	}
}

// safeLookup invokes LookupStream and recovers from provider panics, returning nil in that case.
func (o *Orchestrator) safeLookup(ctx context.Context, provider Provider, key string) (ch <-chan Result) {
	defer func() {
		if r := recover(); r != nil {
			o.Bus.logger.Error("location provider panicked", slog.String("provider", provider.Name()),
				slog.Any("panic", r))
			ch = nil
		}
	}()
	return provider.LookupStream(ctx, key)
}
