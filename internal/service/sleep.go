// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wneessen/everymap/internal/logger"
)

const (
	dbusInterface   = "org.freedesktop.login1.Manager"
	dbusWatchMember = "PrepareForSleep"

	debounceWindow   = 2 // seconds
	signalBufferSize = 8

	busReconnectDelay  = 5 * time.Second
	networkWakeupDelay = 10 * time.Second
)

// monitorSleepResume watches logind for resume events over the system bus. A lost or failed bus
// connection is retried until ctx is cancelled.
func (s *Service) monitorSleepResume(ctx context.Context) {
	var lastResumeUnix int64

	for {
		if err := s.watchSystemBus(ctx, &lastResumeUnix); err != nil {
			s.logger.Debug("system bus unavailable, retrying", logger.Err(err),
				slog.Duration("delay", busReconnectDelay))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(busReconnectDelay):
		}
	}
}

// watchSystemBus subscribes to PrepareForSleep and handles signals until ctx is cancelled or the
// connection is closed.
func (s *Service) watchSystemBus(ctx context.Context, lastResumeUnix *int64) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer func() {
		if stop() {
			if err := conn.Close(); err != nil {
				s.logger.Error("failed to close system bus connection", logger.Err(err))
			}
		}
	}()

	if err = conn.AddMatchSignal(dbus.WithMatchInterface(dbusInterface),
		dbus.WithMatchMember(dbusWatchMember),
	); err != nil {
		return fmt.Errorf("failed to subscribe to %s.%s: %w", dbusInterface, dbusWatchMember, err)
	}

	sigCh := make(chan *dbus.Signal, signalBufferSize)
	conn.Signal(sigCh)
	defer conn.RemoveSignal(sigCh)
	s.logger.Debug("subscribed to dbus signal", slog.String("interface", dbusInterface),
		slog.String("member", dbusWatchMember))

	for {
		select {
		case <-ctx.Done():
			return nil
		case sgn, ok := <-sigCh:
			if !ok {
				return errors.New("system bus signal channel closed")
			}
			if resumed(sgn) {
				s.handleResumeEvent(ctx, lastResumeUnix)
			}
		}
	}
}

// resumed reports whether sgn announces the end of a sleep.
func resumed(sgn *dbus.Signal) bool {
	if sgn == nil || len(sgn.Body) != 1 {
		return false
	}
	sleeping, ok := sgn.Body[0].(bool)
	return ok && !sleeping
}

// handleResumeEvent refreshes the region of the current location after the system woke up.
// Consecutive resume events are debounced and the network is given time to come back.
func (s *Service) handleResumeEvent(ctx context.Context, lastResumeUnix *int64) {
	now := time.Now().Unix()
	if now-atomic.LoadInt64(lastResumeUnix) < debounceWindow {
		return
	}
	atomic.StoreInt64(lastResumeUnix, now)

	select {
	case <-ctx.Done():
		return
	case <-time.After(networkWakeupDelay):
	}
	s.logger.Debug("resuming from sleep, refreshing region of the current location")
	s.controller.RefreshRegion()
}
