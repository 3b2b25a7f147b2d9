// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wneessen/everymap/internal/logger"
)

type signalSource interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// stdLibSignalSource is the production implementation.
type stdLibSignalSource struct{}

func (stdLibSignalSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (stdLibSignalSource) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

// HandleSignals toggles between the map and the result list on SIGUSR1 and logs the currently
// resolved location on SIGUSR2.
func (s *Service) HandleSignals(ctx context.Context, sigChan chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGUSR1:
				state, err := s.controller.Snapshot(ctx)
				if err != nil {
					s.logger.Error("failed to read session state", logger.Err(err))
					continue
				}
				s.controller.OnSearchPresentationChanged(!state.Presenting)
			case syscall.SIGUSR2:
				state, err := s.controller.Snapshot(ctx)
				if err != nil {
					s.logger.Error("failed to read session state", logger.Err(err))
					continue
				}
				s.logger.Info("currently resolved location",
					slog.String("location", state.CurrentLocation.String()),
					slog.String("region", state.CurrentRegion.Value().Name()))
			}
		}
	}
}
