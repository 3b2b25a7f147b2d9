// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/wneessen/everymap/internal/logger"
)

const (
	cmdSearch  = "/search"
	cmdMap     = "/map"
	cmdSelect  = "/select"
	cmdWhere   = "/where"
	cmdRefresh = "/refresh"
	cmdQuit    = "/quit"
)

// errQuit ends the session. Run does not report it to the caller.
var errQuit = errors.New("session ended by user")

// readCommands reads one command per line from the input. Lines that are no command are searched
// for. The end of the input ends the session.
func (s *Service) readCommands(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(s.input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			if err != nil {
				return fmt.Errorf("failed to read command: %w", err)
			}
			return errQuit
		case line := <-lines:
			if err := s.handleCommand(ctx, line); err != nil {
				return err
			}
		}
	}
}

// handleCommand executes a single input line. Only errQuit is returned, all other failures are
// logged.
func (s *Service) handleCommand(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch {
	case cmd == cmdQuit:
		return errQuit
	case cmd == cmdSearch:
		s.controller.OnSearchPresentationChanged(true)
		if arg != "" {
			s.controller.OnSearchQueryChanged(arg)
		}
	case cmd == cmdMap:
		s.controller.OnSearchPresentationChanged(false)
	case cmd == cmdSelect:
		s.selectResult(ctx, arg)
	case strings.HasPrefix(cmd, "#") && arg == "":
		s.selectResult(ctx, strings.TrimPrefix(cmd, "#"))
	case cmd == cmdWhere:
		s.logState(ctx)
	case cmd == cmdRefresh:
		s.controller.RefreshRegion()
	case strings.HasPrefix(cmd, "/"):
		s.logger.Warn("unknown command", slog.String("command", cmd))
	default:
		s.search(ctx, line)
	}
	return nil
}

// search switches to the result list if the map is shown and searches for query.
func (s *Service) search(ctx context.Context, query string) {
	state, err := s.controller.Snapshot(ctx)
	if err != nil {
		s.logger.Error("failed to read session state", logger.Err(err))
		return
	}
	if !state.Presenting {
		s.controller.OnSearchPresentationChanged(true)
	}
	s.controller.OnSearchQueryChanged(query)
}

// selectResult opens the detail view of the 1-based result row in arg.
func (s *Service) selectResult(ctx context.Context, arg string) {
	row, err := strconv.Atoi(arg)
	if err != nil {
		s.logger.Warn("invalid result number", slog.String("value", arg))
		return
	}
	if err = s.controller.OnResultSelected(ctx, row-1); err != nil {
		s.logger.Warn("failed to select search result", logger.Err(err), slog.Int("row", row))
	}
}

// logState logs the currently resolved location and region.
func (s *Service) logState(ctx context.Context) {
	state, err := s.controller.Snapshot(ctx)
	if err != nil {
		s.logger.Error("failed to read session state", logger.Err(err))
		return
	}
	s.logger.Info("current session state",
		slog.String("location", state.CurrentLocation.String()),
		slog.String("region", state.CurrentRegion.Value().Name()),
		slog.Bool("presenting", state.Presenting),
		slog.String("last_query", state.LastSearch.Value().Query))
}
