// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package main implements the everymap address search.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wneessen/everymap/internal/config"
	"github.com/wneessen/everymap/internal/i18n"
	"github.com/wneessen/everymap/internal/logger"
	"github.com/wneessen/everymap/internal/service"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGABRT, os.Interrupt)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var confPath string

	root := &cobra.Command{
		Use:           "everymap",
		Short:         "Search addresses around your current location",
		Long:          "everymap resolves your location, shows the surrounding region and searches addresses.\nType a query to search, #N to open a result, /map or /search to switch views and /quit to leave.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			serv, log, err := newService(confPath)
			if err != nil {
				return err
			}
			log.Info("starting everymap", slog.String("version", version),
				slog.String("commit", commit), slog.String("date", date))
			if err = serv.Run(cmd.Context()); err != nil {
				log.Error("everymap session failed", logger.Err(err))
				return err
			}
			log.Info("shutting down everymap")
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&confPath, "config", "c", "", "path to the config file")

	root.AddCommand(&cobra.Command{
		Use:           "search <query>",
		Short:         "Search an address once and print the results",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serv, log, err := newService(confPath)
			if err != nil {
				return err
			}
			if err = serv.SearchOnce(cmd.Context(), strings.Join(args, " ")); err != nil {
				log.Error("address search failed", logger.Err(err))
				return err
			}
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "everymap %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	return root
}

// newService loads the configuration and sets up the logger, the localizer and the service.
func newService(confPath string) (*service.Service, *logger.Logger, error) {
	log := logger.New(slog.LevelError)

	conf, err := loadConfig(confPath)
	if err != nil {
		log.Error("failed to load config", logger.Err(err))
		return nil, nil, err
	}

	log = logger.New(conf.LogLevel)
	localizer, err := i18n.New(conf.Locale)
	if err != nil {
		log.Error("failed to initialize localizer", logger.Err(err))
		return nil, nil, err
	}

	serv, err := service.New(conf, log, localizer, os.Stdin, os.Stdout)
	if err != nil {
		log.Error("failed to initialize everymap service", logger.Err(err))
		return nil, nil, err
	}
	return serv, log, nil
}

// loadConfig reads the config file given on the command line, falls back to the default location
// and finally to the environment only.
func loadConfig(confPath string) (*config.Config, error) {
	if confPath != "" {
		return config.NewFromFile(filepath.Dir(confPath), filepath.Base(confPath))
	}
	if path, file := findConfigFile(); path != "" && file != "" {
		return config.NewFromFile(path, file)
	}
	return config.New()
}

func findConfigFile() (string, string) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	exts := []string{"toml", "yaml", "yml", "json"}
	for _, ext := range exts {
		path := filepath.Join(homedir, ".config", "everymap", "config."+ext)
		if _, err = os.Stat(path); err == nil {
			return filepath.Dir(path), filepath.Base(path)
		}
	}
	return "", ""
}
