// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/vorlif/spreak"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/wneessen/everymap/internal/conditions"
	"github.com/wneessen/everymap/internal/config"
	"github.com/wneessen/everymap/internal/geobus"
	"github.com/wneessen/everymap/internal/geocode"
	"github.com/wneessen/everymap/internal/i18n"
	"github.com/wneessen/everymap/internal/logger"
	"github.com/wneessen/everymap/internal/metrics"
	"github.com/wneessen/everymap/internal/presenter"
	"github.com/wneessen/everymap/internal/screen"
)

const (
	LocationKey = "everymap"

	cacheHitTTL     = time.Hour * 6
	cacheMissTTL    = time.Minute * 10
	cacheCleanupInt = time.Hour

	locationBufferSize = 32
)

type Service struct {
	config     *config.Config
	geobus     *geobus.GeoBus
	geocoder   geocode.Geocoder
	cache      *geocode.CachedGeocoder
	lang       language.Tag
	localizer  *spreak.Localizer
	logger     *logger.Logger
	metrics    *metrics.Metrics
	scheduler  gocron.Scheduler
	controller *screen.Controller
	input      io.Reader

	sleepMonitor func(ctx context.Context)

	mapView *presenter.MapView
	results *presenter.ResultList
	detail  *presenter.DetailView

	SignalSrc signalSource
}

// New wires the geocoder, the presenters and the screen controller. Commands are read from in,
// all surfaces print to out.
func New(conf *config.Config, log *logger.Logger, localizer *spreak.Localizer, in io.Reader, out io.Writer) (*Service, error) {
	bus, err := geobus.New(log)
	if err != nil {
		return nil, fmt.Errorf("failed to create geobus: %w", err)
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	service := &Service{
		config:    conf,
		geobus:    bus,
		lang:      i18n.Language(conf.Locale),
		localizer: localizer,
		logger:    log,
		metrics:   metrics.New(),
		scheduler: scheduler,
		input:     in,
		SignalSrc: stdLibSignalSource{},
	}
	service.sleepMonitor = service.monitorSleepResume
	bus.SetObserver(service.metrics.ObserveLocation)

	service.geocoder, err = service.selectGeocodeProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to create geocode provider: %w", err)
	}

	cond, err := conditions.New(log, conf.Units, conf.Detail.DisableWeather)
	if err != nil {
		return nil, fmt.Errorf("failed to create conditions service: %w", err)
	}

	pres := presenter.New(localizer, service.lang, conf.Units)
	term := presenter.NewTerminal(out)
	service.mapView = pres.NewMapView(term)
	service.results = pres.NewResultList(term)
	service.detail, err = pres.NewDetailView(term, conf.Templates.Detail, cond, log, conf.Intervals.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create detail view: %w", err)
	}

	if service.controller, err = service.newController(); err != nil {
		return nil, err
	}

	return service, nil
}

func (s *Service) newController() (*screen.Controller, error) {
	controller, err := screen.New(screen.Options{
		Geocoder: s.geocoder,
		Map:      s.mapView,
		Results:  s.results,
		Detail:   s.detail,
		Logger:   s.logger,
		Timeout:  s.config.Intervals.RequestTimeout,
		Debounce: s.config.Search.Debounce,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create screen controller: %w", err)
	}
	return controller, nil
}

// Run starts the screen controller, the location tracking and the command reader. It returns
// when ctx is cancelled, the user quits or the input ends.
func (s *Service) Run(ctx context.Context) error {
	provider, err := s.selectGeobusProviders()
	if err != nil {
		return fmt.Errorf("failed to create geobus orchestrator: %w", err)
	}
	orchestrator := s.geobus.NewOrchestrator(provider)
	orchestrator.OnFailure = func(name string, err error) {
		s.controller.OnLocationUnavailable(fmt.Errorf("%s: %w", name, err))
	}

	if err = s.createScheduledJob(ctx, s.config.Intervals.MapRefresh, s.refreshMap, "map_refresh_job"); err != nil {
		return err
	}
	if err = s.createScheduledJob(ctx, cacheCleanupInt, s.cleanupCache, "cache_cleanup_job"); err != nil {
		return err
	}
	s.scheduler.Start()
	defer func() {
		if err := s.scheduler.Shutdown(); err != nil {
			s.logger.Error("failed to shut down scheduler", logger.Err(err))
		}
	}()

	sub, unsub := s.geobus.Subscribe(LocationKey, locationBufferSize)
	defer unsub()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.controller.Run(ctx)
	})
	group.Go(func() error {
		orchestrator.Track(ctx, LocationKey)
		return nil
	})
	group.Go(func() error {
		s.processLocationUpdates(ctx, sub)
		return nil
	})
	group.Go(func() error {
		return s.readCommands(ctx)
	})
	group.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		s.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
		defer s.SignalSrc.Stop(sigChan)
		s.HandleSignals(ctx, sigChan)
		return nil
	})
	group.Go(func() error {
		s.sleepMonitor(ctx)
		return nil
	})
	if s.config.Metrics.Listen != "" {
		group.Go(func() error {
			return s.metrics.Serve(ctx, s.config.Metrics.Listen, s.logger)
		})
	}

	err = group.Wait()
	s.detail.Wait()
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

// SearchOnce runs a single address search and prints the result list.
func (s *Service) SearchOnce(ctx context.Context, query string) error {
	ctxSearch, cancel := context.WithTimeout(ctx, s.config.Intervals.RequestTimeout)
	defer cancel()

	s.results.SetVisible(true)
	result, err := s.geocoder.Search(ctxSearch, query)
	if err != nil {
		s.results.NoResults(query)
		return fmt.Errorf("failed to search address: %w", err)
	}
	if result.Empty() {
		s.results.NoResults(query)
		return nil
	}
	s.results.Render(result)
	return nil
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

func (s *Service) refreshMap(context.Context) {
	s.mapView.Redraw()
}

func (s *Service) cleanupCache(context.Context) {
	before := s.cache.Len()
	s.cache.DeleteExpired()
	s.logger.Debug("removed expired geocoder cache entries", slog.Int("removed", before-s.cache.Len()))
}

// processLocationUpdates forwards geolocation updates from the geobus to the screen controller.
func (s *Service) processLocationUpdates(ctx context.Context, sub <-chan geobus.Result) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-sub:
			if !ok {
				return
			}
			s.logger.Debug("received geolocation update",
				slog.Float64("lat", r.Lat), slog.Float64("lon", r.Lon), slog.String("source", r.Source))
			coord := r.Coordinate()
			if coord.Valid() {
				s.results.SetOrigin(coord)
			}
			s.controller.OnLocationAvailable(coord)
		}
	}
}
