// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mdlayher/wifi"

	"github.com/wneessen/everymap/internal/geobus"
	"github.com/wneessen/everymap/internal/geobus/provider/cityname_file"
	"github.com/wneessen/everymap/internal/geobus/provider/geolocation_file"
	"github.com/wneessen/everymap/internal/geobus/provider/gpsd"
	"github.com/wneessen/everymap/internal/geobus/provider/ichnaea"
	"github.com/wneessen/everymap/internal/geobus/provider/ipgeo"
	"github.com/wneessen/everymap/internal/geocode"
	geocodeearth "github.com/wneessen/everymap/internal/geocode/provider/geocode-earth"
	"github.com/wneessen/everymap/internal/geocode/provider/naver"
	"github.com/wneessen/everymap/internal/geocode/provider/opencage"
	nominatim "github.com/wneessen/everymap/internal/geocode/provider/osm-nominatim"
	"github.com/wneessen/everymap/internal/http"
	"github.com/wneessen/everymap/internal/logger"
)

var ErrNoGeolocationProvider = errors.New("no geolocation providers enabled")

func (s *Service) selectGeobusProviders() ([]geobus.Provider, error) {
	httpClient := http.New(s.logger)
	var provider []geobus.Provider

	if !s.config.GeoLocation.DisableGeolocationFile {
		provider = append(provider, geolocation_file.NewGeolocationFileProvider(s.config.GeoLocation.GeoLocationFile))
	}

	if !s.config.GeoLocation.DisableCitynameFile {
		cnf, err := cityname_file.NewCitynameFileProvider(s.config.GeoLocation.CitynameFile, s.geocoder)
		if err != nil {
			return nil, fmt.Errorf("failed to create cityname file provider: %w", err)
		}
		provider = append(provider, cnf)
	}

	if !s.config.GeoLocation.DisableGPSD {
		gps, err := gpsd.NewGeolocationGPSDProvider(s.logger, s.config.GeoLocation.GPSDAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to create gpsd provider: %w", err)
		}
		provider = append(provider, gps)
	}

	if !s.config.GeoLocation.DisableGeoIP {
		gip, err := ipgeo.NewGeoIP(httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create GeoIP provider: %w", err)
		}
		provider = append(provider, gip)
	}

	if !s.config.GeoLocation.DisableGeoAPI {
		gap, err := ipgeo.NewGeoAPI(httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create GeoAPI provider: %w", err)
		}
		provider = append(provider, gap)
	}

	if !s.config.GeoLocation.DisableICHNAEA {
		mls, err := ichnaea.NewGeolocationICHNAEAProvider(httpClient, s.wifiScanner())
		if err != nil {
			s.logger.Error("failed to create ICHNAEA provider", logger.Err(err))
		} else {
			provider = append(provider, mls)
		}
	}

	if len(provider) == 0 {
		return nil, ErrNoGeolocationProvider
	}
	return provider, nil
}

// wifiScanner returns a nl80211 client for the ICHNAEA provider. Without wireless support the
// provider falls back to IP based lookups.
func (s *Service) wifiScanner() ichnaea.AccessPointScanner {
	client, err := wifi.New()
	if err != nil {
		s.logger.Debug("wifi scanning unavailable, ICHNAEA lookups are IP based", logger.Err(err))
		return nil
	}
	return client
}

// selectGeocodeProvider returns the configured geocoder. Requests are counted, cached and rate
// limited, in that order.
func (s *Service) selectGeocodeProvider() (geocode.Geocoder, error) {
	var backend geocode.Geocoder
	var err error
	conf := s.config
	client := http.New(s.logger)

	switch strings.ToLower(conf.GeoCoder.Provider) {
	case "nominatim":
		backend = nominatim.New(client, s.lang, conf.Search.Limit)
	case "naver":
		backend, err = naver.New(client, s.lang, conf.GeoCoder.APIKeyID, conf.GeoCoder.APIKey, conf.Search.Limit)
	case "opencage":
		backend, err = opencage.New(client, s.lang, conf.GeoCoder.APIKey, conf.Search.Limit)
	case "geocode-earth":
		backend, err = geocodeearth.New(client, s.lang, conf.GeoCoder.APIKey, conf.Search.Limit)
	default:
		return nil, fmt.Errorf("unsupported geocoder type: %s", conf.GeoCoder.Provider)
	}
	if err != nil {
		return nil, err
	}

	limited := geocode.NewRateLimitedGeocoder(backend, conf.GeoCoder.RateLimit)
	s.cache = geocode.NewCachedGeocoder(limited, cacheHitTTL, cacheMissTTL)
	return s.metrics.InstrumentGeocoder(s.cache, backend.Name()), nil
}
