// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkyr/fig"
)

const (
	configEnv = "EVERYMAP"

	DefaultDetailTpl = "{{.Candidate.Label}}\n" +
		"{{loc \"coordinates\"}}: {{.Candidate.Coordinate}}\n" +
		"{{if .RegionName}}{{loc \"from\"}}: {{.RegionName}}\n{{end}}" +
		"{{if .HasDistance}}{{loc \"distance\"}}: {{distance .Distance}}\n{{end}}" +
		"{{if .HasDaylight}}{{loc \"sunrise\"}}: {{localizedTime .Sunrise}}, {{loc \"sunset\"}}: {{localizedTime .Sunset}}\n{{end}}" +
		"{{if .HasWeather}}{{loc \"weather\"}}: {{.Condition}}, {{floatFormat .Temperature 1}}{{.TempUnit}}\n{{end}}"
)

// Config represents the application's configuration structure.
type Config struct {
	// Allowed values: metric, imperial
	Units    string     `fig:"units" default:"metric"`
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	GeoCoder struct {
		// Allowed values: nominatim, naver, opencage, geocode-earth
		Provider string `fig:"provider" default:"nominatim"`
		APIKey   string `fig:"apikey"`
		// Client ID for providers that authenticate with an ID/secret pair (naver)
		APIKeyID  string  `fig:"apikey_id"`
		RateLimit float64 `fig:"rate_limit" default:"1"`
	} `fig:"geocoder"`

	Search struct {
		Debounce time.Duration `fig:"debounce" default:"0s"`
		// Allowed values: 1 to 100
		Limit int `fig:"limit" default:"10"`
	} `fig:"search"`

	Intervals struct {
		MapRefresh     time.Duration `fig:"map_refresh" default:"1m"`
		RequestTimeout time.Duration `fig:"request_timeout" default:"10s"`
	} `fig:"intervals"`

	Templates struct {
		Detail string `fig:"detail"`
	} `fig:"templates"`

	Detail struct {
		DisableWeather bool `fig:"disable_weather"`
	} `fig:"detail"`

	GeoLocation struct {
		GeoLocationFile        string `fig:"file"`
		CitynameFile           string `fig:"cityname_file"`
		GPSDAddress            string `fig:"gpsd_address" default:"localhost:2947"`
		DisableGeoIP           bool   `fig:"disable_geoip"`
		DisableGeoAPI          bool   `fig:"disable_geoapi"`
		DisableGeolocationFile bool   `fig:"disable_geolocation_file"`
		DisableCitynameFile    bool   `fig:"disable_cityname_file"`
		DisableICHNAEA         bool   `fig:"disable_ichnaea"`
		DisableGPSD            bool   `fig:"disable_gpsd"`
	} `fig:"geolocation"`

	Metrics struct {
		Listen string `fig:"listen"`
	} `fig:"metrics"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load config: %w", err)
	}

	return conf, conf.Validate()
}

func (c *Config) Validate() error {
	if c.Units != "metric" && c.Units != "imperial" {
		return fmt.Errorf("invalid units: %s", c.Units)
	}
	if c.Locale == "" {
		c.Locale = getLocale()
	}
	if c.GeoCoder.RateLimit <= 0 {
		return fmt.Errorf("invalid geocoder rate limit: %f", c.GeoCoder.RateLimit)
	}
	if c.Search.Debounce < 0 {
		return fmt.Errorf("invalid search debounce: %s", c.Search.Debounce)
	}
	if c.Search.Limit < 1 || c.Search.Limit > 100 {
		return fmt.Errorf("invalid search limit: %d", c.Search.Limit)
	}
	if c.Intervals.MapRefresh <= 0 {
		return fmt.Errorf("invalid map refresh interval: %s", c.Intervals.MapRefresh)
	}
	if c.Intervals.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request timeout: %s", c.Intervals.RequestTimeout)
	}
	if c.Templates.Detail == "" {
		c.Templates.Detail = DefaultDetailTpl
	}
	home, _ := os.UserHomeDir()
	if c.GeoLocation.GeoLocationFile == "" {
		c.GeoLocation.GeoLocationFile = filepath.Join(home, ".config", "everymap", "geolocation")
	}
	if c.GeoLocation.CitynameFile == "" {
		c.GeoLocation.CitynameFile = filepath.Join(home, ".config", "everymap", "cityname")
	}

	return nil
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}
