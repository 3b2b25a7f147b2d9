// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocodeearth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/text/language"

	"github.com/wneessen/everymap/internal/geobus"
	"github.com/wneessen/everymap/internal/geocode"
	"github.com/wneessen/everymap/internal/http"
)

const (
	APIReverseEndpoint = "https://api.geocode.earth/v1/reverse"
	APISearchEndpoint  = "https://api.geocode.earth/v1/search"
	APITimeout         = time.Second * 10
	name               = "geocode-earth"
)

var (
	ErrMissingAPIKey   = errors.New("an API key is required for the geocode.earth geocoder")
	ErrInvalidGeometry = errors.New("feature geometry does not contain a coordinate")
)

type GeocodeEarth struct {
	apikey string
	http   *http.Client
	lang   language.Tag
	limit  int
}

type Response struct {
	Features []Feature `json:"features"`
	Type     string    `json:"type"`
}

type Feature struct {
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
	Type       string     `json:"type"`
}

type Geometry struct {
	// GeoJSON order: longitude, latitude
	Coordinates []float64 `json:"coordinates"`
	Type        string    `json:"type"`
}

type Properties struct {
	ID            string  `json:"id"`
	Layer         string  `json:"layer"`
	Name          string  `json:"name"`
	DisplayName   string  `json:"label"`
	Distance      float64 `json:"distance"`
	Confidence    float64 `json:"confidence"`
	Locality      string  `json:"locality"`
	LocalAdmin    string  `json:"localadmin"`
	Borough       string  `json:"borough"`
	Neighbourhood string  `json:"neighbourhood"`
	County        string  `json:"county"`
	Country       string  `json:"country"`
	CountryCode   string  `json:"country_code"`
	HouseNumber   string  `json:"housenumber"`
	Postcode      string  `json:"postalcode"`
	Street        string  `json:"street"`
	Region        string  `json:"region"`
}

func New(client *http.Client, lang language.Tag, apikey string, limit int) (*GeocodeEarth, error) {
	if apikey == "" {
		return nil, ErrMissingAPIKey
	}
	return &GeocodeEarth{
		apikey: apikey,
		lang:   lang,
		http:   client,
		limit:  limit,
	}, nil
}

func (g *GeocodeEarth) Name() string {
	return name
}

func (g *GeocodeEarth) Reverse(ctx context.Context, coords geobus.Coordinate) (geocode.Address, error) {
	var response Response

	query := url.Values{}
	query.Set("api_key", g.apikey)
	query.Set("point.lat", fmt.Sprintf("%f", coords.Lat))
	query.Set("point.lon", fmt.Sprintf("%f", coords.Lon))
	query.Set("size", "1")
	query.Set("lang", g.lang.String())

	if _, err := g.http.GetWithTimeout(ctx, APIReverseEndpoint, &response, query, nil, APITimeout); err != nil {
		return geocode.Address{}, fmt.Errorf("failed to retrieve address details from geocode.earth API: %w", err)
	}
	if len(response.Features) < 1 {
		return geocode.Address{Latitude: coords.Lat, Longitude: coords.Lon}, nil
	}

	result := response.Features[0].Properties
	return geocode.Address{
		AddressFound: true,
		Latitude:     coords.Lat,
		Longitude:    coords.Lon,
		DisplayName:  result.DisplayName,
		Region:       result.region(),
		Country:      result.Country,
		Postcode:     result.Postcode,
		Street:       result.Street,
		HouseNumber:  result.HouseNumber,
	}, nil
}

func (g *GeocodeEarth) Search(ctx context.Context, address string) (geocode.SearchResult, error) {
	var response Response

	query := url.Values{}
	query.Set("api_key", g.apikey)
	query.Set("text", address)
	query.Set("size", strconv.Itoa(g.limit))
	query.Set("lang", g.lang.String())

	if _, err := g.http.GetWithTimeout(ctx, APISearchEndpoint, &response, query, nil, APITimeout); err != nil {
		return geocode.SearchResult{}, fmt.Errorf("failed to search address on geocode.earth API: %w", err)
	}

	search := geocode.SearchResult{
		Query:      address,
		TotalCount: len(response.Features),
		Candidates: make([]geocode.Candidate, 0, len(response.Features)),
	}
	for _, feature := range response.Features {
		if len(feature.Geometry.Coordinates) < 2 {
			return geocode.SearchResult{}, fmt.Errorf("invalid feature %q: %w", feature.Properties.ID,
				ErrInvalidGeometry)
		}
		props := feature.Properties
		road := props.Street
		if road != "" && props.HouseNumber != "" {
			road += " " + props.HouseNumber
		}
		search.Candidates = append(search.Candidates, geocode.Candidate{
			RoadAddress: road,
			DisplayName: props.DisplayName,
			Coordinate: geobus.Coordinate{
				Lat: feature.Geometry.Coordinates[1],
				Lon: feature.Geometry.Coordinates[0],
			},
			// geocode.earth reports distances in kilometers
			Distance: props.Distance * 1000,
			Raw: map[string]any{
				"id":         props.ID,
				"layer":      props.Layer,
				"name":       props.Name,
				"confidence": props.Confidence,
			},
		})
	}

	return search, nil
}

func (p Properties) region() geocode.Region {
	return geocode.Region{
		Area1: geocode.Area{Name: firstOf(p.Locality, p.LocalAdmin, p.County, p.Region)},
		Area2: geocode.Area{Name: p.Borough},
		Area3: geocode.Area{Name: p.Neighbourhood},
	}
}

func firstOf(vals ...string) string {
	for _, val := range vals {
		if val != "" {
			return val
		}
	}
	return ""
}
