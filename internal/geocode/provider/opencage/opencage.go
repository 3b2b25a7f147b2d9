// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package opencage

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
	APIEndpoint = "https://api.opencagedata.com/geocode/v1/json"
	APITimeout  = time.Second * 10
	name        = "opencage"
)

var ErrMissingAPIKey = errors.New("an API key is required for the OpenCage geocoder")

type OpenCage struct {
	apikey string
	http   *http.Client
	lang   language.Tag
	limit  int
}

type Response struct {
	Results      []Result `json:"results"`
	TotalResults int      `json:"total_results"`
}

type Result struct {
	Components  Components `json:"components"`
	DisplayName string     `json:"formatted"`
	Confidence  int        `json:"confidence"`
	Geometry    Geometry   `json:"geometry"`
}

type Components struct {
	Category       string `json:"_category"`
	Type           string `json:"_type"`
	NormalizedCity string `json:"_normalized_city"`
	Borough        string `json:"borough"`
	City           string `json:"city"`
	CityDistrict   string `json:"city_district"`
	Country        string `json:"country"`
	CountryCode    string `json:"country_code"`
	HouseNumber    string `json:"house_number"`
	Municipality   string `json:"municipality"`
	Neighbourhood  string `json:"neighbourhood"`
	Postcode       string `json:"postcode"`
	Quarter        string `json:"quarter"`
	Road           string `json:"road"`
	State          string `json:"state"`
	Suburb         string `json:"suburb"`
	Town           string `json:"town"`
	Village        string `json:"village"`
}

type Geometry struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

func New(client *http.Client, lang language.Tag, apikey string, limit int) (*OpenCage, error) {
	if apikey == "" {
		return nil, ErrMissingAPIKey
	}
	return &OpenCage{
		apikey: apikey,
		lang:   lang,
		http:   client,
		limit:  limit,
	}, nil
}

func (o *OpenCage) Name() string {
	return name
}

func (o *OpenCage) Reverse(ctx context.Context, coords geobus.Coordinate) (geocode.Address, error) {
	var response Response

	query := url.Values{}
	query.Set("key", o.apikey)
	query.Set("q", fmt.Sprintf("%f,%f", coords.Lat, coords.Lon))
	query.Set("no_annotations", "1")
	query.Set("no_record", "1")
	query.Set("language", o.lang.String())

	if _, err := o.http.GetWithTimeout(ctx, APIEndpoint, &response, query, nil, APITimeout); err != nil {
		return geocode.Address{}, fmt.Errorf("failed to retrieve address details from OpenCage API: %w", err)
	}
	if len(response.Results) < 1 {
		return geocode.Address{Latitude: coords.Lat, Longitude: coords.Lon}, nil
	}

	result := response.Results[0]
	return geocode.Address{
		AddressFound: true,
		Latitude:     result.Geometry.Lat,
		Longitude:    result.Geometry.Lon,
		DisplayName:  result.DisplayName,
		Region:       result.Components.region(),
		Country:      result.Components.Country,
		Postcode:     result.Components.Postcode,
		Street:       result.Components.Road,
		HouseNumber:  result.Components.HouseNumber,
	}, nil
}

func (o *OpenCage) Search(ctx context.Context, address string) (geocode.SearchResult, error) {
	var response Response

	query := url.Values{}
	query.Set("key", o.apikey)
	query.Set("q", address)
	query.Set("limit", strconv.Itoa(o.limit))
	query.Set("no_annotations", "1")
	query.Set("no_record", "1")
	query.Set("language", o.lang.String())

	if _, err := o.http.GetWithTimeout(ctx, APIEndpoint, &response, query, nil, APITimeout); err != nil {
		return geocode.SearchResult{}, fmt.Errorf("failed to search address on OpenCage API: %w", err)
	}

	search := geocode.SearchResult{
		Query:      address,
		TotalCount: response.TotalResults,
		Candidates: make([]geocode.Candidate, 0, len(response.Results)),
	}
	for _, result := range response.Results {
		road := result.Components.Road
		if road != "" && result.Components.HouseNumber != "" {
			road += " " + result.Components.HouseNumber
		}
		search.Candidates = append(search.Candidates, geocode.Candidate{
			RoadAddress: road,
			DisplayName: result.DisplayName,
			Coordinate:  geobus.Coordinate{Lat: result.Geometry.Lat, Lon: result.Geometry.Lon},
			Raw: map[string]any{
				"category":   result.Components.Category,
				"type":       result.Components.Type,
				"confidence": result.Confidence,
			},
		})
	}

	return search, nil
}

func (c Components) region() geocode.Region {
	return geocode.Region{
		Area1: geocode.Area{Name: firstOf(c.NormalizedCity, c.City, c.Town, c.Village, c.Municipality, c.State)},
		Area2: geocode.Area{Name: firstOf(c.Borough, c.CityDistrict)},
		Area3: geocode.Area{Name: firstOf(c.Suburb, c.Quarter, c.Neighbourhood)},
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
