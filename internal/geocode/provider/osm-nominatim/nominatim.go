// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package nominatim

import (
	"context"
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
	APISearchEndpoint  = "https://nominatim.openstreetmap.org/search"
	APIReverseEndpoint = "https://nominatim.openstreetmap.org/reverse"
	APITimeout         = time.Second * 10
	name               = "osm-nominatim"
)

type Nominatim struct {
	http  *http.Client
	lang  language.Tag
	limit int
}

type ReverseResult struct {
	APILat      string  `json:"lat"`
	APILon      string  `json:"lon"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Error       string  `json:"error"`
	Address     Address `json:"address"`
}

type SearchResult struct {
	PlaceID     int64   `json:"place_id"`
	APILat      string  `json:"lat"`
	APILon      string  `json:"lon"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Category    string  `json:"category"`
	Type        string  `json:"type"`
	Address     Address `json:"address"`
}

type Address struct {
	HouseNumber  string `json:"house_number"`
	Road         string `json:"road"`
	Quarter      string `json:"quarter"`
	Suburb       string `json:"suburb"`
	Borough      string `json:"borough"`
	CityDistrict string `json:"city_district"`
	Municipality string `json:"municipality"`
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	State        string `json:"state"`
	Province     string `json:"province"`
	Postcode     string `json:"postcode"`
	Country      string `json:"country"`
}

// New returns a Nominatim geocoder. limit caps the number of search candidates.
func New(client *http.Client, lang language.Tag, limit int) *Nominatim {
	return &Nominatim{
		lang:  lang,
		http:  client,
		limit: limit,
	}
}

func (n *Nominatim) Name() string {
	return name
}

func (n *Nominatim) Reverse(ctx context.Context, coords geobus.Coordinate) (geocode.Address, error) {
	var result ReverseResult
	var err error

	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("addressdetails", "1")
	query.Set("lat", fmt.Sprintf("%f", coords.Lat))
	query.Set("lon", fmt.Sprintf("%f", coords.Lon))
	query.Set("accept-language", n.lang.String())

	if _, err = n.http.GetWithTimeout(ctx, APIReverseEndpoint, &result, query, nil, APITimeout); err != nil {
		return geocode.Address{}, fmt.Errorf("failed to fetch reverse address details from Nominatim API: %w", err)
	}

	// Nominatim answers a miss (e.g. open sea) with a 200 and an error message
	if result.Error != "" {
		return geocode.Address{Latitude: coords.Lat, Longitude: coords.Lon}, nil
	}

	address := geocode.Address{
		AddressFound: true,
		DisplayName:  result.DisplayName,
		Region:       result.Address.region(),
		Country:      result.Address.Country,
		Postcode:     result.Address.Postcode,
		Street:       result.Address.Road,
		HouseNumber:  result.Address.HouseNumber,
	}
	address.Latitude, err = strconv.ParseFloat(result.APILat, 64)
	if err != nil {
		return geocode.Address{}, fmt.Errorf("failed to parse latitude from Nominatim API response: %w", err)
	}
	address.Longitude, err = strconv.ParseFloat(result.APILon, 64)
	if err != nil {
		return geocode.Address{}, fmt.Errorf("failed to parse longitude from Nominatim API response: %w", err)
	}

	return address, nil
}

func (n *Nominatim) Search(ctx context.Context, address string) (geocode.SearchResult, error) {
	var results []SearchResult

	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("addressdetails", "1")
	query.Set("q", address)
	query.Set("limit", strconv.Itoa(n.limit))
	query.Set("accept-language", n.lang.String())

	if _, err := n.http.GetWithTimeout(ctx, APISearchEndpoint, &results, query, nil, APITimeout); err != nil {
		return geocode.SearchResult{}, fmt.Errorf("failed to fetch address details from Nominatim API: %w", err)
	}

	search := geocode.SearchResult{
		Query:      address,
		TotalCount: len(results),
		Candidates: make([]geocode.Candidate, 0, len(results)),
	}
	for _, result := range results {
		lat, err := strconv.ParseFloat(result.APILat, 64)
		if err != nil {
			return geocode.SearchResult{}, fmt.Errorf("failed to parse latitude from Nominatim API response: %w", err)
		}
		lon, err := strconv.ParseFloat(result.APILon, 64)
		if err != nil {
			return geocode.SearchResult{}, fmt.Errorf("failed to parse longitude from Nominatim API response: %w", err)
		}
		search.Candidates = append(search.Candidates, geocode.Candidate{
			RoadAddress: result.Address.road(),
			DisplayName: result.DisplayName,
			Coordinate:  geobus.Coordinate{Lat: lat, Lon: lon},
			Raw: map[string]any{
				"place_id": result.PlaceID,
				"category": result.Category,
				"type":     result.Type,
				"name":     result.Name,
			},
		})
	}

	return search, nil
}

// region maps the OSM address hierarchy to the three level region: the city (or the next larger
// settlement), the district within it and the neighbourhood.
func (a Address) region() geocode.Region {
	return geocode.Region{
		Area1: geocode.Area{Name: firstOf(a.City, a.Town, a.Village, a.Municipality, a.State, a.Province)},
		Area2: geocode.Area{Name: firstOf(a.Borough, a.CityDistrict)},
		Area3: geocode.Area{Name: firstOf(a.Suburb, a.Quarter)},
	}
}

func (a Address) road() string {
	switch {
	case a.Road != "" && a.HouseNumber != "":
		return a.Road + " " + a.HouseNumber
	default:
		return a.Road
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
