// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package naver

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
	APISearchEndpoint  = "https://naveropenapi.apigw.ntruss.com/map-geocode/v2/geocode"
	APIReverseEndpoint = "https://naveropenapi.apigw.ntruss.com/map-reversegeocode/v2/gc"
	APITimeout         = time.Second * 10
	name               = "naver"

	headerKeyID = "X-NCP-APIGW-API-KEY-ID"
	headerKey   = "X-NCP-APIGW-API-KEY"

	// reverse geocoding status codes
	statusOK        = 0
	statusNoResults = 3
)

var (
	ErrMissingCredentials = errors.New("the naver geocoder requires an API key ID and an API key")
	ErrAPIStatus          = errors.New("naver API returned an error status")
)

type Naver struct {
	keyID string
	key   string
	http  *http.Client
	lang  language.Tag
	limit int
}

type SearchResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"errorMessage"`
	Meta         Meta          `json:"meta"`
	Addresses    []SearchEntry `json:"addresses"`
}

type Meta struct {
	TotalCount int `json:"totalCount"`
	Page       int `json:"page"`
	Count      int `json:"count"`
}

type SearchEntry struct {
	RoadAddress    string           `json:"roadAddress"`
	JibunAddress   string           `json:"jibunAddress"`
	EnglishAddress string           `json:"englishAddress"`
	Elements       []AddressElement `json:"addressElements"`
	X              string           `json:"x"`
	Y              string           `json:"y"`
	Distance       float64          `json:"distance"`
}

type AddressElement struct {
	Types     []string `json:"types"`
	LongName  string   `json:"longName"`
	ShortName string   `json:"shortName"`
	Code      string   `json:"code"`
}

type ReverseResponse struct {
	Status  Status          `json:"status"`
	Results []ReverseResult `json:"results"`
}

type Status struct {
	Code    int    `json:"code"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

type ReverseResult struct {
	Name   string `json:"name"`
	Region Region `json:"region"`
	Land   Land   `json:"land"`
}

type Region struct {
	Area0 Area `json:"area0"`
	Area1 Area `json:"area1"`
	Area2 Area `json:"area2"`
	Area3 Area `json:"area3"`
	Area4 Area `json:"area4"`
}

type Area struct {
	Name string `json:"name"`
}

type Land struct {
	Name      string `json:"name"`
	Number1   string `json:"number1"`
	Number2   string `json:"number2"`
	Addition0 struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"addition0"`
}

// New returns a Naver Cloud Maps geocoder. Both the client ID and the client secret are required.
func New(client *http.Client, lang language.Tag, keyID, key string, limit int) (*Naver, error) {
	if keyID == "" || key == "" {
		return nil, ErrMissingCredentials
	}
	return &Naver{
		keyID: keyID,
		key:   key,
		http:  client,
		lang:  lang,
		limit: limit,
	}, nil
}

func (n *Naver) Name() string {
	return name
}

func (n *Naver) Reverse(ctx context.Context, coords geobus.Coordinate) (geocode.Address, error) {
	var response ReverseResponse

	query := url.Values{}
	// Naver expects x,y (longitude first)
	query.Set("coords", fmt.Sprintf("%f,%f", coords.Lon, coords.Lat))
	query.Set("output", "json")
	query.Set("orders", "legalcode,admcode,roadaddr")

	if _, err := n.http.GetWithTimeout(ctx, APIReverseEndpoint, &response, query, n.headers(), APITimeout); err != nil {
		return geocode.Address{}, fmt.Errorf("failed to fetch reverse address details from Naver API: %w", err)
	}

	switch response.Status.Code {
	case statusOK:
	case statusNoResults:
		return geocode.Address{Latitude: coords.Lat, Longitude: coords.Lon}, nil
	default:
		return geocode.Address{}, fmt.Errorf("%w: %d (%s)", ErrAPIStatus, response.Status.Code,
			response.Status.Message)
	}
	if len(response.Results) < 1 {
		return geocode.Address{Latitude: coords.Lat, Longitude: coords.Lon}, nil
	}

	result := response.Results[0]
	address := geocode.Address{
		AddressFound: true,
		Latitude:     coords.Lat,
		Longitude:    coords.Lon,
		Region: geocode.Region{
			Area1: geocode.Area{Name: result.Region.Area1.Name},
			Area2: geocode.Area{Name: result.Region.Area2.Name},
			Area3: geocode.Area{Name: result.Region.Area3.Name},
		},
		Country: result.Region.Area0.Name,
	}
	for _, res := range response.Results {
		if res.Name == "roadaddr" {
			address.Street = res.Land.Name
			address.HouseNumber = res.Land.Number1
			if res.Land.Addition0.Type == "zipcode" {
				address.Postcode = res.Land.Addition0.Value
			}
		}
	}
	address.DisplayName = address.Region.Name()
	if address.Street != "" {
		address.DisplayName += " " + address.Street
		if address.HouseNumber != "" {
			address.DisplayName += " " + address.HouseNumber
		}
	}

	return address, nil
}

func (n *Naver) Search(ctx context.Context, address string) (geocode.SearchResult, error) {
	var response SearchResponse

	query := url.Values{}
	query.Set("query", address)
	query.Set("count", strconv.Itoa(n.limit))
	query.Set("language", n.language())

	if _, err := n.http.GetWithTimeout(ctx, APISearchEndpoint, &response, query, n.headers(), APITimeout); err != nil {
		return geocode.SearchResult{}, fmt.Errorf("failed to fetch address details from Naver API: %w", err)
	}
	if response.Status != "" && response.Status != "OK" {
		return geocode.SearchResult{}, fmt.Errorf("%w: %s (%s)", ErrAPIStatus, response.Status,
			response.ErrorMessage)
	}

	search := geocode.SearchResult{
		Query:      address,
		TotalCount: response.Meta.TotalCount,
		Candidates: make([]geocode.Candidate, 0, len(response.Addresses)),
	}
	for _, entry := range response.Addresses {
		lon, err := strconv.ParseFloat(entry.X, 64)
		if err != nil {
			return geocode.SearchResult{}, fmt.Errorf("failed to parse longitude from Naver API response: %w", err)
		}
		lat, err := strconv.ParseFloat(entry.Y, 64)
		if err != nil {
			return geocode.SearchResult{}, fmt.Errorf("failed to parse latitude from Naver API response: %w", err)
		}
		raw := make(map[string]any, len(entry.Elements))
		for _, element := range entry.Elements {
			if len(element.Types) > 0 && element.LongName != "" {
				raw[element.Types[0]] = element.LongName
			}
		}
		search.Candidates = append(search.Candidates, geocode.Candidate{
			RoadAddress:    entry.RoadAddress,
			JibunAddress:   entry.JibunAddress,
			EnglishAddress: entry.EnglishAddress,
			DisplayName:    entry.RoadAddress,
			Coordinate:     geobus.Coordinate{Lat: lat, Lon: lon},
			Distance:       entry.Distance,
			Raw:            raw,
		})
	}

	return search, nil
}

func (n *Naver) headers() map[string]string {
	return map[string]string{
		headerKeyID: n.keyID,
		headerKey:   n.key,
	}
}

// language maps the configured locale to the two response languages the geocode API supports.
func (n *Naver) language() string {
	base, _ := n.lang.Base()
	if base.String() == "ko" {
		return "kor"
	}
	return "eng"
}
