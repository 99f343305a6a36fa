// Package geocode proxies a Nominatim-compatible geocoding service and caches
// its answers in Redis.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"plantspack/internal/cache"
	"plantspack/internal/models"
	"plantspack/internal/observability"
	"plantspack/internal/validation"
)

const (
	// MinQueryLength is the shortest query forwarded upstream.
	MinQueryLength = 3
	searchLimit    = 8
)

// Location is one geocoding hit.
type Location struct {
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Category    string  `json:"category,omitempty"`
	Type        string  `json:"type,omitempty"`
}

type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Category    string `json:"category"`
	Type        string `json:"type"`
	Error       string `json:"error"`
}

func (p nominatimPlace) location() (Location, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return Location{}, fmt.Errorf("bad latitude %q", p.Lat)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return Location{}, fmt.Errorf("bad longitude %q", p.Lon)
	}
	return Location{
		DisplayName: p.DisplayName,
		Latitude:    lat,
		Longitude:   lng,
		Category:    p.Category,
		Type:        p.Type,
	}, nil
}

// Client queries the geocoder.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient returns a geocoder client for baseURL.
func NewClient(baseURL, userAgent string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      &http.Client{Timeout: 8 * time.Second},
	}
}

// Search resolves free text to locations. Queries shorter than
// MinQueryLength return an empty list without calling out.
func (c *Client) Search(ctx context.Context, query string) ([]Location, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return []Location{}, nil
	}

	var out []Location
	err := cache.Aside(ctx, cache.GeocodeKey("search", query), &out, cache.GeocodeTTL, func() error {
		params := url.Values{}
		params.Set("q", query)
		params.Set("format", "jsonv2")
		params.Set("limit", strconv.Itoa(searchLimit))

		var raw []nominatimPlace
		if err := c.get(ctx, "search", params, &raw); err != nil {
			return err
		}
		out = make([]Location, 0, len(raw))
		for _, p := range raw {
			loc, err := p.location()
			if err != nil {
				continue
			}
			out = append(out, loc)
		}
		return nil
	})
	if err != nil {
		return nil, models.NewUnavailableError("Geocoding service unavailable", err)
	}
	return out, nil
}

// Reverse resolves coordinates to the nearest address.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (*Location, error) {
	if err := validation.ValidateCoordinates(lat, lng); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	var out Location
	key := cache.GeocodeKey("reverse", fmt.Sprintf("%.5f,%.5f", lat, lng))
	err := cache.Aside(ctx, key, &out, cache.GeocodeTTL, func() error {
		params := url.Values{}
		params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
		params.Set("lon", strconv.FormatFloat(lng, 'f', 6, 64))
		params.Set("format", "jsonv2")

		var raw nominatimPlace
		if err := c.get(ctx, "reverse", params, &raw); err != nil {
			return err
		}
		if raw.Error != "" {
			return models.NewNotFoundError("Address", fmt.Sprintf("%.5f,%.5f", lat, lng))
		}
		loc, err := raw.location()
		if err != nil {
			return err
		}
		out = loc
		return nil
	})
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return nil, err
		}
		return nil, models.NewUnavailableError("Geocoding service unavailable", err)
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, dest any) (err error) {
	ctx, span := observability.StartClientSpan(ctx, "geocoder", endpoint)
	defer func() { observability.EndSpan(span, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, res.Body)
		return fmt.Errorf("geocoder returned status %d", res.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(res.Body, 2<<20)).Decode(dest)
}
