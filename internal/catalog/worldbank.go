// Package catalog reads countries and indicator series from the World Bank
// statistics API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	countriesPageSize = "300"
	seriesPageSize    = "50"
	aggregatesRegion  = "Aggregates"
	maxResponseSize   = 4 * 1024 * 1024
)

// ErrCatalogUnavailable is returned for any upstream failure: transport
// errors, non-2xx statuses and envelopes that do not carry data.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

type rawCountry struct {
	ID       string `json:"id"`
	ISO2Code string `json:"iso2Code"`
	Name     string `json:"name"`
	Region   struct {
		Value string `json:"value"`
	} `json:"region"`
}

type rawPoint struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// ListCountries fetches every country, leaving out regional aggregates.
// Each call goes upstream; nothing is cached.
func (c *Client) ListCountries(ctx context.Context) ([]Country, error) {
	var raw []rawCountry
	q := url.Values{"format": {"json"}, "per_page": {countriesPageSize}}
	if err := c.getEnvelope(ctx, "/country", q, &raw); err != nil {
		return nil, err
	}
	return withoutAggregates(raw), nil
}

// ListIndicators returns the fixed indicator set. The country is not consulted.
func (c *Client) ListIndicators(countryID string) []Indicator {
	out := make([]Indicator, len(Indicators))
	copy(out, Indicators)
	return out
}

// GetIndicatorSeries fetches one indicator for one country, drops years with
// no value and returns the rest oldest first.
func (c *Client) GetIndicatorSeries(ctx context.Context, countryID, indicatorID string) ([]ChartDataPoint, error) {
	var raw []rawPoint
	path := fmt.Sprintf("/country/%s/indicator/%s", url.PathEscape(countryID), url.PathEscape(indicatorID))
	q := url.Values{"format": {"json"}, "per_page": {seriesPageSize}}
	if err := c.getEnvelope(ctx, path, q, &raw); err != nil {
		return nil, err
	}
	return chronological(raw), nil
}

// Chart wraps GetIndicatorSeries into a named series.
func (c *Client) Chart(ctx context.Context, countryID string, indicator Indicator) (ChartSeries, error) {
	points, err := c.GetIndicatorSeries(ctx, countryID, indicator.ID)
	if err != nil {
		return ChartSeries{}, err
	}
	return ChartSeries{Name: indicator.Name, Series: points}, nil
}

// getEnvelope decodes element [1] of the API's [meta, data] envelope into into.
// A null data element decodes to an empty result.
func (c *Client) getEnvelope(ctx context.Context, path string, q url.Values, into any) error {
	endpoint := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrCatalogUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("catalog request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrCatalogUnavailable, err)
	}
	c.logger.Debug("catalog request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: upstream status %d", ErrCatalogUnavailable, resp.StatusCode)
	}

	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: decode envelope: %v", ErrCatalogUnavailable, err)
	}
	if len(envelope) < 2 {
		// The API reports bad ids as a one-element [{"message": [...]}] array.
		return fmt.Errorf("%w: envelope has %d elements", ErrCatalogUnavailable, len(envelope))
	}
	if err := json.Unmarshal(envelope[1], into); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrCatalogUnavailable, err)
	}
	return nil
}

func withoutAggregates(raw []rawCountry) []Country {
	countries := make([]Country, 0, len(raw))
	for _, rc := range raw {
		if rc.Region.Value == aggregatesRegion {
			continue
		}
		countries = append(countries, Country{ID: rc.ID, ISO2Code: rc.ISO2Code, Name: rc.Name})
	}
	return countries
}

// chronological drops missing values and orders the rest by year, oldest
// first. The upstream lists newest first.
func chronological(raw []rawPoint) []ChartDataPoint {
	points := make([]ChartDataPoint, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		if raw[i].Value == nil {
			continue
		}
		v := *raw[i].Value
		points = append(points, ChartDataPoint{Name: raw[i].Date, Value: &v})
	}
	slices.SortStableFunc(points, func(a, b ChartDataPoint) int {
		return strings.Compare(a.Name, b.Name)
	})
	return points
}

// FilterCountries keeps countries whose name contains term (case-insensitive),
// leaving out exclude when it is set.
func FilterCountries(countries []Country, term string, exclude *Country) []Country {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]Country, 0, len(countries))
	for _, c := range countries {
		if exclude != nil && c.ID == exclude.ID {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(c.Name), term) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FindCountry looks a country up by id in an already fetched list.
func FindCountry(countries []Country, id string) (Country, bool) {
	for _, c := range countries {
		if strings.EqualFold(c.ID, id) {
			return c, true
		}
	}
	return Country{}, false
}
