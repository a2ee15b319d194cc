// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package geo provides the location collaborators for the context cache.
package geo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the geocoding client.
type ClientError struct {
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Nominatim client.
type ClientConfig struct {
	// BaseURL of the Nominatim-compatible endpoint
	// (default: https://nominatim.openstreetmap.org)
	BaseURL string

	// Timeout for lookup requests (default: 10s)
	Timeout time.Duration

	// UserAgent sent with every request. The public Nominatim service
	// rejects requests without an identifying agent.
	UserAgent string
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:   "https://nominatim.openstreetmap.org",
		Timeout:   10 * time.Second,
		UserAgent: "contextvault/1.0",
	}
}

// =============================================================================
// NOMINATIM CLIENT
// =============================================================================

// NominatimClient reverse-geocodes coordinates against a Nominatim-style
// HTTP API. Requests are rate limited to one per second per the public
// service's usage policy.
type NominatimClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewNominatimClient creates a client. A nil config uses defaults.
func NewNominatimClient(config *ClientConfig) *NominatimClient {
	if config == nil {
		config = DefaultClientConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "contextvault/1.0"
	}

	return &NominatimClient{
		baseURL:   config.BaseURL,
		userAgent: config.UserAgent,
		client:    &http.Client{Timeout: config.Timeout},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// reverseResponse is the subset of the Nominatim reverse payload we use.
type reverseResponse struct {
	Address Address `json:"address"`
	Error   string  `json:"error,omitempty"`
}

// ReverseGeocode resolves coordinates to an address.
func (c *NominatimClient) ReverseGeocode(ctx context.Context, lat, lng float64) (*Address, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &ClientError{Message: "rate limit wait cancelled", Cause: err}
	}

	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	query.Set("lon", strconv.FormatFloat(lng, 'f', 6, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/reverse?"+query.Encode(), nil)
	if err != nil {
		return nil, &ClientError{Message: "failed to build request", Cause: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ClientError{Message: "reverse geocode request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ClientError{Message: "reverse geocode returned status " + resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &ClientError{Message: "failed to read response", Cause: err}
	}

	var parsed reverseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ClientError{Message: "invalid response payload", Cause: err}
	}
	if parsed.Error != "" {
		return nil, &ClientError{Message: "reverse geocode failed: " + parsed.Error}
	}

	return &parsed.Address, nil
}
