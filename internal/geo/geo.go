// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package geo provides the location collaborators for the context cache.
package geo

import (
	"context"
	"strings"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Locator yields the current geographic coordinates. Implementations may
// ask the operating system, a network service, or static configuration.
type Locator interface {
	Locate(ctx context.Context) (lat, lng float64, err error)
}

// Geocoder resolves coordinates to a structured address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (*Address, error)
}

// =============================================================================
// ADDRESS TYPE
// =============================================================================

// Address is the structured result of a reverse-geocode lookup. All fields
// are optional; at most one of City/Town/Village is usually present.
type Address struct {
	City    string `json:"city,omitempty"`
	Town    string `json:"town,omitempty"`
	Village string `json:"village,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// Place returns the most specific populated-place name available.
func (a *Address) Place() string {
	switch {
	case a.City != "":
		return a.City
	case a.Town != "":
		return a.Town
	case a.Village != "":
		return a.Village
	default:
		return ""
	}
}

// DisplayName joins the available fields into a single display string,
// e.g. "Portland, Oregon, United States". Empty when nothing resolved.
func (a *Address) DisplayName() string {
	parts := make([]string, 0, 3)
	if place := a.Place(); place != "" {
		parts = append(parts, place)
	}
	if a.State != "" {
		parts = append(parts, a.State)
	}
	if a.Country != "" {
		parts = append(parts, a.Country)
	}
	return strings.Join(parts, ", ")
}

// =============================================================================
// FIXED LOCATOR
// =============================================================================

// FixedLocator returns configured coordinates. It stands in for a real
// positioning source on hosts without one.
type FixedLocator struct {
	Lat float64
	Lng float64

	// Err, when set, is returned instead of the coordinates.
	Err error
}

// Locate returns the configured coordinates.
func (l *FixedLocator) Locate(ctx context.Context) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if l.Err != nil {
		return 0, 0, l.Err
	}
	return l.Lat, l.Lng, nil
}
