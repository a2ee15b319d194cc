// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package geo provides the location collaborators for the context cache:
// a source of coordinates and a reverse geocoder that turns coordinates
// into a human-readable place name.
//
// Both collaborators are optional. Every failure is recoverable: callers
// keep the last known location, falling back to plain coordinate text when
// no place name can be resolved.
//
// # Key Types
//
//   - Locator: yields the current coordinates
//   - Geocoder: resolves coordinates to a structured Address
//   - NominatimClient: Geocoder backed by a Nominatim-compatible HTTP API
//
// # Usage
//
//	geocoder := geo.NewNominatimClient(nil)
//	addr, err := geocoder.ReverseGeocode(ctx, 45.5152, -122.6784)
//	if err == nil {
//	    fmt.Println(addr.DisplayName())
//	}
package geo
