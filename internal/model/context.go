// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the conversation cache.
package model

import (
	"strconv"
	"strings"
	"time"
)

// DefaultLocation is used until a real location has been resolved.
const DefaultLocation = "Unknown location"

// =============================================================================
// SESSION CONTEXT TYPE
// =============================================================================

// Coordinates holds a geographic position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns the coordinates as a fixed-precision display string.
// This is the fallback location text when reverse geocoding is unavailable.
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Lat, 'f', 4, 64) + ", " +
		strconv.FormatFloat(c.Lng, 'f', 4, 64)
}

// SessionContext holds ambient metadata injected into prompts.
//
// The formatted date/time/timezone strings are recomputed on demand via
// RefreshClock; Location keeps its previous value on any refresh failure
// and is never cleared back to empty.
type SessionContext struct {
	CurrentDate string `json:"current_date"`
	CurrentTime string `json:"current_time"`
	Timezone    string `json:"timezone"`

	Location           string       `json:"location"`
	Coordinates        *Coordinates `json:"coordinates,omitempty"`
	LastLocationUpdate *time.Time   `json:"last_location_update,omitempty"`
}

// NewSessionContext creates a session context with defaults and the clock
// fields populated from the current time.
func NewSessionContext() *SessionContext {
	ctx := &SessionContext{
		Location: DefaultLocation,
	}
	ctx.RefreshClock(time.Now())
	return ctx
}

// =============================================================================
// SESSION CONTEXT METHODS
// =============================================================================

// RefreshClock recomputes the formatted date, time, and timezone strings.
func (c *SessionContext) RefreshClock(now time.Time) {
	c.CurrentDate = now.Format("Monday, January 2, 2006")
	c.CurrentTime = now.Format("3:04 PM")
	zone, _ := now.Zone()
	c.Timezone = zone
}

// SetLocation records a resolved location and its coordinates.
func (c *SessionContext) SetLocation(name string, coords Coordinates, at time.Time) {
	if name == "" {
		name = coords.String()
	}
	c.Location = name
	c.Coordinates = &coords
	c.LastLocationUpdate = &at
}

// FormatBlock renders the context as a prompt-ready block.
func (c *SessionContext) FormatBlock() string {
	var sb strings.Builder
	sb.WriteString("Current date: ")
	sb.WriteString(c.CurrentDate)
	sb.WriteString("\nCurrent time: ")
	sb.WriteString(c.CurrentTime)
	if c.Timezone != "" {
		sb.WriteString(" (")
		sb.WriteString(c.Timezone)
		sb.WriteString(")")
	}
	sb.WriteString("\nLocation: ")
	sb.WriteString(c.Location)
	return sb.String()
}

// Clone returns a copy of the session context.
func (c *SessionContext) Clone() *SessionContext {
	cp := *c
	if c.Coordinates != nil {
		coords := *c.Coordinates
		cp.Coordinates = &coords
	}
	if c.LastLocationUpdate != nil {
		at := *c.LastLocationUpdate
		cp.LastLocationUpdate = &at
	}
	return &cp
}
