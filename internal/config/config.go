// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// contextvault.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.contextvault/config.toml
//   - ~/.contextvault/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/contextvault/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete contextvault configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Storage configuration
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Token budget configuration
	Budget BudgetConfig `toml:"budget" json:"budget"`

	// Summarization configuration
	Summarization SummarizationConfig `toml:"summarization" json:"summarization"`

	// Location / ambient context configuration
	Location LocationConfig `toml:"location" json:"location"`
}

// StorageConfig contains persistence configuration.
type StorageConfig struct {
	// DataDir is the directory holding the database and fallback files
	// (empty = default ~/.contextvault)
	DataDir string `toml:"data_dir" json:"data_dir"`
	// PreferSQLite selects the structured backend when it passes its
	// self-test; set false to force the flat-file backend
	PreferSQLite bool `toml:"prefer_sqlite" json:"prefer_sqlite"`
}

// BudgetConfig contains the token budget configuration.
type BudgetConfig struct {
	// MaxTokens is the total token budget for the conversation window
	MaxTokens int `toml:"max_tokens" json:"max_tokens"`
	// ReserveTokens is headroom kept free for the reply and context block
	ReserveTokens int `toml:"reserve_tokens" json:"reserve_tokens"`
	// MaxMessageTokens caps a single message before hard truncation
	MaxMessageTokens int `toml:"max_message_tokens" json:"max_message_tokens"`
	// MaxConversationLength caps the stored message count during cleanup
	MaxConversationLength int `toml:"max_conversation_length" json:"max_conversation_length"`
}

// SummarizationConfig contains summarization tuning.
type SummarizationConfig struct {
	// Threshold is the content length in characters above which new
	// messages are summarized
	Threshold int `toml:"threshold" json:"threshold"`
	// MaxLength bounds the generated summary in characters
	MaxLength int `toml:"max_length" json:"max_length"`
}

// LocationConfig contains ambient location configuration.
type LocationConfig struct {
	// Enabled turns location refresh on
	Enabled bool `toml:"enabled" json:"enabled"`
	// FixedLat/FixedLng, when both set, stand in for a live position source
	FixedLat float64 `toml:"fixed_lat" json:"fixed_lat"`
	FixedLng float64 `toml:"fixed_lng" json:"fixed_lng"`
	// GeocoderURL is the reverse-geocoding endpoint
	// (empty = the public Nominatim instance)
	GeocoderURL string `toml:"geocoder_url" json:"geocoder_url"`
	// RefreshIntervalMinutes is how often the ambient context is refreshed
	RefreshIntervalMinutes int `toml:"refresh_interval_minutes" json:"refresh_interval_minutes"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Storage: StorageConfig{
			DataDir:      "", // resolved via ConfigDir at open time
			PreferSQLite: true,
		},

		Budget: BudgetConfig{
			MaxTokens:             32000,
			ReserveTokens:         4000,
			MaxMessageTokens:      2000,
			MaxConversationLength: 200,
		},

		Summarization: SummarizationConfig{
			Threshold: 2000,
			MaxLength: 500,
		},

		Location: LocationConfig{
			Enabled:                false,
			RefreshIntervalMinutes: 30,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the contextvault configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".contextvault"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// DataDir resolves the storage directory: the configured one, or the
// config directory when unset.
func (c *Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir, nil
	}
	return ConfigDir()
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	// Defaults, with any load error kept for informational purposes.
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, loadErr
}

// finishLoad applies env overrides, defaults, and validation.
func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finishLoad(cfg)
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# contextvault configuration file")
	fmt.Fprintln(file, "# Generated by contextvault - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// SaveJSON saves the configuration to a JSON file.
// RELIABILITY: Atomic write with fsync prevents data loss on crash.
func SaveJSON(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Budget settings. The reserve must leave a usable window.
	if c.Budget.MaxTokens <= 0 {
		errs = append(errs, ValidationError{
			Field:   "budget.max_tokens",
			Message: fmt.Sprintf("must be positive, got %d", c.Budget.MaxTokens),
		})
	}
	if c.Budget.ReserveTokens < 0 {
		errs = append(errs, ValidationError{
			Field:   "budget.reserve_tokens",
			Message: fmt.Sprintf("cannot be negative, got %d", c.Budget.ReserveTokens),
		})
	}
	if c.Budget.MaxTokens > 0 && c.Budget.ReserveTokens >= c.Budget.MaxTokens {
		errs = append(errs, ValidationError{
			Field:   "budget.reserve_tokens",
			Message: fmt.Sprintf("must be less than max_tokens (%d), got %d", c.Budget.MaxTokens, c.Budget.ReserveTokens),
		})
	}
	if c.Budget.MaxMessageTokens <= 0 {
		errs = append(errs, ValidationError{
			Field:   "budget.max_message_tokens",
			Message: fmt.Sprintf("must be positive, got %d", c.Budget.MaxMessageTokens),
		})
	}
	if c.Budget.MaxConversationLength <= 0 {
		errs = append(errs, ValidationError{
			Field:   "budget.max_conversation_length",
			Message: fmt.Sprintf("must be positive, got %d", c.Budget.MaxConversationLength),
		})
	}

	// Summarization settings
	if c.Summarization.Threshold <= 0 {
		errs = append(errs, ValidationError{
			Field:   "summarization.threshold",
			Message: fmt.Sprintf("must be positive, got %d", c.Summarization.Threshold),
		})
	}
	if c.Summarization.MaxLength < 40 {
		errs = append(errs, ValidationError{
			Field:   "summarization.max_length",
			Message: fmt.Sprintf("must be at least 40, got %d", c.Summarization.MaxLength),
		})
	}
	if c.Summarization.MaxLength > c.Summarization.Threshold {
		errs = append(errs, ValidationError{
			Field:   "summarization.max_length",
			Message: fmt.Sprintf("must not exceed summarization.threshold (%d), got %d", c.Summarization.Threshold, c.Summarization.MaxLength),
		})
	}

	// Location settings
	if c.Location.GeocoderURL != "" {
		if _, err := url.Parse(c.Location.GeocoderURL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "location.geocoder_url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		}
	}
	if c.Location.RefreshIntervalMinutes < 0 {
		errs = append(errs, ValidationError{
			Field:   "location.refresh_interval_minutes",
			Message: fmt.Sprintf("cannot be negative, got %d", c.Location.RefreshIntervalMinutes),
		})
	}
	if c.Location.FixedLat < -90 || c.Location.FixedLat > 90 {
		errs = append(errs, ValidationError{
			Field:   "location.fixed_lat",
			Message: fmt.Sprintf("must be within [-90, 90], got %v", c.Location.FixedLat),
		})
	}
	if c.Location.FixedLng < -180 || c.Location.FixedLng > 180 {
		errs = append(errs, ValidationError{
			Field:   "location.fixed_lng",
			Message: fmt.Sprintf("must be within [-180, 180], got %v", c.Location.FixedLng),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}

	if c.Budget.MaxTokens == 0 {
		c.Budget.MaxTokens = defaults.Budget.MaxTokens
	}
	if c.Budget.ReserveTokens == 0 {
		c.Budget.ReserveTokens = defaults.Budget.ReserveTokens
	}
	if c.Budget.MaxMessageTokens == 0 {
		c.Budget.MaxMessageTokens = defaults.Budget.MaxMessageTokens
	}
	if c.Budget.MaxConversationLength == 0 {
		c.Budget.MaxConversationLength = defaults.Budget.MaxConversationLength
	}

	if c.Summarization.Threshold == 0 {
		c.Summarization.Threshold = defaults.Summarization.Threshold
	}
	if c.Summarization.MaxLength == 0 {
		c.Summarization.MaxLength = defaults.Summarization.MaxLength
	}

	if c.Location.RefreshIntervalMinutes == 0 {
		c.Location.RefreshIntervalMinutes = defaults.Location.RefreshIntervalMinutes
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - CONTEXTVAULT_DATA_DIR: overrides storage.data_dir
//   - CONTEXTVAULT_NO_SQLITE: set to "1" or "true" to force the flat-file backend
//   - CONTEXTVAULT_MAX_TOKENS: overrides budget.max_tokens
//   - CONTEXTVAULT_RESERVE_TOKENS: overrides budget.reserve_tokens
//   - CONTEXTVAULT_SUMMARIZE_THRESHOLD: overrides summarization.threshold
//   - CONTEXTVAULT_SUMMARY_MAX_LENGTH: overrides summarization.max_length
//   - CONTEXTVAULT_GEOCODER_URL: overrides location.geocoder_url
func (c *Config) ApplyEnvOverrides() {
	if dir := os.Getenv("CONTEXTVAULT_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}
	if v := os.Getenv("CONTEXTVAULT_NO_SQLITE"); v != "" {
		if v == "1" || strings.ToLower(v) == "true" {
			c.Storage.PreferSQLite = false
		}
	}
	if v := os.Getenv("CONTEXTVAULT_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Budget.MaxTokens = n
		}
	}
	if v := os.Getenv("CONTEXTVAULT_RESERVE_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Budget.ReserveTokens = n
		}
	}
	if v := os.Getenv("CONTEXTVAULT_SUMMARIZE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Summarization.Threshold = n
		}
	}
	if v := os.Getenv("CONTEXTVAULT_SUMMARY_MAX_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Summarization.MaxLength = n
		}
	}
	if u := os.Getenv("CONTEXTVAULT_GEOCODER_URL"); u != "" {
		c.Location.GeocoderURL = u
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation
// (e.g., "budget.max_tokens").
func (c *Config) Get(key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return nil, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})

		if !field.IsValid() {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			return field.Interface(), nil
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return nil, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return nil, fmt.Errorf("invalid key: %s", key)
}

// Set sets a configuration value using dot notation
// (e.g., "summarization.threshold").
func (c *Config) Set(key string, value interface{}) error {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})

		if !field.IsValid() {
			return fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if !field.CanSet() {
				return fmt.Errorf("cannot set field: %s", key)
			}
			return setFieldValue(field, value)
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go
// field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}

	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type
// conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	// Handle string input with type conversion
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal := strVal == "1" || strings.ToLower(strVal) == "true" || strings.ToLower(strVal) == "yes"
			field.SetBool(boolVal)
			return nil
		}
	}

	// Direct assignment for matching types
	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}

	// Type conversion for compatible types
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"storage.data_dir",
		"storage.prefer_sqlite",
		"budget.max_tokens",
		"budget.reserve_tokens",
		"budget.max_message_tokens",
		"budget.max_conversation_length",
		"summarization.threshold",
		"summarization.max_length",
		"location.enabled",
		"location.fixed_lat",
		"location.fixed_lng",
		"location.geocoder_url",
		"location.refresh_interval_minutes",
	}
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a string representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			// Log but don't fail - use defaults
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
// This should only be used in tests to reset state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
