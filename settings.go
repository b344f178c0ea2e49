package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/go-pkgz/lgr"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"editgrid/internal/grid"
)

const appName = "editgrid"

// Settings represents the grid configuration persisted between runs
type Settings struct {
	IndicateNull      bool   `yaml:"indicate_null"`
	NullMarker        string `yaml:"null_marker"`
	PasteQuoteChar    string `yaml:"paste_quote_char"`
	PasteSeparator    string `yaml:"paste_separator"`
	ColumnDescription string `yaml:"column_description"`
	UseSerialValues   bool   `yaml:"use_serial_values"`
	MaxPoolLines      int    `yaml:"max_pool_lines,omitempty"`
}

// DefaultSettings mirrors grid.DefaultOptions.
func DefaultSettings() *Settings {
	return &Settings{
		NullMarker:        grid.DefaultNullMarker,
		PasteQuoteChar:    string(grid.DefaultQuoteChar),
		PasteSeparator:    string(grid.DefaultColumnSeparator),
		ColumnDescription: grid.DefaultDescriptionFormat,
	}
}

// getConfigDir returns the configuration directory following XDG Base Directory spec
func getConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, appName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}

	return filepath.Join(home, ".config", appName), nil
}

// getSettingsPath returns the full path to settings.yml
func getSettingsPath() (string, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "settings.yml"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() error {
	configDir, err := getConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	return nil
}

// LoadSettings reads settings.yml, returning defaults if it doesn't exist.
// Keys missing from the file keep their default values.
func LoadSettings() (*Settings, error) {
	settingsPath, err := getSettingsPath()
	if err != nil {
		return nil, err
	}

	settings := DefaultSettings()
	data, err := os.ReadFile(settingsPath) // nolint gosec
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return nil, fmt.Errorf("could not read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("could not parse settings file: %w", err)
	}

	return settings, nil
}

// SaveSettings writes the settings to settings.yml
func SaveSettings(settings *Settings) error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	settingsPath, err := getSettingsPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("could not marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0o644); err != nil {
		return fmt.Errorf("could not write settings file: %w", err)
	}

	return nil
}

// ToOptions converts settings into grid options. The paste quote and separator must be single characters.
func (s *Settings) ToOptions(log lgr.L) (grid.Options, error) {
	opts := grid.DefaultOptions()
	opts.IndicateNull = s.IndicateNull
	if s.NullMarker != "" {
		opts.NullMarker = s.NullMarker
	}
	if s.ColumnDescription != "" {
		opts.DescriptionFormat = s.ColumnDescription
	}
	if s.MaxPoolLines > 0 {
		opts.MaxPoolLines = s.MaxPoolLines
	}
	if log != nil {
		opts.Logger = log
	}

	errs := new(multierror.Error)
	singleRune := func(name, v string, dst *rune) {
		if v == "" {
			return
		}
		r, size := utf8.DecodeRuneInString(v)
		if r == utf8.RuneError || size != len(v) {
			errs = multierror.Append(errs, fmt.Errorf("%s must be a single character, got %q", name, v))
			return
		}
		*dst = r
	}
	singleRune("paste_quote_char", s.PasteQuoteChar, &opts.QuoteChar)
	singleRune("paste_separator", s.PasteSeparator, &opts.ColumnSeparator)
	if opts.QuoteChar == opts.ColumnSeparator {
		errs = multierror.Append(errs, fmt.Errorf("paste_quote_char and paste_separator must differ"))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return grid.Options{}, err
	}
	return opts, nil
}
