package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Risk management modes.
const (
	RiskModeVolatility = "volatility"
	RiskModeFixed      = "fixed"
)

// TrailingSettings tune the trailing-stop controller. Percent values are
// whole percents (1.5 means 1.5%).
type TrailingSettings struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	TriggerPct  float64 `yaml:"trigger_pct" json:"trigger_pct"`
	DistancePct float64 `yaml:"distance_pct" json:"distance_pct"`
}

// Settings are the runtime-mutable trading parameters. Changes apply to the
// next decision cycle; open positions are not retroactively modified except
// where the trailing controller re-reads them each tick.
type Settings struct {
	Strategy        string  `yaml:"strategy" json:"strategy"` // momentum | scalper
	Interval        string  `yaml:"interval" json:"interval"`
	PollIntervalSec int     `yaml:"poll_interval_sec" json:"poll_interval_sec"`
	Leverage        int     `yaml:"leverage" json:"leverage"`
	MarginMode      string  `yaml:"margin_mode" json:"margin_mode"` // CROSSED | ISOLATED
	NotionalUSD     float64 `yaml:"notional_usd" json:"notional_usd"`
	MaxConcurrent   int     `yaml:"max_concurrent_trades" json:"max_concurrent_trades"`

	Symbols           []string `yaml:"symbols" json:"symbols"`
	AutoDiscover      bool     `yaml:"auto_discover" json:"auto_discover"`
	AutoDiscoverCount int      `yaml:"auto_discover_count" json:"auto_discover_count"`

	RiskMode   string  `yaml:"risk_mode" json:"risk_mode"`
	SLMultiple float64 `yaml:"sl_volatility_multiple" json:"sl_volatility_multiple"`
	TPMultiple float64 `yaml:"tp_volatility_multiple" json:"tp_volatility_multiple"`
	FixedTPPct float64 `yaml:"fixed_tp_pct" json:"fixed_tp_pct"` // whole percent
	FixedSLPct float64 `yaml:"fixed_sl_pct" json:"fixed_sl_pct"` // whole percent

	Trailing TrailingSettings `yaml:"trailing" json:"trailing"`
}

// DefaultSettings returns the shipped defaults.
func DefaultSettings() Settings {
	return Settings{
		Strategy:          "momentum",
		Interval:          "15m",
		PollIntervalSec:   30,
		Leverage:          10,
		MarginMode:        "CROSSED",
		NotionalUSD:       20,
		MaxConcurrent:     3,
		Symbols:           []string{"BTCUSDT"},
		AutoDiscover:      false,
		AutoDiscoverCount: 5,
		RiskMode:          RiskModeVolatility,
		SLMultiple:        1.5,
		TPMultiple:        3.0,
		FixedTPPct:        2.0,
		FixedSLPct:        1.0,
		Trailing: TrailingSettings{
			Enabled:     true,
			TriggerPct:  1.5,
			DistancePct: 0.5,
		},
	}
}

// LoadSettings reads settings from a YAML file, layered over defaults. A
// missing file yields the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("settings: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// SaveSettings writes the settings as YAML so runtime changes survive a
// restart. Path semantics mirror LoadSettings.
func SaveSettings(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("settings: write %s: %w", path, err)
	}
	return nil
}

// PollInterval returns the polling cadence as a duration.
func (s Settings) PollInterval() time.Duration {
	if s.PollIntervalSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.PollIntervalSec) * time.Second
}

// Validate checks settings invariants; invalid settings never reach the
// engine.
func (s Settings) Validate() error {
	switch s.Strategy {
	case "momentum", "scalper":
	default:
		return fmt.Errorf("settings: unknown strategy %q", s.Strategy)
	}
	if s.Leverage < 1 || s.Leverage > 125 {
		return fmt.Errorf("settings: leverage %d out of range [1,125]", s.Leverage)
	}
	switch s.MarginMode {
	case "CROSSED", "ISOLATED":
	default:
		return fmt.Errorf("settings: margin mode must be CROSSED or ISOLATED, got %q", s.MarginMode)
	}
	if s.NotionalUSD <= 0 {
		return fmt.Errorf("settings: notional_usd must be positive")
	}
	if s.MaxConcurrent < 1 {
		return fmt.Errorf("settings: max_concurrent_trades must be at least 1")
	}
	if !s.AutoDiscover && len(s.Symbols) == 0 {
		return fmt.Errorf("settings: symbols list empty and auto_discover disabled")
	}
	if s.AutoDiscover && s.AutoDiscoverCount < 1 {
		return fmt.Errorf("settings: auto_discover_count must be at least 1")
	}
	switch s.RiskMode {
	case RiskModeVolatility:
		if s.SLMultiple <= 0 || s.TPMultiple <= 0 {
			return fmt.Errorf("settings: volatility multiples must be positive")
		}
	case RiskModeFixed:
		if s.FixedTPPct <= 0 || s.FixedSLPct < 0 {
			return fmt.Errorf("settings: fixed percentages must be positive")
		}
	default:
		return fmt.Errorf("settings: risk_mode must be %q or %q", RiskModeVolatility, RiskModeFixed)
	}
	if s.Trailing.Enabled {
		if s.Trailing.TriggerPct <= 0 || s.Trailing.DistancePct <= 0 {
			return fmt.Errorf("settings: trailing trigger and distance must be positive")
		}
	}
	return nil
}

// Patch carries a partial settings update; nil fields are left unchanged.
type Patch struct {
	Strategy        *string  `json:"strategy,omitempty"`
	Interval        *string  `json:"interval,omitempty"`
	PollIntervalSec *int     `json:"poll_interval_sec,omitempty"`
	Leverage        *int     `json:"leverage,omitempty"`
	MarginMode      *string  `json:"margin_mode,omitempty"`
	NotionalUSD     *float64 `json:"notional_usd,omitempty"`
	MaxConcurrent   *int     `json:"max_concurrent_trades,omitempty"`

	Symbols           []string `json:"symbols,omitempty"`
	AutoDiscover      *bool    `json:"auto_discover,omitempty"`
	AutoDiscoverCount *int     `json:"auto_discover_count,omitempty"`

	RiskMode   *string  `json:"risk_mode,omitempty"`
	SLMultiple *float64 `json:"sl_volatility_multiple,omitempty"`
	TPMultiple *float64 `json:"tp_volatility_multiple,omitempty"`
	FixedTPPct *float64 `json:"fixed_tp_pct,omitempty"`
	FixedSLPct *float64 `json:"fixed_sl_pct,omitempty"`

	TrailingEnabled     *bool    `json:"trailing_enabled,omitempty"`
	TrailingTriggerPct  *float64 `json:"trailing_trigger_pct,omitempty"`
	TrailingDistancePct *float64 `json:"trailing_distance_pct,omitempty"`
}

// Apply merges the patch into a copy of s and validates the result. The
// original is untouched when validation fails.
func (s Settings) Apply(p Patch) (Settings, error) {
	next := s
	if p.Strategy != nil {
		next.Strategy = *p.Strategy
	}
	if p.Interval != nil {
		next.Interval = *p.Interval
	}
	if p.PollIntervalSec != nil {
		next.PollIntervalSec = *p.PollIntervalSec
	}
	if p.Leverage != nil {
		next.Leverage = *p.Leverage
	}
	if p.MarginMode != nil {
		next.MarginMode = *p.MarginMode
	}
	if p.NotionalUSD != nil {
		next.NotionalUSD = *p.NotionalUSD
	}
	if p.MaxConcurrent != nil {
		next.MaxConcurrent = *p.MaxConcurrent
	}
	if p.Symbols != nil {
		next.Symbols = p.Symbols
	}
	if p.AutoDiscover != nil {
		next.AutoDiscover = *p.AutoDiscover
	}
	if p.AutoDiscoverCount != nil {
		next.AutoDiscoverCount = *p.AutoDiscoverCount
	}
	if p.RiskMode != nil {
		next.RiskMode = *p.RiskMode
	}
	if p.SLMultiple != nil {
		next.SLMultiple = *p.SLMultiple
	}
	if p.TPMultiple != nil {
		next.TPMultiple = *p.TPMultiple
	}
	if p.FixedTPPct != nil {
		next.FixedTPPct = *p.FixedTPPct
	}
	if p.FixedSLPct != nil {
		next.FixedSLPct = *p.FixedSLPct
	}
	if p.TrailingEnabled != nil {
		next.Trailing.Enabled = *p.TrailingEnabled
	}
	if p.TrailingTriggerPct != nil {
		next.Trailing.TriggerPct = *p.TrailingTriggerPct
	}
	if p.TrailingDistancePct != nil {
		next.Trailing.DistancePct = *p.TrailingDistancePct
	}
	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}
