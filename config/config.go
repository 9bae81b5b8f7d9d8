package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rustyeddy/papertrader/errs"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/report"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/signals"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the complete papertrader configuration
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Trailing TrailingConfig `json:"trailing" yaml:"trailing"`
	Signals  SignalsConfig  `json:"signals" yaml:"signals"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

// AccountConfig is the paper account P&L is measured against
type AccountConfig struct {
	Currency        string  `json:"currency" yaml:"currency"`
	StartingBalance float64 `json:"starting_balance" yaml:"starting_balance"`
}

// RiskConfig holds the defaults the CLI uses when a command leaves sizing or
// stop placement to ATR.
type RiskConfig struct {
	RiskUSD    float64 `json:"risk_usd" yaml:"risk_usd"`
	StopATR    float64 `json:"stop_atr" yaml:"stop_atr"`
	TakeATR    float64 `json:"tp_atr" yaml:"tp_atr"`
	MinVolFrac float64 `json:"min_vol_frac" yaml:"min_vol_frac"`
	// SizePlaces truncates computed sizes to this many decimals; 0 keeps
	// full precision.
	SizePlaces int32 `json:"size_places" yaml:"size_places"`

	// Pre-trade limits checked by open; zero disables each.
	MaxRiskUSD float64 `json:"max_risk_usd,omitempty" yaml:"max_risk_usd,omitempty"`
	MaxRiskPct float64 `json:"max_risk_pct,omitempty" yaml:"max_risk_pct,omitempty"`
	MinRR      float64 `json:"min_rr,omitempty" yaml:"min_rr,omitempty"`
}

// TrailingConfig holds the ATR multiples for breakeven and trailing stops
type TrailingConfig struct {
	MoveToBreakevenATR float64 `json:"move_to_be_atr" yaml:"move_to_be_atr"`
	TrailStartATR      float64 `json:"trail_start_atr" yaml:"trail_start_atr"`
	TrailDistanceATR   float64 `json:"trail_distance_atr" yaml:"trail_distance_atr"`
}

// SignalsConfig parameterizes the signal snapshot
type SignalsConfig struct {
	RSIPeriod   int     `json:"rsi_period" yaml:"rsi_period"`
	Oversold    float64 `json:"oversold" yaml:"oversold"`
	Overbought  float64 `json:"overbought" yaml:"overbought"`
	EMAFast     int     `json:"ema_fast" yaml:"ema_fast"`
	EMASlow     int     `json:"ema_slow" yaml:"ema_slow"`
	BufferPct   float64 `json:"buffer_pct" yaml:"buffer_pct"`
	ConfirmTF   string  `json:"confirm_tf,omitempty" yaml:"confirm_tf,omitempty"` // e.g. "6h"; empty disables
	OBVMAPeriod int     `json:"obv_ma_period" yaml:"obv_ma_period"`
	ATRPeriod   int     `json:"atr_period" yaml:"atr_period"`
}

// JournalConfig selects the event store
type JournalConfig struct {
	Type string `json:"type" yaml:"type"` // "sqlite" or "memory"
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level    string `json:"level" yaml:"level"`
	Encoding string `json:"encoding" yaml:"encoding"` // "json" or "console"
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Missing sections keep their defaults.
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errs.ErrValidation}, args...)...)
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return invalid("account.currency is required")
	}
	if c.Account.StartingBalance <= 0 {
		return invalid("account.starting_balance must be positive")
	}
	if c.Risk.RiskUSD <= 0 {
		return invalid("risk.risk_usd must be positive")
	}
	if c.Risk.StopATR <= 0 {
		return invalid("risk.stop_atr must be positive")
	}
	if c.Risk.TakeATR < 0 {
		return invalid("risk.tp_atr must not be negative")
	}
	if c.Risk.MinVolFrac < 0 || c.Risk.MinVolFrac >= 1 {
		return invalid("risk.min_vol_frac must be between 0 and 1")
	}
	if c.Risk.SizePlaces < 0 {
		return invalid("risk.size_places must not be negative")
	}
	if c.Risk.MaxRiskUSD < 0 || c.Risk.MaxRiskPct < 0 || c.Risk.MinRR < 0 {
		return invalid("risk limits must not be negative")
	}
	if err := c.Trailing.Ledger().Validate(); err != nil {
		return fmt.Errorf("trailing: %w", err)
	}
	req, err := c.Signals.Request()
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("signals: %w", err)
	}
	switch c.Journal.Type {
	case journal.TypeSQLite:
		if c.Journal.Path == "" {
			return invalid("journal.path required for sqlite journal")
		}
	case journal.TypeMemory:
	default:
		return invalid("journal.type must be 'sqlite' or 'memory'")
	}
	switch c.Logging.Encoding {
	case "", "json", "console":
	default:
		return invalid("logging.encoding must be 'json' or 'console'")
	}
	return nil
}

// Ledger converts the multiples for a ledger open request.
func (c TrailingConfig) Ledger() ledger.TrailingConfig {
	return ledger.TrailingConfig{
		MoveToBreakevenATR: decimal.NewFromFloat(c.MoveToBreakevenATR),
		TrailStartATR:      decimal.NewFromFloat(c.TrailStartATR),
		TrailDistanceATR:   decimal.NewFromFloat(c.TrailDistanceATR),
	}
}

// Request builds the signal request with every indicator enabled.
func (c SignalsConfig) Request() (signals.Request, error) {
	var confirm time.Duration
	if c.ConfirmTF != "" {
		d, err := time.ParseDuration(c.ConfirmTF)
		if err != nil || d < 0 {
			return signals.Request{}, invalid("signals.confirm_tf %q is not a duration", c.ConfirmTF)
		}
		confirm = d
	}
	return signals.Request{
		IncludeRSI:   true,
		RSIPeriod:    c.RSIPeriod,
		Oversold:     c.Oversold,
		Overbought:   c.Overbought,
		IncludeEMA:   true,
		EMAFast:      c.EMAFast,
		EMASlow:      c.EMASlow,
		BufferPct:    c.BufferPct,
		ConfirmEvery: confirm,
		OBVMAPeriod:  c.OBVMAPeriod,
		IncludeATR:   true,
		ATRPeriod:    c.ATRPeriod,
	}, nil
}

// Policy returns the pre-trade limits.
func (c RiskConfig) Policy() risk.Policy {
	return risk.Policy{
		MaxRiskUSD: decimal.NewFromFloat(c.MaxRiskUSD),
		MaxRiskPct: decimal.NewFromFloat(c.MaxRiskPct),
		MinRR:      decimal.NewFromFloat(c.MinRR),
	}
}

// Report returns the account for the summary reporter.
func (c AccountConfig) Report() report.Account {
	return report.Account{
		StartingBalance: decimal.NewFromFloat(c.StartingBalance),
		Currency:        c.Currency,
	}
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Currency:        "USD",
			StartingBalance: 10000,
		},
		Risk: RiskConfig{
			RiskUSD:    25,
			StopATR:    1.5,
			TakeATR:    3,
			MinVolFrac: 0.001,
		},
		Trailing: TrailingConfig{
			MoveToBreakevenATR: 1,
			TrailStartATR:      2,
			TrailDistanceATR:   1.25,
		},
		Signals: SignalsConfig{
			RSIPeriod:   14,
			Oversold:    30,
			Overbought:  70,
			EMAFast:     20,
			EMASlow:     50,
			BufferPct:   0.004,
			ConfirmTF:   "6h",
			OBVMAPeriod: 20,
			ATRPeriod:   14,
		},
		Journal: JournalConfig{
			Type: journal.TypeSQLite,
			Path: "./papertrader.db",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}
