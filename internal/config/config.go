// Package config loads mcpricer settings from defaults, an optional config
// file (JSON, YAML or TOML), a .env file, MCPRICER_* environment variables
// and command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/contactkeval/option-montecarlo/internal/data"
	"github.com/contactkeval/option-montecarlo/internal/market"
	"github.com/contactkeval/option-montecarlo/internal/montecarlo"
)

const EnvPrefix = "MCPRICER"

type Config struct {
	Verbosity  int              `mapstructure:"verbosity" validate:"min=0,max=3"`
	Model      ModelConfig      `mapstructure:"model"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Option     OptionConfig     `mapstructure:"option"`
	Market     MarketConfig     `mapstructure:"market"`
	Report     ReportConfig     `mapstructure:"report"`
	Server     ServerConfig     `mapstructure:"server"`
}

type ModelConfig struct {
	Name   string            `mapstructure:"name" validate:"oneof=gbm heston"`
	Heston montecarlo.Heston `mapstructure:"heston"`
}

type SimulationConfig struct {
	Spot                float64 `mapstructure:"spot"`
	Rate                float64 `mapstructure:"rate"`
	Volatility          float64 `mapstructure:"volatility"`
	Maturity            float64 `mapstructure:"maturity"`
	Steps               int     `mapstructure:"steps"`
	Paths               int     `mapstructure:"paths"`
	Seed                uint64  `mapstructure:"seed"`
	Workers             int     `mapstructure:"workers" validate:"min=0"`
	CommonRandomNumbers bool    `mapstructure:"common_random_numbers"`
	Confidence          float64 `mapstructure:"confidence" validate:"gt=0,lt=1"`
}

type OptionConfig struct {
	Strike float64 `mapstructure:"strike"`
	Kind   string  `mapstructure:"kind"`
	Bump   float64 `mapstructure:"bump" validate:"gte=0"`
}

type MarketConfig struct {
	Provider    string  `mapstructure:"provider" validate:"oneof=synthetic massive csv"`
	Fallback    bool    `mapstructure:"fallback"`
	Ticker      string  `mapstructure:"ticker"`
	Expiry      string  `mapstructure:"expiry"`
	ExpiryIndex int     `mapstructure:"expiry_index" validate:"min=0"`
	DTE         int     `mapstructure:"dte" validate:"min=0"`
	Strike      string  `mapstructure:"strike"`
	VolSource   string  `mapstructure:"vol_source" validate:"oneof=fixed implied historical"`
	Rate        float64 `mapstructure:"rate"`
	Volatility  float64 `mapstructure:"volatility" validate:"gte=0"`
	HistoryDays int     `mapstructure:"history_days" validate:"min=0"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	DataDir     string  `mapstructure:"data_dir"`
}

type ReportConfig struct {
	Dir         string `mapstructure:"dir"`
	SamplePaths int    `mapstructure:"sample_paths" validate:"min=0"`
	Bins        int    `mapstructure:"bins" validate:"min=1"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxPaths        int           `mapstructure:"max_paths" validate:"min=1"`
	MaxSteps        int           `mapstructure:"max_steps" validate:"min=1,max=1048576"`
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"verbosity":    "verbosity",
	"model":        "model.name",
	"spot":         "simulation.spot",
	"rate":         "simulation.rate",
	"vol":          "simulation.volatility",
	"maturity":     "simulation.maturity",
	"steps":        "simulation.steps",
	"paths":        "simulation.paths",
	"seed":         "simulation.seed",
	"workers":      "simulation.workers",
	"crn":          "simulation.common_random_numbers",
	"confidence":   "simulation.confidence",
	"strike":       "option.strike",
	"kind":         "option.kind",
	"bump":         "option.bump",
	"provider":     "market.provider",
	"ticker":       "market.ticker",
	"expiry":       "market.expiry",
	"expiry-index": "market.expiry_index",
	"dte":          "market.dte",
	"strike-expr":  "market.strike",
	"vol-source":   "market.vol_source",
	"data-dir":     "market.data_dir",
	"out":          "report.dir",
	"sample":       "report.sample_paths",
	"bins":         "report.bins",
	"addr":         "server.addr",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("verbosity", 1)

	v.SetDefault("model.name", "gbm")
	v.SetDefault("model.heston.v0", 0.0)
	v.SetDefault("model.heston.kappa", 2.0)
	v.SetDefault("model.heston.theta", 0.04)
	v.SetDefault("model.heston.xi", 0.3)
	v.SetDefault("model.heston.rho", -0.7)

	v.SetDefault("simulation.spot", 100.0)
	v.SetDefault("simulation.rate", 0.05)
	v.SetDefault("simulation.volatility", 0.2)
	v.SetDefault("simulation.maturity", 1.0)
	v.SetDefault("simulation.steps", 252)
	v.SetDefault("simulation.paths", 10000)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.workers", 0)
	v.SetDefault("simulation.common_random_numbers", false)
	v.SetDefault("simulation.confidence", 0.95)

	v.SetDefault("option.strike", 100.0)
	v.SetDefault("option.kind", "call")
	v.SetDefault("option.bump", montecarlo.DefaultBump)

	v.SetDefault("market.provider", "synthetic")
	v.SetDefault("market.fallback", true)
	v.SetDefault("market.ticker", "SPY")
	v.SetDefault("market.expiry", "")
	v.SetDefault("market.expiry_index", 0)
	v.SetDefault("market.dte", 0)
	v.SetDefault("market.strike", "")
	v.SetDefault("market.vol_source", "fixed")
	v.SetDefault("market.rate", market.DefaultRate)
	v.SetDefault("market.volatility", market.DefaultVolatility)
	v.SetDefault("market.history_days", market.DefaultHistoryDays)
	v.SetDefault("market.api_key", "")
	v.SetDefault("market.base_url", data.DefaultMassiveBaseURL)
	v.SetDefault("market.data_dir", "data")

	v.SetDefault("report.dir", "")
	v.SetDefault("report.sample_paths", 20)
	v.SetDefault("report.bins", 50)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_paths", 1_000_000)
	v.SetDefault("server.max_steps", 10_000)
}

// Load reads configuration. path may be empty; flags may be nil. A .env
// file in the working directory is loaded first when present.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("market.api_key", EnvPrefix+"_MARKET_API_KEY", "MASSIVE_API_KEY", "POLYGON_API_KEY"); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate normalises enum-like fields and checks struct rules. Pricing
// inputs are left to the montecarlo validators so their errors keep the
// domain error kinds.
func (c *Config) Validate() error {
	c.Model.Name = strings.ToLower(strings.TrimSpace(c.Model.Name))
	c.Market.Provider = strings.ToLower(strings.TrimSpace(c.Market.Provider))
	c.Market.VolSource = strings.ToLower(strings.TrimSpace(c.Market.VolSource))
	if c.Market.VolSource == "" {
		c.Market.VolSource = string(market.VolFixed)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Params returns the simulation parameters.
func (c *Config) Params() montecarlo.Params {
	s := c.Simulation
	return montecarlo.Params{
		Spot:       s.Spot,
		Rate:       s.Rate,
		Volatility: s.Volatility,
		Maturity:   s.Maturity,
		Steps:      s.Steps,
		Paths:      s.Paths,
	}
}

// Contract returns the configured option after validating its kind and strike.
func (c *Config) Contract() (montecarlo.Option, error) {
	kind, err := montecarlo.ParseOptionKind(c.Option.Kind)
	if err != nil {
		return montecarlo.Option{}, err
	}
	opt := montecarlo.Option{Strike: c.Option.Strike, Kind: kind}
	return opt, opt.Validate()
}

// NewPricer builds the pricer for the configured model and simulation
// options.
func (c *Config) NewPricer() (*montecarlo.Pricer, error) {
	model, err := montecarlo.ModelByName(c.Model.Name, c.Model.Heston)
	if err != nil {
		return nil, err
	}
	return montecarlo.NewPricer(model,
		montecarlo.WithSeed(c.Simulation.Seed),
		montecarlo.WithWorkers(c.Simulation.Workers),
		montecarlo.WithCommonRandomNumbers(c.Simulation.CommonRandomNumbers),
	), nil
}

// NewProvider builds the market data chain. With Fallback the synthetic
// provider answers whatever the primary cannot.
func (c *Config) NewProvider() (data.Provider, error) {
	m := c.Market
	var secondary data.Provider
	if m.Fallback && m.Provider != "synthetic" {
		secondary = data.NewSyntheticProvider(data.SyntheticConfig{Seed: c.Simulation.Seed, Volatility: m.Volatility, Rate: m.Rate})
	}

	switch m.Provider {
	case "synthetic":
		return data.NewSyntheticProvider(data.SyntheticConfig{Seed: c.Simulation.Seed, Volatility: m.Volatility, Rate: m.Rate}), nil
	case "massive":
		if m.APIKey == "" && secondary == nil {
			return nil, fmt.Errorf("massive provider needs an API key (MASSIVE_API_KEY)")
		}
		opts := []data.MassiveOption{data.WithBaseURL(m.BaseURL)}
		if secondary != nil {
			opts = append(opts, data.WithSecondary(secondary))
		}
		return data.NewMassiveDataProvider(m.APIKey, opts...), nil
	case "csv":
		return data.NewLocalFileDataProvider(m.DataDir, secondary), nil
	}
	return nil, fmt.Errorf("unknown market data provider %q", m.Provider)
}

// MarketRequest builds the resolver request from the market section.
func (c *Config) MarketRequest() (market.Request, error) {
	kind, err := montecarlo.ParseOptionKind(c.Option.Kind)
	if err != nil {
		return market.Request{}, err
	}
	src, err := market.ParseVolSource(c.Market.VolSource)
	if err != nil {
		return market.Request{}, err
	}
	vol := c.Market.Volatility
	return market.Request{
		Ticker:      c.Market.Ticker,
		Expiry:      c.Market.Expiry,
		ExpiryIndex: c.Market.ExpiryIndex,
		DTE:         c.Market.DTE,
		Strike:      c.Market.Strike,
		Kind:        kind,
		Rate:        c.Market.Rate,
		VolSource:   src,
		Volatility:  &vol,
		HistoryDays: c.Market.HistoryDays,
		Steps:       c.Simulation.Steps,
		Paths:       c.Simulation.Paths,
	}, nil
}
