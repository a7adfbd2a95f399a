// Package config loads the server settings, simulation parameters and
// starting scenario from YAML, with environment overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rarestbarbie/majesty-sub001/internal/amm"
	"github.com/rarestbarbie/majesty-sub001/internal/economy"
	"github.com/rarestbarbie/majesty-sub001/internal/exact"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
)

//go:embed example.yaml
var example []byte

var ErrInvalid = errors.New("config: invalid")

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port         string        `yaml:"port"`
		DatabaseURL  string        `yaml:"database_url"`
		RedisURL     string        `yaml:"redis_url"`
		SQLitePath   string        `yaml:"sqlite_path"`
		TurnCron     string        `yaml:"turn_cron"`
		SnapshotCron string        `yaml:"snapshot_cron"`
		CacheTTL     time.Duration `yaml:"cache_ttl"`
	} `yaml:"server"`
	Simulation Simulation `yaml:"simulation"`
	Scenario   Scenario   `yaml:"scenario"`
}

// Simulation holds the rules of the turn loop.
type Simulation struct {
	Seed             uint64           `yaml:"seed"`
	Exchange         amm.Settings     `yaml:"exchange"`
	Economy          economy.Settings `yaml:"economy"`
	RaiseRate        exact.Fraction   `yaml:"raise_rate"`
	RouteCacheSize   int              `yaml:"route_cache_size"`
	ArbitrageCapital int64            `yaml:"arbitrage_capital"`
}

// Currency names a fiat currency.
type Currency struct {
	ID   model.Currency `yaml:"id"`
	Name string         `yaml:"name"`
}

// Authority governs a set of locations.
type Authority struct {
	economy.Authority `yaml:",inline"`
	Name              string           `yaml:"name"`
	Locations         []model.Location `yaml:"locations"`
}

// Agent is a factory or pop present at the start.
type Agent struct {
	ID       model.ID       `yaml:"id"`
	Type     string         `yaml:"type"`
	Location model.Location `yaml:"location"`
	Size     int64          `yaml:"size"`
	Cash     int64          `yaml:"cash"`
}

// Market is a pool opened with explicit liquidity.
type Market struct {
	Base        model.Asset `yaml:"base"`
	Quote       model.Asset `yaml:"quote"`
	BaseAmount  int64       `yaml:"base_amount"`
	QuoteAmount int64       `yaml:"quote_amount"`
}

// Scenario is the starting world.
type Scenario struct {
	Currencies   []Currency             `yaml:"currencies"`
	Resources    []economy.ResourceInfo `yaml:"resources"`
	Authorities  []Authority            `yaml:"authorities"`
	FactoryTypes []economy.FactoryType  `yaml:"factory_types"`
	PopTypes     []economy.PopType      `yaml:"pop_types"`
	Factories    []Agent                `yaml:"factories"`
	Pops         []Agent                `yaml:"pops"`
	Markets      []Market               `yaml:"markets"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. An empty path loads the bundled example scenario.
func Load(path string) (*Config, error) {
	data := example
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return Parse(data)
}

// Parse decodes YAML and applies environment overrides and defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Server.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Server.RedisURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Server.SQLitePath = v
	}
	if v := os.Getenv("TURN_CRON"); v != "" {
		cfg.Server.TurnCron = v
	}
	if v := os.Getenv("SNAPSHOT_CRON"); v != "" {
		cfg.Server.SnapshotCron = v
	}
	if v := os.Getenv("SIM_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: SIM_SEED %q", ErrInvalid, v)
		}
		cfg.Simulation.Seed = seed
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.TurnCron == "" {
		c.Server.TurnCron = "@every 10s"
	}
	if c.Server.CacheTTL == 0 {
		c.Server.CacheTTL = 30 * time.Second
	}

	s := &c.Simulation
	if s.Exchange.SeedLiquidity == 0 {
		s.Exchange.SeedLiquidity = 1000
	}
	if s.Exchange.HistoryLength == 0 {
		s.Exchange.HistoryLength = 30
	}
	if s.RaiseRate.IsZero() {
		s.RaiseRate = exact.New(1, 2)
	}
	if s.RouteCacheSize == 0 {
		s.RouteCacheSize = 8
	}
	if s.ArbitrageCapital == 0 {
		s.ArbitrageCapital = 10_000
	}

	d := economy.DefaultSettings()
	e := &s.Economy
	if e.StockpileDays == 0 {
		e.StockpileDays = d.StockpileDays
	}
	if e.QuitRate.IsZero() {
		e.QuitRate = d.QuitRate
	}
	if e.WageRaise.IsZero() {
		e.WageRaise = d.WageRaise
	}
	if e.DividendShare.IsZero() {
		e.DividendShare = d.DividendShare
	}
	if e.BuybackShare.IsZero() {
		e.BuybackShare = d.BuybackShare
	}
	if e.SharesPerSize == 0 {
		e.SharesPerSize = d.SharesPerSize
	}
	if e.SplitPrice.IsZero() {
		e.SplitPrice = d.SplitPrice
	}
	if e.SplitChance.IsZero() {
		e.SplitChance = d.SplitChance
	}
	if e.SentimentRate == 0 {
		e.SentimentRate = d.SentimentRate
	}
}

// Validate checks the scenario is self-consistent.
func (c *Config) Validate() error {
	s := c.Simulation
	if s.Exchange.Fee.Sign() < 0 || !s.Exchange.Fee.Less(exact.One) {
		return fmt.Errorf("%w: exchange.fee must be in [0, 1)", ErrInvalid)
	}
	if s.Exchange.Dividend.Sign() < 0 || !s.Exchange.Dividend.Less(exact.One) {
		return fmt.Errorf("%w: exchange.dividend must be in [0, 1)", ErrInvalid)
	}
	if s.Exchange.SeedLiquidity <= 0 {
		return fmt.Errorf("%w: exchange.seed_liquidity must be positive", ErrInvalid)
	}
	if s.RaiseRate.Sign() <= 0 {
		return fmt.Errorf("%w: raise_rate must be positive", ErrInvalid)
	}
	if s.ArbitrageCapital < 0 {
		return fmt.Errorf("%w: arbitrage_capital must not be negative", ErrInvalid)
	}

	sc := c.Scenario
	if len(sc.Currencies) == 0 {
		return fmt.Errorf("%w: at least one currency is required", ErrInvalid)
	}
	currencies := make(map[model.Currency]bool)
	for _, cur := range sc.Currencies {
		if currencies[cur.ID] {
			return fmt.Errorf("%w: duplicate currency %d", ErrInvalid, cur.ID)
		}
		currencies[cur.ID] = true
	}
	resources := make(map[model.Resource]bool)
	for _, r := range sc.Resources {
		if resources[r.ID] {
			return fmt.Errorf("%w: duplicate resource %d", ErrInvalid, r.ID)
		}
		if !r.Tradeable && r.LocalPrice <= 0 {
			return fmt.Errorf("%w: resource %q needs a local_price", ErrInvalid, r.Name)
		}
		resources[r.ID] = true
	}
	governed := make(map[model.Location]bool)
	for _, a := range sc.Authorities {
		if !currencies[a.Currency] {
			return fmt.Errorf("%w: authority %q uses unknown currency %d", ErrInvalid, a.Name, a.Currency)
		}
		for _, loc := range a.Locations {
			if governed[loc] {
				return fmt.Errorf("%w: location %d has two authorities", ErrInvalid, loc)
			}
			governed[loc] = true
		}
	}
	checkInputs := func(owner string, inputs []economy.Input) error {
		for _, in := range inputs {
			if !resources[in.Resource] {
				return fmt.Errorf("%w: %s uses unknown resource %d", ErrInvalid, owner, in.Resource)
			}
			if in.Amount.Sign() < 0 {
				return fmt.Errorf("%w: %s has a negative amount", ErrInvalid, owner)
			}
		}
		return nil
	}
	for _, t := range sc.FactoryTypes {
		for _, list := range [][]economy.Input{t.Materials, t.Overhead, t.Output} {
			if err := checkInputs("factory type "+t.Name, list); err != nil {
				return err
			}
		}
	}
	for _, t := range sc.PopTypes {
		for _, list := range [][]economy.Input{t.Life, t.Everyday, t.Luxury} {
			if err := checkInputs("pop type "+t.Name, list); err != nil {
				return err
			}
		}
	}
	ids := make(map[model.ID]bool)
	for _, a := range append(append([]Agent(nil), sc.Factories...), sc.Pops...) {
		if ids[a.ID] {
			return fmt.Errorf("%w: duplicate agent id %d", ErrInvalid, a.ID)
		}
		if a.Size <= 0 || a.Cash < 0 {
			return fmt.Errorf("%w: agent %d needs a positive size and non-negative cash", ErrInvalid, a.ID)
		}
		ids[a.ID] = true
	}
	for _, m := range sc.Markets {
		if m.Base == m.Quote || m.BaseAmount <= 0 || m.QuoteAmount <= 0 {
			return fmt.Errorf("%w: market %s/%s needs two assets and positive liquidity", ErrInvalid, m.Base, m.Quote)
		}
	}
	return nil
}
