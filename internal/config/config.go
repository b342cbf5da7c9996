package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/seawatts/grid-sub000/internal/balance"
	"github.com/seawatts/grid-sub000/internal/state"
)

// EnvPrefix namespaces environment overrides, e.g. GRIDTD_SERVER_ADDR.
const EnvPrefix = "GRIDTD"

// FileName is the config file base name; yaml, json and toml are accepted.
const FileName = "gridtd"

// Storage backends.
const (
	BackendNone     = "none"
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Sim      SimConfig      `mapstructure:"sim"`
	Map      MapConfig      `mapstructure:"map"`
	Upgrades map[string]int `mapstructure:"upgrades"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Influx   InfluxConfig   `mapstructure:"influx"`
	Otel     OtelConfig     `mapstructure:"otel"`
}

type ServerConfig struct {
	Addr             string        `mapstructure:"addr"`
	TickRate         int           `mapstructure:"tickRate"`
	CommandCapacity  int           `mapstructure:"commandCapacity"`
	AutoAdvanceDelay time.Duration `mapstructure:"autoAdvanceDelay"`
}

type SimConfig struct {
	Seed             string `mapstructure:"seed"`
	ItemsPerWave     int    `mapstructure:"itemsPerWave"`
	ParticleCapacity int    `mapstructure:"particleCapacity"`
	StartingMoney    int    `mapstructure:"startingMoney"`
	StartingLives    int    `mapstructure:"startingLives"`
	AutoAdvance      bool   `mapstructure:"autoAdvance"`
}

// CellConfig is one grid marker.
type CellConfig struct {
	X int `mapstructure:"x"`
	Y int `mapstructure:"y"`
}

type MapConfig struct {
	Width     int          `mapstructure:"width"`
	Height    int          `mapstructure:"height"`
	Starts    []CellConfig `mapstructure:"starts"`
	Goals     []CellConfig `mapstructure:"goals"`
	Obstacles []CellConfig `mapstructure:"obstacles"`
	MaxWaves  int          `mapstructure:"maxWaves"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Pretty      bool   `mapstructure:"pretty"`
	MinSeverity string `mapstructure:"minSeverity"`
	Console     bool   `mapstructure:"console"`
	JSONPath    string `mapstructure:"jsonPath"`
	GelfAddress string `mapstructure:"gelfAddress"`
}

type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	SQLitePath  string `mapstructure:"sqlitePath"`
	PostgresDSN string `mapstructure:"postgresDsn"`
	LoadSlot    string `mapstructure:"loadSlot"`
}

type InfluxConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
}

type OtelConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.tickRate", 20)
	v.SetDefault("server.commandCapacity", 256)
	v.SetDefault("server.autoAdvanceDelay", 3*time.Second)

	v.SetDefault("sim.seed", "gridtd")
	v.SetDefault("sim.itemsPerWave", 2)
	v.SetDefault("sim.particleCapacity", 10000)
	v.SetDefault("sim.startingMoney", balance.StartingMoney)
	v.SetDefault("sim.startingLives", balance.StartingLives)
	v.SetDefault("sim.autoAdvance", false)

	v.SetDefault("map.width", 20)
	v.SetDefault("map.height", 12)
	v.SetDefault("map.starts", []map[string]any{{"x": 0, "y": 6}})
	v.SetDefault("map.goals", []map[string]any{{"x": 19, "y": 6}})
	v.SetDefault("map.obstacles", []map[string]any{})
	v.SetDefault("map.maxWaves", 30)

	v.SetDefault("upgrades", map[string]int{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", true)
	v.SetDefault("logging.minSeverity", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.jsonPath", "")
	v.SetDefault("logging.gelfAddress", "")

	v.SetDefault("storage.backend", BackendJSON)
	v.SetDefault("storage.dir", "./saves")
	v.SetDefault("storage.sqlitePath", "./saves/gridtd.db")
	v.SetDefault("storage.postgresDsn", "host=localhost port=5432 user=postgres password=postgres dbname=gridtd sslmode=disable")
	v.SetDefault("storage.loadSlot", "")

	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "gridtd")
	v.SetDefault("influx.bucket", "gridtd")

	v.SetDefault("otel.enabled", false)
}

// Load reads defaults, then gridtd.{yaml,json,toml} from dir when present,
// then GRIDTD_* environment overrides.
func Load(dir string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir != "" {
		v.SetConfigName(FileName)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	if c.Server.TickRate <= 0 {
		return fmt.Errorf("config: server.tickRate must be positive, got %d", c.Server.TickRate)
	}
	if c.Map.Width <= 0 || c.Map.Height <= 0 {
		return fmt.Errorf("config: map size %dx%d is empty", c.Map.Width, c.Map.Height)
	}
	if len(c.Map.Starts) == 0 || len(c.Map.Goals) == 0 {
		return errors.New("config: map needs at least one start and one goal")
	}
	for _, group := range [][]CellConfig{c.Map.Starts, c.Map.Goals, c.Map.Obstacles} {
		for _, cell := range group {
			if cell.X < 0 || cell.Y < 0 || cell.X >= c.Map.Width || cell.Y >= c.Map.Height {
				return fmt.Errorf("config: map cell (%d,%d) is outside %dx%d", cell.X, cell.Y, c.Map.Width, c.Map.Height)
			}
		}
	}
	switch c.Storage.Backend {
	case BackendNone, BackendJSON, BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if _, err := c.RunUpgrades(); err != nil {
		return err
	}
	return nil
}

// RunUpgrades resolves the configured upgrade levels. Keys match upgrade ids
// case-insensitively because viper folds keys to lower case.
func (c Config) RunUpgrades() (map[state.UpgradeID]int, error) {
	out := make(map[state.UpgradeID]int, len(c.Upgrades))
	for key, level := range c.Upgrades {
		id, ok := lookupUpgrade(key)
		if !ok {
			return nil, fmt.Errorf("config: unknown upgrade %q", key)
		}
		if level < 0 || level > balance.MaxUpgradeLevel {
			return nil, fmt.Errorf("config: upgrade %s level %d outside 0..%d", id, level, balance.MaxUpgradeLevel)
		}
		out[id] = level
	}
	return out, nil
}

func lookupUpgrade(key string) (state.UpgradeID, bool) {
	for _, id := range balance.UpgradeIDs() {
		if strings.EqualFold(string(id), key) {
			return id, true
		}
	}
	return "", false
}

// Grid converts the map section.
func (c Config) Grid() state.Grid {
	return state.Grid{
		Width:     c.Map.Width,
		Height:    c.Map.Height,
		Starts:    positions(c.Map.Starts),
		Goals:     positions(c.Map.Goals),
		Obstacles: positions(c.Map.Obstacles),
	}
}

// InitialState builds a fresh run from the configuration. The starting
// money upgrade is added on top of the configured balance.
func (c Config) InitialState() state.GameState {
	upgrades, _ := c.RunUpgrades()
	money := c.Sim.StartingMoney + int(balance.UpgradeValue(state.UpgradeStartingMoney, upgrades[state.UpgradeStartingMoney]))
	st := state.New(c.Grid(), money, c.Sim.StartingLives, c.Map.MaxWaves)
	st.RunUpgrades = upgrades
	st.Settings.AutoAdvance = c.Sim.AutoAdvance
	return st
}

func positions(cells []CellConfig) []state.Position {
	if len(cells) == 0 {
		return nil
	}
	out := make([]state.Position, len(cells))
	for i, c := range cells {
		out[i] = state.Position{X: float64(c.X), Y: float64(c.Y)}
	}
	return out
}
