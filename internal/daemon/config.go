// Package daemon manages the Tempo daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	Daemon     DaemonConfig     `toml:"daemon"`
	API        APIConfig        `toml:"api"`
	Planner    PlannerConfig    `toml:"planner"`
	Classifier ClassifierConfig `toml:"classifier"`
	Energy     EnergyConfig     `toml:"energy"`
	Delegation DelegationConfig `toml:"delegation"`
	Logging    LoggingConfig    `toml:"logging"`
}

// DaemonConfig controls the engine runtime.
type DaemonConfig struct {
	// DailyPlanCron is the cron expression for the morning planning pass;
	// empty disables it.
	DailyPlanCron string `toml:"daily_plan_cron"`
	// DailyPlanMinutes is the horizon free capacity the cron pass uses.
	DailyPlanMinutes int `toml:"daily_plan_minutes"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host            string  `toml:"host"`
	Port            int     `toml:"port"`
	EventsPerSecond float64 `toml:"events_per_second"`
	Metrics         bool    `toml:"metrics"`
}

// PlannerConfig holds the LTS scoring weights.
type PlannerConfig struct {
	WeightUrgency  float64 `toml:"weight_urgency"`
	WeightPriority float64 `toml:"weight_priority"`
	WeightPeak     float64 `toml:"weight_peak"`
	WeightDuration float64 `toml:"weight_duration"`
}

// ClassifierConfig holds the disruption thresholds.
type ClassifierConfig struct {
	MinDeltaMinutes      int `toml:"min_delta_minutes"`
	MajorDeltaMinutes    int `toml:"major_delta_minutes"`
	CriticalDeltaMinutes int `toml:"critical_delta_minutes"`
	CascadeCount         int `toml:"cascade_count"`
}

// EnergyConfig controls the energy estimator.
type EnergyConfig struct {
	// DecayWindow is how long a user-reported energy value stays
	// influential ("2h").
	DecayWindow string `toml:"decay_window"`
}

// DelegationConfig controls the gateway boundary.
type DelegationConfig struct {
	AckTimeout    string `toml:"ack_timeout"`
	MaxPending    int    `toml:"max_pending"`
	SweepInterval string `toml:"sweep_interval"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Daemon: DaemonConfig{
			DailyPlanCron:    "0 8 * * *",
			DailyPlanMinutes: 8 * 60,
		},
		API: APIConfig{
			Host:            "127.0.0.1",
			Port:            7430,
			EventsPerSecond: 10,
			Metrics:         true,
		},
		Planner: PlannerConfig{
			WeightUrgency:  0.45,
			WeightPriority: 0.30,
			WeightPeak:     0.15,
			WeightDuration: 0.10,
		},
		Classifier: ClassifierConfig{
			MinDeltaMinutes:      5,
			MajorDeltaMinutes:    30,
			CriticalDeltaMinutes: 90,
			CascadeCount:         3,
		},
		Energy: EnergyConfig{
			DecayWindow: "2h",
		},
		Delegation: DelegationConfig{
			AckTimeout:    "15m",
			MaxPending:    256,
			SweepInterval: "1m",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Home returns the Tempo data directory: $TEMPO_HOME or ~/.tempo.
func Home() string {
	if h := os.Getenv("TEMPO_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tempo"
	}
	return filepath.Join(home, ".tempo")
}

// ConfigPath returns the config file location under Home.
func ConfigPath() string {
	return filepath.Join(Home(), "config.toml")
}

// LoadConfig reads config.toml under Home, writing the defaults first if
// no file exists yet.
func LoadConfig() (Config, error) {
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile reads the given TOML file over the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path, cfg); err != nil {
			// A read-only home is fine; run on defaults.
			return cfg, nil
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func writeDefault(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
