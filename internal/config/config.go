// Package config holds the tunable thresholds insight scoring and diff
// reporting read, loaded through Viper so a user's ~/.xplain.yaml (or an
// explicit --config path) can override the built-in defaults; a loaded
// file is watched and re-applied when it changes.
package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds tunable thresholds for insight scoring and diff reporting.
type Config struct {
	Insights InsightConfig `mapstructure:"insights"`
	Diff     DiffConfig    `mapstructure:"diff"`
}

// InsightConfig defines thresholds for insight generation.
type InsightConfig struct {
	HotspotCriticalPercent  float64 `mapstructure:"hotspot_critical_percent"`
	HotspotWarningPercent   float64 `mapstructure:"hotspot_warning_percent"`
	SeqScanBufferHint       int64   `mapstructure:"seq_scan_buffer_hint"`
	BufferWarningBlocks     int64   `mapstructure:"buffer_warning_blocks"`
	BufferCriticalBlocks    int64   `mapstructure:"buffer_critical_blocks"`
	NestedLoopWarnLoops     float64 `mapstructure:"nested_loop_warn_loops"`
	NestedLoopCriticalLoops float64 `mapstructure:"nested_loop_critical_loops"`
	RowEstimateCriticalHigh float64 `mapstructure:"row_estimate_critical_high"`
	RowEstimateCriticalLow  float64 `mapstructure:"row_estimate_critical_low"`
	SpillNewBlocks          float64 `mapstructure:"spill_new_blocks"`
	ParallelLimitKeepRatio  float64 `mapstructure:"parallel_limit_keep_ratio"`
}

// DiffConfig defines thresholds for diff summaries.
type DiffConfig struct {
	MinSelfDeltaMs   float64 `mapstructure:"min_self_delta_ms"`
	MinPercentChange float64 `mapstructure:"min_percent_change"`
	MaxItems         int     `mapstructure:"max_items"`
	CriticalDeltaMs  float64 `mapstructure:"critical_delta_ms"`
	WarningDeltaMs   float64 `mapstructure:"warning_delta_ms"`
}

var (
	mu     sync.RWMutex
	active = Default()
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Insights: InsightConfig{
			HotspotCriticalPercent:  0.40,
			HotspotWarningPercent:   0.20,
			SeqScanBufferHint:       5000,
			BufferWarningBlocks:     5000,
			BufferCriticalBlocks:    50000,
			NestedLoopWarnLoops:     100,
			NestedLoopCriticalLoops: 10000,
			RowEstimateCriticalHigh: 5.0,
			RowEstimateCriticalLow:  0.2,
			SpillNewBlocks:          100,
			ParallelLimitKeepRatio:  0.10,
		},
		Diff: DiffConfig{
			MinSelfDeltaMs:   2.0,
			MinPercentChange: 5.0,
			MaxItems:         8,
			CriticalDeltaMs:  10.0,
			WarningDeltaMs:   5.0,
		},
	}
}

// Active returns the currently applied configuration.
func Active() Config {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// Use replaces the active configuration.
func Use(cfg Config) {
	mu.Lock()
	active = cfg
	mu.Unlock()
}

// Apply loads configuration from the provided path (YAML or JSON, Viper
// sniffs the extension). An empty path resets to the built-in default;
// a path of "" with a discoverable ~/.xplain.yaml loads that instead.
func Apply(path string) error {
	v := viper.New()
	setDefaults(v)

	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			Use(Default())
			return nil
		}
		v.AddConfigPath(home)
		v.SetConfigName(".xplain")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if !explicit {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				Use(Default())
				return nil
			}
		}
		return fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	Use(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		reloaded := Default()
		if err := v.Unmarshal(&reloaded); err == nil {
			Use(reloaded)
		}
	})
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("insights.hotspot_critical_percent", d.Insights.HotspotCriticalPercent)
	v.SetDefault("insights.hotspot_warning_percent", d.Insights.HotspotWarningPercent)
	v.SetDefault("insights.seq_scan_buffer_hint", d.Insights.SeqScanBufferHint)
	v.SetDefault("insights.buffer_warning_blocks", d.Insights.BufferWarningBlocks)
	v.SetDefault("insights.buffer_critical_blocks", d.Insights.BufferCriticalBlocks)
	v.SetDefault("insights.nested_loop_warn_loops", d.Insights.NestedLoopWarnLoops)
	v.SetDefault("insights.nested_loop_critical_loops", d.Insights.NestedLoopCriticalLoops)
	v.SetDefault("insights.row_estimate_critical_high", d.Insights.RowEstimateCriticalHigh)
	v.SetDefault("insights.row_estimate_critical_low", d.Insights.RowEstimateCriticalLow)
	v.SetDefault("insights.spill_new_blocks", d.Insights.SpillNewBlocks)
	v.SetDefault("insights.parallel_limit_keep_ratio", d.Insights.ParallelLimitKeepRatio)
	v.SetDefault("diff.min_self_delta_ms", d.Diff.MinSelfDeltaMs)
	v.SetDefault("diff.min_percent_change", d.Diff.MinPercentChange)
	v.SetDefault("diff.max_items", d.Diff.MaxItems)
	v.SetDefault("diff.critical_delta_ms", d.Diff.CriticalDeltaMs)
	v.SetDefault("diff.warning_delta_ms", d.Diff.WarningDeltaMs)
}
