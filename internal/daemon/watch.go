package daemon

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tempohq/tempo/internal/infra/disruption"
	"github.com/tempohq/tempo/internal/infra/lts"
)

// watchConfig hot-reloads tunable values (planner weights, classifier
// thresholds) when the config file changes on disk. Structural settings
// (listen address, data dir) still require a restart.
func (d *Daemon) watchConfig(ctx context.Context, path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.Log.Warn().Err(err).Msg("config watch unavailable")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		d.Log.Warn().Err(err).Str("path", path).Msg("config watch unavailable")
		return
	}

	// Editors write via rename+create; debounce a burst of events into
	// one reload.
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(250 * time.Millisecond)
			// A rename drops the watch on some platforms; re-add.
			_ = watcher.Add(path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			d.Log.Warn().Err(err).Msg("config watch error")
		case <-pending:
			pending = nil
			d.reloadConfig(path)
		}
	}
}

func (d *Daemon) reloadConfig(path string) {
	cfg, err := LoadConfigFile(path)
	if err != nil {
		d.Log.Warn().Err(err).Msg("config reload failed, keeping current values")
		return
	}

	d.Planner.SetWeights(lts.Config{
		WeightUrgency:  cfg.Planner.WeightUrgency,
		WeightPriority: cfg.Planner.WeightPriority,
		WeightPeak:     cfg.Planner.WeightPeak,
		WeightDuration: cfg.Planner.WeightDuration,
	})
	d.Classifier.SetThresholds(disruption.Config{
		MinDeltaMinutes:      cfg.Classifier.MinDeltaMinutes,
		MajorDeltaMinutes:    cfg.Classifier.MajorDeltaMinutes,
		CriticalDeltaMinutes: cfg.Classifier.CriticalDeltaMinutes,
		CascadeCount:         cfg.Classifier.CascadeCount,
	})
	d.Config.Planner = cfg.Planner
	d.Config.Classifier = cfg.Classifier
	d.Log.Info().Msg("config reloaded: planner weights and classifier thresholds applied")
}
