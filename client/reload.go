package client

import (
	"github.com/thachlp/lettuce/config"
	"github.com/thachlp/lettuce/internal/telemetry/logger"
)

// WatchConfig watches path and applies the reloadable subset of the
// configuration when the file changes: the log level takes effect
// immediately and a topology refresh is kicked. Structural settings
// (pool size, cluster mode, attempt budget) still need a new client.
//
// The returned stop function ends the watch; Close does not call it.
func (c *Client) WatchConfig(path string) (stop func(), err error) {
	w, err := config.NewWatcher(config.WithWatcherLogger(c.log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}

	w.OnChange(func(changed string) {
		cfg := config.Default()
		loader := config.NewLoader(config.WithConfigFile(path))
		if err := loader.Load(cfg); err != nil {
			c.log.Warn("config reload failed", "path", path, "error", err)
			return
		}
		if err := config.Verify(cfg); err != nil {
			c.log.Warn("config reload rejected", "path", path, "error", err)
			return
		}

		c.reloadMu.Lock()
		if cfg.Log.Level != c.cfg.Log.Level {
			logger.SetLevel(cfg.Log.Level)
			c.cfg.Log.Level = cfg.Log.Level
			c.log.Info("log level changed", "level", cfg.Log.Level)
		}
		c.reloadMu.Unlock()

		if c.refresher != nil {
			c.refresher.Kick()
		}
	})
	w.StartAsync()
	return func() { w.Stop() }, nil
}

// LogLevel returns the currently applied log level.
func (c *Client) LogLevel() string {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()
	return c.cfg.Log.Level
}
