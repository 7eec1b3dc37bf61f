package config

import (
	"github.com/fsnotify/fsnotify"
)

// OnChange re-reads the config file whenever it changes and hands the fresh
// log level to fn. Config itself is not mutated; the caller owns the swap.
func (c *Config) OnChange(fn func(e fsnotify.Event, level string)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}

	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		level := c.v.GetString("log.level")
		fn(e, level)
	})
	c.v.WatchConfig()
}
