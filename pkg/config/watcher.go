package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch reloads the configuration whenever the file at configPath changes
// on disk and hands the result to onChange. A change that fails to load or
// validate is reported with a nil config so the caller can log it and keep
// the previous configuration; editors that truncate before writing will
// often produce one such intermediate event.
//
// Watching is a no-op when no configuration file exists: flag and
// environment driven setups have nothing to watch.
func Watch(configPath string, onChange func(*Config, error)) error {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		onChange(Load(v.ConfigFileUsed()))
	})
	v.WatchConfig()

	return nil
}
