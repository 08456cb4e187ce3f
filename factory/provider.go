// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package factory

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/omec-project/mme/logger"
	"github.com/spf13/viper"
)

// ConfigProvider hands out read-only configuration snapshots. Readers never
// mutate a snapshot; a reload replaces it as a whole.
type ConfigProvider struct {
	mu      sync.RWMutex
	current *Config
}

var defaultProvider = &ConfigProvider{current: &Config{Configuration: &Configuration{}}}

func DefaultProvider() *ConfigProvider {
	return defaultProvider
}

func NewConfigProvider(cfg *Config) *ConfigProvider {
	if cfg.Configuration == nil {
		cfg.Configuration = &Configuration{}
	}
	return &ConfigProvider{current: cfg}
}

func (p *ConfigProvider) Current() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Configuration is a shortcut for Current().Configuration.
func (p *ConfigProvider) Configuration() *Configuration {
	return p.Current().Configuration
}

func (p *ConfigProvider) Update(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Configuration == nil {
		cfg.Configuration = &Configuration{}
	}
	p.mu.Lock()
	p.current = cfg
	p.mu.Unlock()
}

// WatchConfig reloads the snapshot whenever the file at path changes.
// onChange, when set, runs after the new snapshot is published.
func (p *ConfigProvider) WatchConfig(path string, onChange func(*Config)) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		logger.CfgLog.Infof("config file changed: %s", e.Name)
		cfg, err := DecodeSettings(v.AllSettings())
		if err != nil {
			logger.CfgLog.Errorf("reload failed: %v", err)
			return
		}
		if cfg.GetVersion() != MME_EXPECTED_CONFIG_VERSION {
			logger.CfgLog.Errorf("reload ignored, config version [%s]", cfg.GetVersion())
			return
		}
		p.Update(cfg)
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
	return nil
}
