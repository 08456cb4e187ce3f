// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

/*
 * MME Configuration Factory
 */

package factory

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/omec-project/mme/logger"
	"gopkg.in/yaml.v2"
)

var MmeConfig Config

// InitConfigFactory reads the yaml file f into MmeConfig and publishes it
// through the default provider.
func InitConfigFactory(f string) error {
	content, err := os.ReadFile(f)
	if err != nil {
		return err
	}
	MmeConfig = Config{}
	if yamlErr := yaml.Unmarshal(content, &MmeConfig); yamlErr != nil {
		return yamlErr
	}
	if MmeConfig.Configuration != nil {
		if err := validateTelemetry(MmeConfig.Configuration.Telemetry); err != nil {
			return err
		}
	}
	DefaultProvider().Update(&MmeConfig)
	return nil
}

// validateTelemetry requires an endpoint once tracing is enabled and samples
// every trace when no ratio is given.
func validateTelemetry(t *Telemetry) error {
	if t == nil || !t.Enabled {
		return nil
	}
	if t.OtlpEndpoint == "" {
		return fmt.Errorf("telemetry enabled but otlpEndpoint is not set")
	}
	if t.Ratio == nil {
		ratio := 1.0
		t.Ratio = &ratio
	}
	if *t.Ratio < 0 || *t.Ratio > 1 {
		return fmt.Errorf("telemetry ratio %v out of range [0, 1]", *t.Ratio)
	}
	return nil
}

// DecodeSettings converts a generic settings tree (as produced by viper) into a
// Config. Keys are matched case-insensitively and durations accept "6s" style.
func DecodeSettings(settings map[string]interface{}) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return nil, err
	}
	if err = decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if cfg.Configuration != nil {
		if err = validateTelemetry(cfg.Configuration.Telemetry); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func CheckConfigVersion() error {
	currentVersion := MmeConfig.GetVersion()

	if currentVersion != MME_EXPECTED_CONFIG_VERSION {
		return fmt.Errorf("config version is [%s], but expected is [%s]",
			currentVersion, MME_EXPECTED_CONFIG_VERSION)
	}

	logger.CfgLog.Infof("config version [%s]", currentVersion)

	return nil
}
