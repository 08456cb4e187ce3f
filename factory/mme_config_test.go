// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2024 Canonical Ltd.
/*
 *  Tests for MME Configuration Factory
 */

package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigFactory(t *testing.T) {
	origMmeConfig := MmeConfig
	defer func() { MmeConfig = origMmeConfig }()
	require.NoError(t, InitConfigFactory("../util/testdata/mmecfg.yaml"))
	require.NoError(t, CheckConfigVersion())

	cfg := MmeConfig.Configuration
	assert.Equal(t, "mme", cfg.MmeName)
	require.Len(t, cfg.ServedGummeiList, 1)
	assert.Equal(t, uint16(4), cfg.ServedGummeiList[0].MmeGroupId)
	assert.Equal(t, 6*time.Second, cfg.T3450.ExpireTime)
	assert.Equal(t, 4, cfg.T3422.MaxRetryTimes)
	assert.False(t, cfg.TolerateMacMismatch())
	assert.True(t, cfg.CsfbSmsSupported())
	assert.Equal(t, 8, cfg.GetTaskLoops())
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, []string{"kafka:9092"}, cfg.Itti.Brokers)

	assert.Same(t, &MmeConfig, DefaultProvider().Current())
}

func TestConfigurationDefaults(t *testing.T) {
	cfg := &Configuration{}
	assert.True(t, cfg.TolerateMacMismatch())
	assert.False(t, cfg.CsfbSmsSupported())
	assert.Equal(t, MME_DEFAULT_TASK_LOOPS, cfg.GetTaskLoops())
	assert.Equal(t, MME_DEFAULT_METRICS_PORT, cfg.GetMetricsPort())
	addr, port := cfg.GetOamAddr()
	assert.Equal(t, MME_DEFAULT_OAM_IPV4, addr)
	assert.Equal(t, MME_DEFAULT_OAM_PORT, port)
}

func TestCheckConfigVersionMismatch(t *testing.T) {
	origMmeConfig := MmeConfig
	defer func() { MmeConfig = origMmeConfig }()
	MmeConfig = Config{Info: &Info{Version: "0.9.0"}}
	assert.Error(t, CheckConfigVersion())
}

func TestDecodeSettings(t *testing.T) {
	cfg, err := DecodeSettings(map[string]interface{}{
		"info": map[string]interface{}{"version": "1.0.0"},
		"configuration": map[string]interface{}{
			"mmename": "mme-reloaded",
			"t3460":   map[string]interface{}{"enable": true, "expiretime": "3s", "maxretrytimes": "2"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, MME_EXPECTED_CONFIG_VERSION, cfg.GetVersion())
	assert.Equal(t, "mme-reloaded", cfg.Configuration.MmeName)
	assert.Equal(t, 3*time.Second, cfg.Configuration.T3460.ExpireTime)
	assert.Equal(t, 2, cfg.Configuration.T3460.MaxRetryTimes)
}

func TestNoTelemetryConfig(t *testing.T) {
	origMmeConfig := MmeConfig
	defer func() { MmeConfig = origMmeConfig }()
	require.NoError(t, InitConfigFactory("../util/testdata/no_telemetry.yaml"))
	assert.Nil(t, MmeConfig.Configuration.Telemetry)
}

func TestTelemetryConfig(t *testing.T) {
	tests := []struct {
		name  string
		file  string
		ratio float64
	}{
		{name: "ratio set", file: "telemetry.yaml", ratio: 0.4},
		{name: "no ratio defaults to 1", file: "telemetry_no_ratio.yaml", ratio: 1.0},
		{name: "ratio 0 stays 0", file: "telemetry_zero_ratio.yaml", ratio: 0.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			origMmeConfig := MmeConfig
			defer func() { MmeConfig = origMmeConfig }()
			require.NoError(t, InitConfigFactory("../util/testdata/"+tc.file))

			telemetry := MmeConfig.Configuration.Telemetry
			require.NotNil(t, telemetry)
			assert.True(t, telemetry.Enabled)
			assert.NotEmpty(t, telemetry.OtlpEndpoint)
			require.NotNil(t, telemetry.Ratio)
			assert.Equal(t, tc.ratio, *telemetry.Ratio)
		})
	}
}

func TestTelemetryConfigNoEndpointReturnsError(t *testing.T) {
	origMmeConfig := MmeConfig
	defer func() { MmeConfig = origMmeConfig }()
	assert.Error(t, InitConfigFactory("../util/testdata/telemetry_no_endpoint.yaml"))
}
