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
	"time"
)

const (
	MME_EXPECTED_CONFIG_VERSION = "1.0.0"
	MME_DEFAULT_METRICS_PORT    = 9089
	MME_DEFAULT_OAM_IPV4        = "0.0.0.0"
	MME_DEFAULT_OAM_PORT        = 5001
	MME_DEFAULT_TASK_LOOPS      = 4
)

// Non-EPS service control values.
const (
	NonEpsServiceControlOff     = "OFF"
	NonEpsServiceControlSms     = "SMS"
	NonEpsServiceControlCsfbSms = "CSFB_SMS"
)

type Config struct {
	Info          *Info          `yaml:"info" mapstructure:"info"`
	Configuration *Configuration `yaml:"configuration" mapstructure:"configuration"`
	Logger        *Logger        `yaml:"logger" mapstructure:"logger"`
}

type Info struct {
	Version     string `yaml:"version,omitempty" mapstructure:"version"`
	Description string `yaml:"description,omitempty" mapstructure:"description"`
}

type Logger struct {
	MME *LogSetting `yaml:"MME,omitempty" mapstructure:"MME"`
}

type LogSetting struct {
	DebugLevel string `yaml:"debugLevel,omitempty" mapstructure:"debugLevel"`
}

type Configuration struct {
	MmeName          string      `yaml:"mmeName,omitempty" mapstructure:"mmeName"`
	ServedGummeiList []Gummei    `yaml:"servedGummeiList,omitempty" mapstructure:"servedGummeiList"`
	SupportTaiList   []Tai       `yaml:"supportTaiList,omitempty" mapstructure:"supportTaiList"`
	Security         *Security   `yaml:"security,omitempty" mapstructure:"security"`
	Nas              *Nas        `yaml:"nas,omitempty" mapstructure:"nas"`
	NetworkName      NetworkName `yaml:"networkName,omitempty" mapstructure:"networkName"`
	T3402Value       int         `yaml:"t3402Value,omitempty" mapstructure:"t3402Value"`
	T3412Value       int         `yaml:"t3412Value,omitempty" mapstructure:"t3412Value"`
	T3423Value       int         `yaml:"t3423Value,omitempty" mapstructure:"t3423Value"`
	T3450            TimerValue  `yaml:"t3450" mapstructure:"t3450"`
	T3460            TimerValue  `yaml:"t3460" mapstructure:"t3460"`
	T3470            TimerValue  `yaml:"t3470" mapstructure:"t3470"`
	T3422            TimerValue  `yaml:"t3422" mapstructure:"t3422"`
	TaskLoops        int         `yaml:"taskLoops,omitempty" mapstructure:"taskLoops"`
	PurgeOnDetach    bool        `yaml:"purgeOnDetach,omitempty" mapstructure:"purgeOnDetach"`
	EnableDbStore    bool        `yaml:"enableDbStore,omitempty" mapstructure:"enableDbStore"`
	Mongodb          *Mongodb    `yaml:"mongodb,omitempty" mapstructure:"mongodb"`
	KafkaInfo        KafkaInfo   `yaml:"kafkaInfo,omitempty" mapstructure:"kafkaInfo"`
	Itti             *Itti       `yaml:"itti,omitempty" mapstructure:"itti"`
	MetricsPort      int         `yaml:"metricsPort,omitempty" mapstructure:"metricsPort"`
	Oam              *Oam        `yaml:"oam,omitempty" mapstructure:"oam"`
	Telemetry        *Telemetry  `yaml:"telemetry,omitempty" mapstructure:"telemetry"`
	DebugProfilePort int         `yaml:"debugProfilePort,omitempty" mapstructure:"debugProfilePort"`
}

type PlmnId struct {
	Mcc string `yaml:"mcc" mapstructure:"mcc"`
	Mnc string `yaml:"mnc" mapstructure:"mnc"`
}

type Gummei struct {
	PlmnId     PlmnId `yaml:"plmnId" mapstructure:"plmnId"`
	MmeGroupId uint16 `yaml:"mmeGroupId" mapstructure:"mmeGroupId"`
	MmeCode    uint8  `yaml:"mmeCode" mapstructure:"mmeCode"`
}

type Tai struct {
	PlmnId PlmnId `yaml:"plmnId" mapstructure:"plmnId"`
	Tac    uint16 `yaml:"tac" mapstructure:"tac"`
}

type Security struct {
	IntegrityOrder []string `yaml:"integrityOrder,omitempty" mapstructure:"integrityOrder"`
	CipheringOrder []string `yaml:"cipheringOrder,omitempty" mapstructure:"cipheringOrder"`
}

type Nas struct {
	// TolerateMacMismatch keeps processing integrity protected messages whose MAC
	// did not verify; the decode status still reports the mismatch.
	TolerateMacMismatch  *bool  `yaml:"tolerateMacMismatch,omitempty" mapstructure:"tolerateMacMismatch"`
	NonEpsServiceControl string `yaml:"nonEpsServiceControl,omitempty" mapstructure:"nonEpsServiceControl"`
}

type NetworkName struct {
	Full  string `yaml:"full" mapstructure:"full"`
	Short string `yaml:"short,omitempty" mapstructure:"short"`
}

type TimerValue struct {
	Enable        bool          `yaml:"enable" mapstructure:"enable"`
	ExpireTime    time.Duration `yaml:"expireTime" mapstructure:"expireTime"`
	MaxRetryTimes int           `yaml:"maxRetryTimes,omitempty" mapstructure:"maxRetryTimes"`
}

type Mongodb struct {
	Name string `yaml:"name,omitempty" mapstructure:"name"`
	Url  string `yaml:"url,omitempty" mapstructure:"url"`
}

type KafkaInfo struct {
	EnableKafka *bool  `yaml:"enableKafka,omitempty" mapstructure:"enableKafka"`
	BrokerUri   string `yaml:"brokerUri,omitempty" mapstructure:"brokerUri"`
	BrokerPort  int    `yaml:"brokerPort,omitempty" mapstructure:"brokerPort"`
	Topic       string `yaml:"topicName,omitempty" mapstructure:"topicName"`
}

type Itti struct {
	Brokers   []string `yaml:"brokers,omitempty" mapstructure:"brokers"`
	GroupId   string   `yaml:"groupId,omitempty" mapstructure:"groupId"`
	MmeTopic  string   `yaml:"mmeTopic,omitempty" mapstructure:"mmeTopic"`
	S1apTopic string   `yaml:"s1apTopic,omitempty" mapstructure:"s1apTopic"`
	S11Topic  string   `yaml:"s11Topic,omitempty" mapstructure:"s11Topic"`
	S6aTopic  string   `yaml:"s6aTopic,omitempty" mapstructure:"s6aTopic"`
}

type Oam struct {
	BindingIPv4 string `yaml:"bindingIPv4,omitempty" mapstructure:"bindingIPv4"`
	Port        int    `yaml:"port,omitempty" mapstructure:"port"`
}

type Telemetry struct {
	Enabled      bool     `yaml:"enabled,omitempty" mapstructure:"enabled"`
	OtlpEndpoint string   `yaml:"otlpEndpoint,omitempty" mapstructure:"otlpEndpoint"`
	Ratio        *float64 `yaml:"ratio,omitempty" mapstructure:"ratio"`
}

func (c *Config) GetVersion() string {
	if c.Info != nil && c.Info.Version != "" {
		return c.Info.Version
	}
	return ""
}

// TolerateMacMismatch defaults to true when the nas block or the flag is absent.
func (c *Configuration) TolerateMacMismatch() bool {
	if c.Nas != nil && c.Nas.TolerateMacMismatch != nil {
		return *c.Nas.TolerateMacMismatch
	}
	return true
}

func (c *Configuration) CsfbSmsSupported() bool {
	if c.Nas == nil {
		return false
	}
	switch c.Nas.NonEpsServiceControl {
	case NonEpsServiceControlCsfbSms, NonEpsServiceControlSms:
		return true
	}
	return false
}

func (c *Configuration) GetTaskLoops() int {
	if c.TaskLoops > 0 {
		return c.TaskLoops
	}
	return MME_DEFAULT_TASK_LOOPS
}

func (c *Configuration) GetMetricsPort() int {
	if c.MetricsPort > 0 {
		return c.MetricsPort
	}
	return MME_DEFAULT_METRICS_PORT
}

func (c *Configuration) KafkaEnabled() bool {
	return c.KafkaInfo.EnableKafka != nil && *c.KafkaInfo.EnableKafka
}

func (c *Configuration) GetOamAddr() (string, int) {
	addr, port := MME_DEFAULT_OAM_IPV4, MME_DEFAULT_OAM_PORT
	if c.Oam != nil {
		if c.Oam.BindingIPv4 != "" {
			addr = c.Oam.BindingIPv4
		}
		if c.Oam.Port != 0 {
			port = c.Oam.Port
		}
	}
	return addr, port
}
