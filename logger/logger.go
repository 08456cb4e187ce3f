// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log         *zap.Logger
	AppLog      *zap.SugaredLogger
	InitLog     *zap.SugaredLogger
	CfgLog      *zap.SugaredLogger
	CtxLog      *zap.SugaredLogger
	NasLog      *zap.SugaredLogger
	AsLog       *zap.SugaredLogger
	EmmLog      *zap.SugaredLogger
	MmeAppLog   *zap.SugaredLogger
	HandlerLog  *zap.SugaredLogger
	ConsumerLog *zap.SugaredLogger
	IttiLog     *zap.SugaredLogger
	MetricsLog  *zap.SugaredLogger
	KafkaLog    *zap.SugaredLogger
	DbLog       *zap.SugaredLogger
	OamLog      *zap.SugaredLogger
	GinLog      *zap.SugaredLogger
	UtilLog     *zap.SugaredLogger
	atomicLevel zap.AtomicLevel
)

const (
	FieldUeId = "mme_ue_s1ap_id"
	FieldImsi = "imsi"
)

func init() {
	atomicLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	config := zap.Config{
		Level:            atomicLevel,
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	encCfg := &config.EncoderConfig
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.LevelKey = "level"
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.CallerKey = "caller"
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder
	encCfg.MessageKey = "message"
	encCfg.StacktraceKey = ""

	var err error
	log, err = config.Build()
	if err != nil {
		panic(err)
	}

	AppLog = log.Sugar().With("component", "MME", "category", "App")
	InitLog = log.Sugar().With("component", "MME", "category", "Init")
	CfgLog = log.Sugar().With("component", "MME", "category", "CFG")
	CtxLog = log.Sugar().With("component", "MME", "category", "Context")
	NasLog = log.Sugar().With("component", "MME", "category", "NAS")
	AsLog = log.Sugar().With("component", "MME", "category", "AS-SAP")
	EmmLog = log.Sugar().With("component", "MME", "category", "EMM")
	MmeAppLog = log.Sugar().With("component", "MME", "category", "MmeApp")
	HandlerLog = log.Sugar().With("component", "MME", "category", "Handler")
	ConsumerLog = log.Sugar().With("component", "MME", "category", "Consumer")
	IttiLog = log.Sugar().With("component", "MME", "category", "ITTI")
	MetricsLog = log.Sugar().With("component", "MME", "category", "Metrics")
	KafkaLog = log.Sugar().With("component", "MME", "category", "Kafka")
	DbLog = log.Sugar().With("component", "MME", "category", "DB")
	OamLog = log.Sugar().With("component", "MME", "category", "OAM")
	GinLog = log.Sugar().With("component", "MME", "category", "GIN")
	UtilLog = log.Sugar().With("component", "MME", "category", "Util")
}

// GetLogger returns the base zap.Logger
func GetLogger() *zap.Logger {
	return log
}

// SetLogLevel sets the log level (panic|fatal|error|warn|info|debug)
func SetLogLevel(level zapcore.Level) {
	InitLog.Infoln("set log level:", level)
	atomicLevel.SetLevel(level)
}
