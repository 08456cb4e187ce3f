// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2022-present Intel Corporation
// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package service

import (
	ctxt "context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Using package only for invoking initialization.
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/omec-project/http2_util"
	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/factory"
	"github.com/omec-project/mme/handler"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/logger"
	"github.com/omec-project/mme/metrics"
	"github.com/omec-project/mme/oam"
	"github.com/omec-project/mme/tracing"
	"github.com/omec-project/mme/util"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	taskQueueDepth  = 1024
	ueStatsInterval = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

type MME struct {
	cfgPath  string
	provider *factory.ConfigProvider
	self     *context.MmeContext
	loop     *context.TaskLoop
	tp       *sdktrace.TracerProvider
	server   *http.Server
	cancel   ctxt.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

var initLog *zap.SugaredLogger

func init() {
	initLog = logger.InitLog
}

// receiver is implemented by buses that also carry messages for the MME
// task.
type receiver interface {
	Receive(ctx ctxt.Context, handle func(itti.Message)) error
}

// Context returns the MME context built by Initialize.
func (mme *MME) Context() *context.MmeContext {
	return mme.self
}

func (mme *MME) Initialize(cfgPath string) error {
	mme.cfgPath = cfgPath
	if err := factory.InitConfigFactory(cfgPath); err != nil {
		return err
	}
	mme.provider = factory.DefaultProvider()

	mme.setLogLevel()

	if err := factory.CheckConfigVersion(); err != nil {
		return err
	}

	configuration := mme.provider.Configuration()

	// Initiating a server for profiling
	if configuration.DebugProfilePort != 0 {
		addr := fmt.Sprintf(":%d", configuration.DebugProfilePort)
		go func() {
			if err := http.ListenAndServe(addr, nil); err != nil {
				initLog.Errorln(err)
			}
		}()
	}

	self, err := util.InitMmeContext(mme.provider)
	if err != nil {
		return err
	}
	mme.self = self

	if telemetry := configuration.Telemetry; telemetry != nil && telemetry.Enabled {
		tp, err := tracing.InitTracer(ctxt.Background(),
			tracing.NewTelemetryConfig(telemetry, mme.provider.Current().GetVersion(), self.NfId))
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		mme.tp = tp
	}

	if err := metrics.InitialiseKafkaStream(configuration); err != nil {
		initLog.Errorf("initialise kafka stream failed, %v ", err.Error())
	}

	// UE contexts that survived a restart
	if err := self.GetMmeNasState(true); err != nil {
		initLog.Errorf("restore nas state failed: %v", err)
	}
	initLog.Infof("%d ue contexts restored", self.UeCount())
	return nil
}

// WatchConfig reloads the configuration file on change. Identity lists and
// timer values take effect for procedures started after the reload.
func (mme *MME) WatchConfig() {
	err := mme.provider.WatchConfig(mme.cfgPath, func(*factory.Config) {
		mme.setLogLevel()
		mme.self.Reload()
		initLog.Infoln("successfully updated configuration")
	})
	if err != nil {
		initLog.Errorf("watch config %s: %v", mme.cfgPath, err)
	}
}

func (mme *MME) setLogLevel() {
	cfg := mme.provider.Current()
	if cfg.Logger == nil || cfg.Logger.MME == nil {
		initLog.Warnln("MME config without log level setting!!!")
		return
	}

	if cfg.Logger.MME.DebugLevel != "" {
		if level, err := zapcore.ParseLevel(cfg.Logger.MME.DebugLevel); err != nil {
			initLog.Warnf("MME Log level [%s] is invalid, set to [info] level",
				cfg.Logger.MME.DebugLevel)
			logger.SetLogLevel(zap.InfoLevel)
		} else {
			initLog.Infof("MME Log level is set to [%s] level", level)
			logger.SetLogLevel(level)
		}
	} else {
		initLog.Warnln("MME Log level not set. Default set to [info] level")
		logger.SetLogLevel(zap.InfoLevel)
	}
}

func (mme *MME) Start() {
	initLog.Infoln("Server started")
	configuration := mme.provider.Configuration()

	go metrics.InitMetrics(configuration.GetMetricsPort())

	mme.loop = handler.NewTaskLoop(mme.self, configuration.GetTaskLoops(), taskQueueDepth)
	mme.loop.Start()

	ctx, cancel := ctxt.WithCancel(ctxt.Background())
	mme.cancel = cancel

	if r, ok := mme.self.Bus.(receiver); ok {
		mme.wg.Add(1)
		go func() {
			defer mme.wg.Done()
			if err := r.Receive(ctx, mme.submit); err != nil {
				initLog.Errorf("itti receive stopped: %v", err)
			}
		}()
	}

	api := oam.NewApi(mme.self)
	mme.wg.Add(1)
	go func() {
		defer mme.wg.Done()
		api.PublishUeStats(ctx, ueStatsInterval)
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalChannel
		mme.Terminate()
		os.Exit(0)
	}()

	ip, port := configuration.GetOamAddr()
	addr := fmt.Sprintf("%s:%d", ip, port)
	server, err := http2_util.NewServer(addr, util.MmeLogPath, oam.NewRouter(mme.self))
	if server == nil {
		initLog.Errorf("Initialize HTTP server failed: %+v", err)
		return
	}
	if err != nil {
		initLog.Warnf("Initialize HTTP server: %+v", err)
	}
	mme.server = server

	initLog.Infof("OAM server listening on %s", addr)
	if err = server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		initLog.Fatalf("HTTP server setup failed: %+v", err)
	}
}

// submit queues a message read from the bus on the task loop shard of its UE.
func (mme *MME) submit(msg itti.Message) {
	if !mme.self.Submit(msg) {
		initLog.Warnf("task loop stopped, dropped %s for ue %d", msg.MessageType(), msg.TaskKey())
	}
}

// Terminate stops the inputs, drains the task loop and writes back every UE
// context that changed since the last flush.
func (mme *MME) Terminate() {
	mme.stopOnce.Do(func() {
		initLog.Infof("Terminating MME...")
		if mme.cancel != nil {
			mme.cancel()
		}
		ctx, cancel := ctxt.WithTimeout(ctxt.Background(), shutdownTimeout)
		defer cancel()
		if mme.server != nil {
			if err := mme.server.Shutdown(ctx); err != nil {
				initLog.Warnf("OAM server shutdown: %v", err)
			}
		}
		mme.wg.Wait()
		if mme.loop != nil {
			mme.loop.Stop()
		}

		if mme.self != nil {
			if err := mme.self.PutMmeNasState(); err != nil {
				initLog.Errorf("flush nas state: %v", err)
			}
			if err := mme.self.Bus.Close(); err != nil {
				initLog.Warnf("close itti bus: %v", err)
			}
			if err := mme.self.Store.Close(ctx); err != nil {
				initLog.Warnf("close nas state store: %v", err)
			}
		}
		if err := metrics.GetWriter().Close(); err != nil {
			initLog.Warnf("close kafka stream: %v", err)
		}
		if mme.tp != nil {
			if err := mme.tp.Shutdown(ctx); err != nil {
				initLog.Warnf("tracer shutdown: %v", err)
			}
		}
		initLog.Infof("MME terminated")
	})
}
