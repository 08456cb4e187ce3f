// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

/*
 * MME Statistics exposing to promethus
 *
 */

package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/omec-project/mme/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label is one (key, value) pair of a counter increment. The order of the
// pairs is part of the counter contract.
type Label struct {
	Key   string
	Value string
}

// MmeStats captures MME level stats
type MmeStats struct {
	mu       sync.Mutex
	counters map[string]*boundCounter
	registry prometheus.Registerer

	nasMsg  *prometheus.CounterVec
	ueGauge *prometheus.GaugeVec
}

// boundCounter is a counter name tied to the label keys of its first use.
type boundCounter struct {
	keys []string
	vec  *prometheus.CounterVec
}

var mmeStats *MmeStats

func initMmeStats(registry prometheus.Registerer) *MmeStats {
	return &MmeStats{
		counters: make(map[string]*boundCounter),
		registry: registry,
		nasMsg: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nas_messages_total",
			Help: "nas interface counters",
		}, []string{"mme_id", "msg_type", "direction", "result", "reason"}),

		ueGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mme_ue_contexts",
			Help: "UE contexts per EMM state",
		}, []string{"emm_state"}),
	}
}

func (ms *MmeStats) register() error {
	prometheus.Unregister(ms.nasMsg)

	if err := ms.registry.Register(ms.nasMsg); err != nil {
		return err
	}
	if err := ms.registry.Register(ms.ueGauge); err != nil {
		return err
	}
	for name, keys := range counterKeys {
		if _, err := ms.bind(name, keys); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	mmeStats = initMmeStats(prometheus.DefaultRegisterer)

	if err := mmeStats.register(); err != nil {
		logger.AppLog.Errorln("MME Stats register failed", err)
	}
}

// InitMetrics serves the prometheus handler on port. It blocks.
func InitMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
		logger.InitLog.Errorf("could not open metrics port: %v", err)
	}
}

// counterKeys declares the label keys of the EMM counters. Names not listed
// here are bound to the keys of their first increment.
var counterKeys = map[string][]string{
	"extended_service_request":  {"result", "cause"},
	"service_request":           {"result", "cause"},
	"tracking_area_update_req":  {"result", "cause"},
	"ue_attach":                 {"result", "cause"},
	"ue_detach":                 {"cause"},
	"nas_security_mode_command": {"result"},
	"nas_auth_rsp":              {"result"},
	"emm_status_rcvd":           {"cause"},
}

// IncrementCounter adds one to the counter name with the given labels.
// Labels may leave out keys of the counter, which are then reported empty.
// An increment naming a key the counter was not bound to is logged and
// ignored.
func IncrementCounter(name string, labels ...Label) {
	mmeStats.increment(name, labels)
}

// Counter returns the collector behind name, or nil if the name is unknown.
func Counter(name string) *prometheus.CounterVec {
	mmeStats.mu.Lock()
	defer mmeStats.mu.Unlock()
	if c, ok := mmeStats.counters[name]; ok {
		return c.vec
	}
	return nil
}

func (ms *MmeStats) bind(name string, keys []string) (*boundCounter, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if c, ok := ms.counters[name]; ok {
		return c, nil
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: "mme counter " + name,
	}, keys)
	if err := ms.registry.Register(vec); err != nil {
		return nil, err
	}
	c := &boundCounter{keys: keys, vec: vec}
	ms.counters[name] = c
	return c, nil
}

func (ms *MmeStats) increment(name string, labels []Label) {
	keys := make([]string, len(labels))
	for i, l := range labels {
		keys[i] = l.Key
	}
	c, err := ms.bind(name, keys)
	if err != nil {
		logger.MetricsLog.Errorf("register counter %s: %v", name, err)
		return
	}

	values := prometheus.Labels{}
	for _, k := range c.keys {
		values[k] = ""
	}
	for _, l := range labels {
		if _, ok := values[l.Key]; !ok {
			logger.MetricsLog.Warnf("counter %s has labels [%s], ignoring increment with [%s]",
				name, strings.Join(c.keys, ","), strings.Join(keys, ","))
			return
		}
		values[l.Key] = l.Value
	}
	c.vec.With(values).Inc()
}

// IncrementNasMsgStats increments message level stats
func IncrementNasMsgStats(mmeID, msgType, direction, result, reason string) {
	mmeStats.nasMsg.WithLabelValues(mmeID, msgType, direction, result, reason).Inc()
}

// SetUeContextStats maintains the number of UE contexts in one EMM state
func SetUeContextStats(emmState string, count int) {
	mmeStats.ueGauge.WithLabelValues(emmState).Set(float64(count))
}
