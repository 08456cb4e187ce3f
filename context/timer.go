// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omec-project/mme/factory"
	"github.com/omec-project/mme/logger"
)

// NAS timer names
const (
	T3422 = "T3422"
	T3450 = "T3450"
	T3460 = "T3460"
	T3470 = "T3470"
)

// TimerExpiry is posted to the task loop each time a timer fires. Final is
// set on the expiry that follows the last retransmission.
type TimerExpiry struct {
	UeId    int64
	Name    string
	Attempt int32
	Final   bool
	Timer   *Timer
}

func (e TimerExpiry) TaskKey() int64 { return e.UeId }

// Timer wraps a periodic ticker and cancellation context. A timer that was
// stopped stays stopped; expiries already queued for it are stale.
type Timer struct {
	cancel  context.CancelFunc
	ueId    int64
	name    string
	retries int32
	stopped atomic.Bool
}

func (t *Timer) Name() string { return t.name }

func (t *Timer) UeId() int64 { return t.ueId }

// TimerManager owns every running NAS timer, indexed by UE so that removing
// a UE context cancels all of its timers at once.
type TimerManager struct {
	mu     sync.Mutex
	timers map[int64]map[*Timer]struct{}
	post   func(TimerExpiry)
}

func NewTimerManager(post func(TimerExpiry)) *TimerManager {
	return &TimerManager{
		timers: make(map[int64]map[*Timer]struct{}),
		post:   post,
	}
}

// Start runs a timer for ueId that fires every tv.ExpireTime. Each firing up
// to tv.MaxRetryTimes is a retransmission; the next one is final. A disabled
// timer value returns nil.
func (m *TimerManager) Start(ueId int64, name string, tv factory.TimerValue) *Timer {
	if !tv.Enable || tv.ExpireTime <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Timer{cancel: cancel, ueId: ueId, name: name}

	m.mu.Lock()
	set, ok := m.timers[ueId]
	if !ok {
		set = make(map[*Timer]struct{})
		m.timers[ueId] = set
	}
	set[t] = struct{}{}
	m.mu.Unlock()

	maxRetryTimes := int32(tv.MaxRetryTimes)
	go func() {
		ticker := time.NewTicker(tv.ExpireTime)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n := atomic.AddInt32(&t.retries, 1)
				final := n > maxRetryTimes
				if final {
					m.release(t)
				}
				if m.post != nil && !t.stopped.Load() {
					m.post(TimerExpiry{UeId: ueId, Name: name, Attempt: n, Final: final, Timer: t})
				}
				if final {
					return
				}
			}
		}
	}()
	logger.CtxLog.Debugf("%s started for ue %d, %v x %d", name, ueId, tv.ExpireTime, tv.MaxRetryTimes)
	return t
}

// Stop cancels t. Expiries of t that are still queued become no-ops.
func (m *TimerManager) Stop(t *Timer) {
	if t == nil {
		return
	}
	t.stopped.Store(true)
	t.cancel()
	m.release(t)
}

// StopAll cancels every timer of ueId.
func (m *TimerManager) StopAll(ueId int64) {
	m.mu.Lock()
	set := m.timers[ueId]
	delete(m.timers, ueId)
	m.mu.Unlock()
	for t := range set {
		t.stopped.Store(true)
		t.cancel()
	}
}

// Active reports whether an expiry of t should still be acted upon.
func (m *TimerManager) Active(t *Timer) bool {
	return t != nil && !t.stopped.Load()
}

// Count returns the number of running timers of ueId.
func (m *TimerManager) Count(ueId int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers[ueId])
}

func (m *TimerManager) release(t *Timer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.timers[t.ueId]; ok {
		delete(set, t)
		if len(set) == 0 {
			delete(m.timers, t.ueId)
		}
	}
}
