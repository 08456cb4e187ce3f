// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package context

import (
	"sync"

	"github.com/omec-project/mme/logger"
)

// TaskMessage is one unit of work for the task loop: an AS primitive, a
// timer expiry, a collaborator answer or an OAM request. TaskKey is the MME
// UE S1AP id the message is about.
type TaskMessage interface {
	TaskKey() int64
}

// TaskLoop runs a fixed number of single-threaded shards. All messages of one
// UE land on the same shard, so they are handled one at a time and in order.
type TaskLoop struct {
	shards  []chan TaskMessage
	handler func(TaskMessage)
	quit    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewTaskLoop(shards, depth int, handler func(TaskMessage)) *TaskLoop {
	if shards <= 0 {
		shards = 1
	}
	l := &TaskLoop{
		shards:  make([]chan TaskMessage, shards),
		handler: handler,
		quit:    make(chan struct{}),
	}
	for i := range l.shards {
		l.shards[i] = make(chan TaskMessage, depth)
	}
	return l
}

func (l *TaskLoop) Start() {
	for i, ch := range l.shards {
		l.wg.Add(1)
		go l.run(i, ch)
	}
	logger.CtxLog.Infof("task loop started with %d shards", len(l.shards))
}

func (l *TaskLoop) run(index int, ch chan TaskMessage) {
	defer l.wg.Done()
	for {
		select {
		case msg := <-ch:
			l.handle(index, msg)
		case <-l.quit:
			logger.CtxLog.Infof("task loop shard %d closed", index)
			return
		}
	}
}

func (l *TaskLoop) handle(index int, msg TaskMessage) {
	defer func() {
		if p := recover(); p != nil {
			logger.CtxLog.Errorf("shard %d: panic handling %T for ue %d: %v", index, msg, msg.TaskKey(), p)
		}
	}()
	l.handler(msg)
}

// Shard returns the shard index serving key.
func (l *TaskLoop) Shard(key int64) int {
	return int(uint64(key) % uint64(len(l.shards)))
}

// Submit queues msg on the shard of its UE. It returns false once the loop
// has been stopped.
func (l *TaskLoop) Submit(msg TaskMessage) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.shards[l.Shard(msg.TaskKey())] <- msg:
		return true
	case <-l.quit:
		return false
	}
}

// Stop ends all shards; queued messages are dropped.
func (l *TaskLoop) Stop() {
	l.once.Do(func() { close(l.quit) })
	l.wg.Wait()
}
