// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package itti

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var ErrUnknownMessageType = errors.New("unknown itti message type")

// Bus delivers messages to collaborator tasks.
type Bus interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Envelope is the wire form of a message on the bus.
type Envelope struct {
	Type MessageType     `json:"type"`
	UeId int64           `json:"ue_id"`
	Body json.RawMessage `json:"body"`
}

func Marshal(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msg.MessageType(), UeId: msg.TaskKey(), Body: body})
}

// Unmarshal decodes an envelope addressed to the MME.
func Unmarshal(b []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	newMsg, ok := inbound[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, env.Type)
	}
	msg := newMsg()
	if err := json.Unmarshal(env.Body, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return msg, nil
}

// MemoryBus records sent messages. It stands in for the collaborators when
// the MME runs without a broker and in tests.
type MemoryBus struct {
	mu     sync.Mutex
	sent   []Message
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Send(_ context.Context, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("bus closed")
	}
	b.sent = append(b.sent, msg)
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Sent returns a copy of the messages sent so far.
func (b *MemoryBus) Sent() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.sent...)
}

// SentOf returns the sent messages of one type.
func (b *MemoryBus) SentOf(t MessageType) []Message {
	var out []Message
	for _, m := range b.Sent() {
		if m.MessageType() == t {
			out = append(out, m)
		}
	}
	return out
}

func (b *MemoryBus) Reset() {
	b.mu.Lock()
	b.sent = nil
	b.mu.Unlock()
}
