// SPDX-FileCopyrightText: 2022-present Intel Corporation
// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package itti

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/omec-project/mme/factory"
	"github.com/omec-project/mme/logger"
	"github.com/segmentio/kafka-go"
)

const (
	defaultBroker  = "sd-core-kafka-headless:9092"
	defaultGroupId = "mme"
)

// KafkaBus exchanges envelopes with the collaborator tasks over one topic
// per task.
type KafkaBus struct {
	writers map[TaskId]*kafka.Writer
	reader  *kafka.Reader
}

func topicsFromConfig(cfg *factory.Itti) map[TaskId]string {
	topics := map[TaskId]string{
		TaskMme:  "sdcore-mme",
		TaskS1ap: "sdcore-mme-s1ap",
		TaskS11:  "sdcore-mme-s11",
		TaskS6a:  "sdcore-mme-s6a",
	}
	if cfg == nil {
		return topics
	}
	for task, topic := range map[TaskId]string{
		TaskMme:  cfg.MmeTopic,
		TaskS1ap: cfg.S1apTopic,
		TaskS11:  cfg.S11Topic,
		TaskS6a:  cfg.S6aTopic,
	} {
		if topic != "" {
			topics[task] = topic
		}
	}
	return topics
}

func NewKafkaBus(cfg *factory.Itti) *KafkaBus {
	brokers := []string{defaultBroker}
	groupId := defaultGroupId
	if cfg != nil {
		if len(cfg.Brokers) > 0 {
			brokers = cfg.Brokers
		}
		if cfg.GroupId != "" {
			groupId = cfg.GroupId
		}
	}
	topics := topicsFromConfig(cfg)
	bus := &KafkaBus{writers: make(map[TaskId]*kafka.Writer)}
	for _, task := range []TaskId{TaskS1ap, TaskS11, TaskS6a} {
		bus.writers[task] = &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topics[task],
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		}
	}
	bus.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topics[TaskMme],
		GroupID: groupId,
	})
	logger.IttiLog.Infof("itti over kafka, brokers %v, topics %v", brokers, topics)
	return bus
}

// Send keys each record by UE so that one UE's messages stay ordered
// within a partition.
func (b *KafkaBus) Send(ctx context.Context, msg Message) error {
	w, ok := b.writers[msg.Destination()]
	if !ok {
		return fmt.Errorf("no writer for task %s", msg.Destination())
	}
	value, err := Marshal(msg)
	if err != nil {
		return err
	}
	logger.IttiLog.Debugf("send %s to %s", msg.MessageType(), msg.Destination())
	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(msg.TaskKey(), 10)),
		Value: value,
	})
}

// Receive reads the MME topic until ctx is done and hands every decodable
// message to handle.
func (b *KafkaBus) Receive(ctx context.Context, handle func(Message)) error {
	for {
		record, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("read itti message: %w", err)
		}
		msg, err := Unmarshal(record.Value)
		if err != nil {
			logger.IttiLog.Warnf("drop message at offset %d: %v", record.Offset, err)
			continue
		}
		handle(msg)
	}
}

func (b *KafkaBus) Close() error {
	var errs []error
	for _, w := range b.writers {
		errs = append(errs, w.Close())
	}
	errs = append(errs, b.reader.Close())
	return errors.Join(errs...)
}
