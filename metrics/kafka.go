// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/omec-project/mme/factory"
	"github.com/omec-project/mme/logger"
	mi "github.com/omec-project/util/metricinfo"
	"github.com/segmentio/kafka-go"
)

type Writer struct {
	kafkaWriter *kafka.Writer
}

var StatWriter Writer

func InitialiseKafkaStream(config *factory.Configuration) error {
	if !config.KafkaEnabled() {
		logger.KafkaLog.Info("Kafka disabled")
		return nil
	}

	brokerUrl := "sd-core-kafka-headless:9092"
	topicName := "sdcore-data-source-mme"

	if config.KafkaInfo.BrokerUri != "" && config.KafkaInfo.BrokerPort != 0 {
		brokerUrl = fmt.Sprintf("%s:%d", config.KafkaInfo.BrokerUri, config.KafkaInfo.BrokerPort)
	}
	logger.KafkaLog.Debugf("initialise kafka broker url [%v]", brokerUrl)

	if config.KafkaInfo.Topic != "" {
		topicName = config.KafkaInfo.Topic
	}
	logger.KafkaLog.Debugf("initialise kafka Topic [%v]", config.KafkaInfo.Topic)

	producer := kafka.Writer{
		Addr:         kafka.TCP(brokerUrl),
		Topic:        topicName,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	StatWriter = Writer{
		kafkaWriter: &producer,
	}

	logger.KafkaLog.Debugf("initialising kafka stream with url[%v], topic[%v]", brokerUrl, topicName)
	return nil
}

func GetWriter() Writer {
	return StatWriter
}

// Enabled reports whether the stream was initialised.
func (writer Writer) Enabled() bool {
	return writer.kafkaWriter != nil
}

func (writer Writer) SendMessage(message []byte) error {
	if writer.kafkaWriter == nil {
		return nil
	}
	msg := kafka.Message{Value: message}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return writer.kafkaWriter.WriteMessages(ctx, msg)
}

func (writer Writer) Close() error {
	if writer.kafkaWriter == nil {
		return nil
	}
	return writer.kafkaWriter.Close()
}

func (writer Writer) PublishUeCtxtEvent(ctxt mi.CoreSubscriber, op mi.SubscriberOp) error {
	if !writer.Enabled() {
		return nil
	}
	evt := mi.MetricEvent{
		EventType:      mi.CSubscriberEvt,
		SubscriberData: mi.CoreSubscriberData{Subscriber: ctxt, Operation: op},
	}
	msg, err := json.Marshal(evt)
	if err != nil {
		logger.KafkaLog.Errorf("publishing ue context event error [%v] ", err.Error())
		return err
	}
	logger.KafkaLog.Debugf("publishing ue context event[%s] ", msg)
	if err := writer.SendMessage(msg); err != nil {
		logger.KafkaLog.Errorf("could not publish ue context event, error [%v]", err.Error())
	}
	return nil
}
