// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/alsprox/internal/config"
	"github.com/relabs-tech/alsprox/internal/light"
	"github.com/relabs-tech/alsprox/internal/proximity"
)

// PublishFunc sends one payload to a topic.
type PublishFunc func(topic string, payload []byte) error

// publishTimeout bounds a publish made from the acquisition path.
const publishTimeout = 2 * time.Second

// MQTTPublisher adapts a connected client to a PublishFunc.
func MQTTPublisher(client mqtt.Client) PublishFunc {
	return func(topic string, payload []byte) error {
		token := client.Publish(topic, 0, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("publish %s: timeout", topic)
		}
		return token.Error()
	}
}

// MQTTSink receives driver events and publishes them as JSON. It also keeps
// the latest of each for local consumers.
type MQTTSink struct {
	publish       PublishFunc
	topicLux      string
	topicDistance string
	now           func() time.Time

	StatusStore
}

// NewMQTTSink builds a sink publishing to the configured topics.
func NewMQTTSink(publish PublishFunc, cfg *config.Config) *MQTTSink {
	return &MQTTSink{
		publish:       publish,
		topicLux:      cfg.TopicLux,
		topicDistance: cfg.TopicDistance,
		now:           time.Now,
	}
}

func (s *MQTTSink) ReportLux(v int) {
	ev := light.Lux{Time: s.now().UnixMilli(), Lux: v}
	s.SetLux(ev)
	s.send(s.topicLux, ev)
}

func (s *MQTTSink) ReportDistance(v int) {
	ev := light.Distance{
		Time:     s.now().UnixMilli(),
		Distance: v,
		State:    proximity.Distance(v).String(),
	}
	s.SetDistance(ev)
	s.send(s.topicDistance, ev)
}

func (s *MQTTSink) send(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("producer: marshal %s: %v", topic, err)
		return
	}
	if err := s.publish(topic, payload); err != nil {
		log.Printf("producer: publish %s: %v", topic, err)
	}
}
