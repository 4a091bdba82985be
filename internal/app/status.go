// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/alsprox/internal/config"
	"github.com/relabs-tech/alsprox/internal/light"
)

// StatusStore keeps the latest lux and distance events.
type StatusStore struct {
	mu     sync.RWMutex
	status light.Status
}

func (s *StatusStore) SetLux(l light.Lux) {
	s.mu.Lock()
	s.status.Lux = &l
	s.mu.Unlock()
}

func (s *StatusStore) SetDistance(d light.Distance) {
	s.mu.Lock()
	s.status.Distance = &d
	s.mu.Unlock()
}

// Status returns the latest events. Fields are nil until the first event.
func (s *StatusStore) Status() light.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LuxHandler decodes lux payloads for on. name prefixes decode errors.
func LuxHandler(name string, on func(light.Lux)) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var l light.Lux
		if err := json.Unmarshal(msg.Payload(), &l); err != nil {
			log.Printf("%s: lux unmarshal error: %v", name, err)
			return
		}
		on(l)
	}
}

// DistanceHandler decodes distance payloads for on.
func DistanceHandler(name string, on func(light.Distance)) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var d light.Distance
		if err := json.Unmarshal(msg.Payload(), &d); err != nil {
			log.Printf("%s: distance unmarshal error: %v", name, err)
			return
		}
		on(d)
	}
}

// SubscribeLight subscribes to both event topics.
func SubscribeLight(client mqtt.Client, cfg *config.Config, name string, onLux func(light.Lux), onDistance func(light.Distance)) error {
	subs := []struct {
		topic string
		h     mqtt.MessageHandler
	}{
		{cfg.TopicLux, LuxHandler(name, onLux)},
		{cfg.TopicDistance, DistanceHandler(name, onDistance)},
	}
	for _, s := range subs {
		token := client.Subscribe(s.topic, 0, s.h)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("%s: subscribed to %s", name, s.topic)
	}
	return nil
}
