// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/alsprox/internal/config"
	"github.com/relabs-tech/alsprox/internal/light"
)

type published struct {
	topic   string
	payload []byte
}

func newTestSink(t *testing.T) (*MQTTSink, *[]published) {
	t.Helper()
	var got []published
	s := NewMQTTSink(func(topic string, payload []byte) error {
		got = append(got, published{topic, payload})
		return nil
	}, config.Default())
	s.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return s, &got
}

func TestMQTTSinkPublishesLux(t *testing.T) {
	s, got := newTestSink(t)
	s.ReportLux(51)

	require.Len(t, *got, 1)
	assert.Equal(t, "alsprox/lux", (*got)[0].topic)
	var l light.Lux
	require.NoError(t, json.Unmarshal((*got)[0].payload, &l))
	assert.Equal(t, light.Lux{Time: 1700000000123, Lux: 51}, l)

	st := s.Status()
	require.NotNil(t, st.Lux)
	assert.Equal(t, 51, st.Lux.Lux)
	assert.Nil(t, st.Distance)
}

func TestMQTTSinkPublishesDistance(t *testing.T) {
	s, got := newTestSink(t)
	s.ReportDistance(1)
	s.ReportDistance(0)

	require.Len(t, *got, 2)
	assert.Equal(t, "alsprox/distance", (*got)[0].topic)
	assert.JSONEq(t, `{"t_ms":1700000000123,"distance":1,"state":"near"}`, string((*got)[0].payload))
	assert.JSONEq(t, `{"t_ms":1700000000123,"distance":0,"state":"far"}`, string((*got)[1].payload))
	assert.Equal(t, "far", s.Status().Distance.State)
}

func TestMQTTSinkPublishErrorKeepsStatus(t *testing.T) {
	s := NewMQTTSink(func(string, []byte) error { return errors.New("broker gone") }, config.Default())
	s.ReportLux(7)
	require.NotNil(t, s.Status().Lux)
	assert.Equal(t, 7, s.Status().Lux.Lux)
}
