// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/virtual_trackers/internal/driver"
	"github.com/relabs-tech/virtual_trackers/internal/mqttbus"
	"github.com/relabs-tech/virtual_trackers/internal/orientation"
	"github.com/relabs-tech/virtual_trackers/internal/settings"
	"github.com/relabs-tech/virtual_trackers/internal/tracker"
)

func startDriver(t *testing.T, count int32) (*driver.Provider, *driver.Runtime) {
	t.Helper()

	store := settings.NewMemStore()
	require.NoError(t, store.SetInt32(settings.SectionDriver, settings.KeyTrackerCount, count))

	src := orientation.NewStaticSource()
	anchor := orientation.NewPose()
	anchor.Position = r3.Vec{Y: 1.7}
	anchor.Valid = true
	anchor.Result = orientation.ResultRunningOK
	src.Set(orientation.AnchorIndex, anchor)

	rt := driver.NewRuntime(nil, 1)
	p := driver.NewProvider(driver.ProviderOptions{
		Store:        store,
		Source:       src,
		Host:         rt,
		TickInterval: time.Millisecond,
	})
	require.Equal(t, int(count), p.Init())
	t.Cleanup(func() {
		rt.Shutdown()
		p.Cleanup()
	})

	require.Eventually(t, func() bool {
		return len(rt.LastPublished()) == int(count)
	}, 2*time.Second, time.Millisecond)
	return p, rt
}

func TestWeb_Trackers(t *testing.T) {
	p, rt := startDriver(t, 2)
	srv := httptest.NewServer(NewWebHandler(p, rt))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/trackers")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var list []tracker.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 2)
	assert.Equal(t, "MyTrackerModelNumber10", list[0].Serial)
	assert.Equal(t, "MyTrackerModelNumber11", list[1].Serial)
	assert.Equal(t, "active", list[0].State)
	require.NotNil(t, list[0].Index)
	assert.Equal(t, uint32(1), *list[0].Index)
}

func TestWeb_TrackerBySerial(t *testing.T) {
	p, rt := startDriver(t, 1)
	srv := httptest.NewServer(NewWebHandler(p, rt))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/trackers/MyTrackerModelNumber10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st tracker.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "anchor", st.Mode)
	assert.True(t, st.Pose.Valid)

	missing, err := http.Get(srv.URL + "/api/trackers/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestWeb_Metrics(t *testing.T) {
	p, rt := startDriver(t, 1)
	srv := httptest.NewServer(NewWebHandler(p, rt))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "trackers_device_ticks_total")
	assert.Contains(t, string(body), "trackers_device_active")
}

func TestWeb_PoseStream(t *testing.T) {
	p, rt := startDriver(t, 2)
	srv := httptest.NewServer(NewWebHandler(p, rt))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/poses"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got []driver.Published
	require.NoError(t, conn.ReadJSON(&got))
	require.Len(t, got, 2)
	assert.Equal(t, uint32(1), got[0].Index)
	assert.Equal(t, "MyTrackerModelNumber11", got[1].Serial)
	assert.True(t, got[0].Pose.Valid)
}

func TestPrintPose(t *testing.T) {
	t.Parallel()

	pose := orientation.NewPose()
	pose.Position = r3.Vec{X: 1, Y: 2, Z: 3}
	pose.Rotation = orientation.Euler{Yaw: 90}.Quaternion()
	pose.Valid = true
	pose.Result = orientation.ResultRunningOK

	var buf bytes.Buffer
	printPose(&buf, mqttbus.PoseMessage{Serial: "MyTrackerModelNumber10", Index: 4, Pose: pose})

	out := buf.String()
	assert.Contains(t, out, "MyTrackerModelNumber10")
	assert.Contains(t, out, "#4")
	assert.Contains(t, out, "valid=true")
	assert.Contains(t, out, "YAW=  90.00")
}

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

// publishClient implements only Publish; any other method panics.
type publishClient struct {
	mqtt.Client
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
}

func (c *publishClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload.([]byte))
	return doneToken{}
}

func (c *publishClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.topics)
}

func TestPublishAnchor(t *testing.T) {
	t.Parallel()

	client := &publishClient{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		publishAnchor(ctx, client, "vr", orientation.NewMockSource(), time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return client.count() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	<-done

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, "vr/raw/0", client.topics[0])

	src := mqttbus.NewSource("vr", time.Minute)
	require.NoError(t, src.Ingest(client.topics[0], client.payloads[0]))
	got := src.Pose(orientation.AnchorIndex)
	assert.True(t, got.Valid)
	assert.InDelta(t, 1.7, got.Position.Y, 0.05)
}
