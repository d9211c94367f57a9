// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/virtual_trackers/internal/orientation"
	"github.com/relabs-tech/virtual_trackers/internal/settings"
	"github.com/relabs-tech/virtual_trackers/internal/tracker"
	"github.com/relabs-tech/virtual_trackers/internal/vr"
)

type recordingPublisher struct {
	mu      sync.Mutex
	serials map[string]int
	fail    bool
}

func (p *recordingPublisher) PublishPose(serial string, index uint32, pose orientation.Pose) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.serials == nil {
		p.serials = make(map[string]int)
	}
	p.serials[serial]++
	if p.fail {
		return errors.New("broker down")
	}
	return nil
}

func (p *recordingPublisher) count(serial string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.serials[serial]
}

func newSource() *orientation.StaticSource {
	src := orientation.NewStaticSource()
	p := orientation.NewPose()
	p.Position = r3.Vec{Y: 1.7}
	p.Valid = true
	p.Result = orientation.ResultRunningOK
	src.Set(orientation.AnchorIndex, p)
	return src
}

func TestProvider_InitCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		set  func(t *testing.T, s *settings.FileStore)
		want int
	}{
		{name: "missing", set: func(*testing.T, *settings.FileStore) {}, want: 0},
		{
			name: "wrong type",
			set: func(t *testing.T, s *settings.FileStore) {
				require.NoError(t, s.SetString(settings.SectionDriver, settings.KeyTrackerCount, "two"))
			},
			want: 0,
		},
		{
			name: "negative",
			set: func(t *testing.T, s *settings.FileStore) {
				require.NoError(t, s.SetInt32(settings.SectionDriver, settings.KeyTrackerCount, -3))
			},
			want: 0,
		},
		{
			name: "three",
			set: func(t *testing.T, s *settings.FileStore) {
				require.NoError(t, s.SetInt32(settings.SectionDriver, settings.KeyTrackerCount, 3))
			},
			want: 3,
		},
		{
			name: "capped",
			set: func(t *testing.T, s *settings.FileStore) {
				require.NoError(t, s.SetInt32(settings.SectionDriver, settings.KeyTrackerCount, 1000))
			},
			want: MaxDevices,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := settings.NewMemStore()
			tt.set(t, store)

			rt := NewRuntime(nil, 1)
			p := NewProvider(ProviderOptions{Store: store, Source: newSource(), Host: rt, TickInterval: time.Hour})
			got := p.Init()
			defer p.Cleanup()

			assert.Equal(t, tt.want, got)
			assert.Len(t, p.Devices(), tt.want)
		})
	}
}

func TestProvider_DeviceIdentityAndIndices(t *testing.T) {
	t.Parallel()

	store := settings.NewMemStore()
	require.NoError(t, store.SetInt32(settings.SectionDriver, settings.KeyTrackerCount, 2))

	rt := NewRuntime(nil, 5)
	p := NewProvider(ProviderOptions{Store: store, Source: newSource(), Host: rt, TickInterval: time.Millisecond})
	require.Equal(t, 2, p.Init())
	defer p.Cleanup()

	devs := p.Devices()
	assert.Equal(t, "MyTrackerModelNumber10", devs[0].Serial())
	assert.Equal(t, "MyTrackerModelNumber11", devs[1].Serial())
	assert.Equal(t, uint32(5), devs[0].Index())
	assert.Equal(t, uint32(6), devs[1].Index())
	assert.Equal(t, tracker.StateActive, devs[0].State())

	require.Eventually(t, func() bool { return len(rt.LastPublished()) == 2 }, 2*time.Second, time.Millisecond)
	last := rt.LastPublished()
	assert.Equal(t, "MyTrackerModelNumber10", last[0].Serial)
	assert.Equal(t, uint32(6), last[1].Index)
	assert.True(t, last[0].Pose.Valid)
}

func TestProvider_CleanupStopsEveryLoop(t *testing.T) {
	t.Parallel()

	store := settings.NewMemStore()
	require.NoError(t, store.SetInt32(settings.SectionDriver, settings.KeyTrackerCount, 3))

	pub := &recordingPublisher{}
	rt := NewRuntime(pub, 1)
	p := NewProvider(ProviderOptions{Store: store, Source: newSource(), Host: rt, TickInterval: time.Millisecond})
	p.Init()
	devs := p.Devices()

	require.Eventually(t, func() bool { return pub.count("MyTrackerModelNumber12") > 0 }, 2*time.Second, time.Millisecond)

	p.Cleanup()
	assert.Empty(t, p.Devices())
	for _, d := range devs {
		assert.Equal(t, tracker.StateInactive, d.State())
		assert.Equal(t, orientation.InvalidIndex, d.Index())
	}

	n := pub.count("MyTrackerModelNumber10")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, pub.count("MyTrackerModelNumber10"))

	// a second cleanup is harmless
	p.Cleanup()
}

func TestProvider_RunFrameForwardsEvents(t *testing.T) {
	t.Parallel()

	store := settings.NewMemStore()
	require.NoError(t, store.SetInt32(settings.SectionDriver, settings.KeyTrackerCount, 1))

	rt := NewRuntime(nil, 1)
	p := NewProvider(ProviderOptions{Store: store, Source: newSource(), Host: rt, TickInterval: time.Hour})
	p.Init()
	defer p.Cleanup()

	rt.QueueEvent(vr.Event{Type: vr.EventEnterStandby})
	p.RunFrame()
	p.RunFrame()

	_, pending := rt.PollNextEvent()
	assert.False(t, pending, "run frame drains the event queue")
	assert.Equal(t, uint64(2), p.Devices()[0].Frames())
}

func TestRuntime_DropsUnknownIndex(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	rt := NewRuntime(pub, 1)
	rt.TrackedDevicePoseUpdated(42, orientation.NewPose())

	assert.Empty(t, rt.LastPublished())
	assert.Zero(t, pub.count(""))
}

func TestRuntime_PublishErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	store := settings.NewMemStore()
	require.NoError(t, store.SetInt32(settings.SectionDriver, settings.KeyTrackerCount, 1))

	pub := &recordingPublisher{fail: true}
	rt := NewRuntime(pub, 1)
	p := NewProvider(ProviderOptions{Store: store, Source: newSource(), Host: rt, TickInterval: time.Millisecond})
	p.Init()
	defer p.Cleanup()

	require.Eventually(t, func() bool { return pub.count("MyTrackerModelNumber10") > 3 }, 2*time.Second, time.Millisecond)
	assert.Len(t, rt.LastPublished(), 1)
}

func TestRuntime_RejectsFailedActivation(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, 1)
	dev := tracker.New(0, tracker.Options{Store: settings.NewMemStore(), Source: newSource(), Sink: rt, TickInterval: time.Hour})
	require.NoError(t, dev.Activate(99))
	defer dev.Deactivate()

	assert.False(t, rt.TrackedDeviceAdded(dev.Serial(), vr.ClassGenericTracker, dev))
	_, ok := rt.Device(1)
	assert.False(t, ok)
}

func TestRuntime_RunShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	store := settings.NewMemStore()
	require.NoError(t, store.SetInt32(settings.SectionDriver, settings.KeyTrackerCount, 2))

	rt := NewRuntime(nil, 1)
	p := NewProvider(ProviderOptions{Store: store, Source: newSource(), Host: rt, TickInterval: time.Millisecond})
	p.Init()
	devs := p.Devices()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rt.Run(ctx, p, time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return devs[1].Frames() > 2 }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runtime did not stop")
	}
	for _, d := range devs {
		assert.Equal(t, tracker.StateInactive, d.State())
	}
	assert.Empty(t, rt.LastPublished())
}
