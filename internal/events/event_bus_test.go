// internal/events/event_bus_test.go
package events

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gift-market-sniper/internal/types"
)

func TestEventBus_PublishSyncDeliversToSubscriber(t *testing.T) {
	bus := NewEventBus()
	bus.Start()
	defer bus.Stop()

	var received atomic.Int64
	bus.Subscribe(types.BusDealSynthesized, NewBaseSubscriber(
		"test_subscriber",
		[]types.BusEventType{types.BusDealSynthesized},
		func(event types.Event) error {
			received.Add(1)
			return nil
		},
	))

	require.NoError(t, bus.PublishSync(types.Event{
		Type:   types.BusDealSynthesized,
		Source: "test",
		Data:   types.Deal{AssetKey: "k"},
	}))

	assert.Equal(t, int64(1), received.Load())
}

func TestEventBus_AsyncPublishDelivered(t *testing.T) {
	bus := NewEventBus()
	bus.Start()
	defer bus.Stop()

	var received atomic.Int64
	bus.Subscribe(types.BusAnalyticsUpdated, NewBaseSubscriber(
		"async_subscriber",
		[]types.BusEventType{types.BusAnalyticsUpdated},
		func(event types.Event) error {
			received.Add(1)
			return nil
		},
	))

	require.NoError(t, bus.Publish(types.Event{Type: types.BusAnalyticsUpdated, Source: "test"}))

	assert.Eventually(t, func() bool {
		return received.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventBus_SubscriberErrorDoesNotStopOthers(t *testing.T) {
	bus := NewEventBus(EventBusConfig{
		BufferSize:  16,
		WorkerCount: 2,
		MaxRetries:  1,
		RetryDelay:  time.Millisecond,
	})
	bus.Start()
	defer bus.Stop()

	var healthyCalls atomic.Int64
	bus.Subscribe(types.BusMarketEvent, NewBaseSubscriber(
		"failing",
		[]types.BusEventType{types.BusMarketEvent},
		func(event types.Event) error { return errors.New("boom") },
	))
	bus.Subscribe(types.BusMarketEvent, NewBaseSubscriber(
		"healthy",
		[]types.BusEventType{types.BusMarketEvent},
		func(event types.Event) error {
			healthyCalls.Add(1)
			return nil
		},
	))

	bus.PublishSync(types.Event{Type: types.BusMarketEvent, Source: "test"})

	assert.Equal(t, int64(1), healthyCalls.Load())
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	bus.Start()
	defer bus.Stop()

	subscriber := NewBaseSubscriber(
		"removable",
		[]types.BusEventType{types.BusMarketUpdate},
		func(event types.Event) error { return nil },
	)

	bus.Subscribe(types.BusMarketUpdate, subscriber)
	assert.Equal(t, 1, bus.GetSubscriberCount(types.BusMarketUpdate))

	bus.Unsubscribe(types.BusMarketUpdate, subscriber)
	assert.Equal(t, 0, bus.GetSubscriberCount(types.BusMarketUpdate))
}

func TestThrottlingMiddleware_DropsRepeats(t *testing.T) {
	bus := NewEventBus()
	bus.AddMiddleware(NewThrottlingMiddleware(map[types.BusEventType]time.Duration{
		types.BusMarketUpdate: time.Hour,
	}))
	bus.Start()
	defer bus.Stop()

	var received atomic.Int64
	bus.Subscribe(types.BusMarketUpdate, NewBaseSubscriber(
		"throttled",
		[]types.BusEventType{types.BusMarketUpdate},
		func(event types.Event) error {
			received.Add(1)
			return nil
		},
	))

	bus.PublishSync(types.Event{Type: types.BusMarketUpdate, Source: "test"})
	bus.PublishSync(types.Event{Type: types.BusMarketUpdate, Source: "test"})

	assert.Equal(t, int64(1), received.Load())
}
