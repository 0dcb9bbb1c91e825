package sse_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hurley87/irl-protocol/internal/models"
	"github.com/hurley87/irl-protocol/internal/sse"
)

func sampleFact(eventID uint64) models.CheckInFact {
	return models.CheckInFact{
		EventID:        eventID,
		Attendee:       "0x00000000000000000000000000000000000000b2",
		Points:         100,
		StubID:         1,
		ReceiptID:      "receipt-1",
		TotalCheckedIn: 1,
		OccurredAt:     time.Now(),
	}
}

func TestEmitReachesEventAndFirehoseClients(t *testing.T) {
	emitter := sse.NewCheckInEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventChan := emitter.SubscribeToEvent(ctx, 1)
	allChan := emitter.SubscribeToAll(ctx)
	otherChan := emitter.SubscribeToEvent(ctx, 2)

	emitter.EmitCheckIn(sampleFact(1))

	// Buffered channels hold the fact immediately after the emit
	select {
	case fact := <-eventChan:
		assert.Equal(t, uint64(1), fact.EventID)
		assert.Equal(t, "receipt-1", fact.ReceiptID)
	default:
		t.Fatal("event subscriber received nothing")
	}

	select {
	case fact := <-allChan:
		assert.Equal(t, uint64(1), fact.EventID)
	default:
		t.Fatal("firehose subscriber received nothing")
	}

	// A subscriber on a different event sees nothing
	assert.Len(t, otherChan, 0)
}

func TestClientCounts(t *testing.T) {
	emitter := sse.NewCheckInEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emitter.SubscribeToEvent(ctx, 1)
	emitter.SubscribeToEvent(ctx, 1)
	emitter.SubscribeToAll(ctx)

	assert.Equal(t, 2, emitter.GetEventClientCount(1))
	assert.Equal(t, 0, emitter.GetEventClientCount(2))
	assert.Equal(t, 1, emitter.GetAllClientCount())
}

func TestContextCancelRemovesClient(t *testing.T) {
	emitter := sse.NewCheckInEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	clientChan := emitter.SubscribeToEvent(ctx, 1)
	assert.Equal(t, 1, emitter.GetEventClientCount(1))

	cancel()

	// Removal runs on the subscription's watcher goroutine
	assert.Eventually(t, func() bool {
		return emitter.GetEventClientCount(1) == 0
	}, time.Second, 10*time.Millisecond)

	_, open := <-clientChan
	assert.False(t, open, "channel should be closed after unsubscribe")

	// Emitting after the last client left must not panic
	emitter.EmitCheckIn(sampleFact(1))
}

func TestSlowClientMissesFactsInsteadOfBlocking(t *testing.T) {
	emitter := sse.NewCheckInEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientChan := emitter.SubscribeToEvent(ctx, 1)

	// Push well past the channel buffer; the emitter must never stall
	done := make(chan struct{})
	go func() {
		for i := 0; i < 25; i++ {
			emitter.EmitCheckIn(sampleFact(1))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EmitCheckIn blocked on a full client buffer")
	}

	assert.Len(t, clientChan, 10)
}

func TestEmitRacesWithDisconnectingClients(t *testing.T) {
	emitter := sse.NewCheckInEventEmitter()

	stop := make(chan struct{})
	emitted := make(chan struct{})
	go func() {
		defer close(emitted)
		for {
			select {
			case <-stop:
				return
			default:
				emitter.EmitCheckIn(sampleFact(1))
			}
		}
	}()

	// Subscribers churn while facts broadcast; every cancel closes a
	// channel, which must never land mid-send
	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		emitter.SubscribeToEvent(ctx, 1)
		emitter.SubscribeToAll(ctx)
		cancel()
	}

	close(stop)
	select {
	case <-emitted:
	case <-time.After(time.Second):
		t.Fatal("emit loop did not finish")
	}
}
