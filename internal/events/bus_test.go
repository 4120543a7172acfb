package events

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-tracker/constants"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus(nil)
	a, cancelA := bus.Subscribe(4)
	b, cancelB := bus.Subscribe(4)
	defer cancelA()
	defer cancelB()

	bus.Publish(JobEvent("j1", constants.JobStatusProcessing, "started"))

	for _, ch := range []<-chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, TypeProcessingStatus, ev.Type)
		assert.Equal(t, "j1", ev.JobID)
		assert.Equal(t, constants.JobStatusProcessing, ev.Status)
	}
}

func TestBusPublishNeverBlocks(t *testing.T) {
	bus := NewBus(nil)
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bus.Publish(JobEvent("j", constants.JobStatusProcessing, ""))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, 1)
	assert.Equal(t, uint64(4), bus.Dropped())
}

func TestBusCancel(t *testing.T) {
	bus := NewBus(nil)
	ch, cancel := bus.Subscribe(1)
	assert.Equal(t, 1, bus.Subscribers())

	cancel()
	cancel()
	assert.Equal(t, 0, bus.Subscribers())

	_, ok := <-ch
	assert.False(t, ok)

	// publishing with no subscribers is a no-op
	bus.Publish(Event{Type: TypeInvoiceDeleted, OrderID: 1})
}

func TestRelayStreamsFilteredEvents(t *testing.T) {
	bus := NewBus(nil)
	srv := httptest.NewServer(NewRelay(bus, 8, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?job_id=wanted"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	bus.Publish(JobEvent("other", constants.JobStatusProcessing, ""))
	bus.Publish(JobEvent("wanted", constants.JobStatusCompleted, "done"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "wanted", got.JobID)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	assert.Equal(t, "done", got.Message)
}

func TestRelayUnsubscribesOnClose(t *testing.T) {
	bus := NewBus(nil)
	srv := httptest.NewServer(NewRelay(bus, 8, nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return bus.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
