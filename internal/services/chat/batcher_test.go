package chat

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedDeliveryGroupsPerRoom(t *testing.T) {
	svc := newTestService(Options{
		BatchedDelivery: true,
		BatchInterval:   10 * time.Millisecond,
		BatchSize:       10,
	})
	svc.Start()
	defer svc.Stop()

	aliceConn := newFakeConn()
	alice, _, err := svc.Connect(aliceConn, "alice", "ABCDE")
	require.NoError(t, err)
	bob, _, err := svc.Connect(newFakeConn(), "bob", "ABCDE")
	require.NoError(t, err)
	carol, _, err := svc.Connect(newFakeConn(), "carol", "ZYXWV")
	require.NoError(t, err)

	for i, sess := range []*Session{alice, bob, carol} {
		res := svc.Send(sess.ID, fmt.Sprintf("msg-%d", i))
		require.Equal(t, Accepted, res.Status)
	}

	require.Eventually(t, func() bool {
		n := 0
		for _, b := range batchEvents(aliceConn) {
			n += len(b.Messages)
		}
		return n == 2
	}, time.Second, 5*time.Millisecond)

	var batches []MessagesEvent
	for _, e := range aliceConn.all() {
		switch e.(type) {
		case MessageEvent:
			t.Fatal("batched delivery must not also deliver inline")
		case MessagesEvent:
			batches = append(batches, e.(MessagesEvent))
		}
	}

	// Alice's room saw exactly its own two messages, in send order.
	var got []string
	for _, b := range batches {
		assert.Equal(t, EventMessages, b.Type)
		for _, m := range b.Messages {
			assert.Equal(t, "ABCDE", extractRoom(t, m.MessageID))
			got = append(got, m.Content)
		}
	}
	assert.Equal(t, []string{"msg-0", "msg-1"}, got)
}

func TestBatchFlushesAtCapacity(t *testing.T) {
	// Interval far beyond the test horizon: only the size trigger can flush.
	svc := newTestService(Options{
		BatchedDelivery: true,
		BatchInterval:   time.Hour,
		BatchSize:       2,
	})
	svc.Start()
	defer svc.Stop()

	aliceConn := newFakeConn()
	alice, _, err := svc.Connect(aliceConn, "alice", "ABCDE")
	require.NoError(t, err)
	bob, _, err := svc.Connect(newFakeConn(), "bob", "ABCDE")
	require.NoError(t, err)

	require.Equal(t, Accepted, svc.Send(alice.ID, "one").Status)
	assert.Empty(t, batchEvents(aliceConn))

	require.Equal(t, Accepted, svc.Send(bob.ID, "two").Status)

	require.Eventually(t, func() bool {
		return len(batchEvents(aliceConn)) == 1
	}, time.Second, 5*time.Millisecond)

	batches := batchEvents(aliceConn)
	require.Len(t, batches[0].Messages, 2)
	assert.Equal(t, "one", batches[0].Messages[0].Content)
	assert.Equal(t, "two", batches[0].Messages[1].Content)
}

// A full buffer wakes the flush loop instead of flushing from the sender's
// goroutine. A stalled in-flight delivery therefore cannot be overtaken by
// a later batch from the same room.
func TestBatcherKeepsFlushOrderWhenBufferFills(t *testing.T) {
	stalled := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	var mu sync.Mutex
	var flushes [][]string
	deliver := func(roomID string, msgs []Message) {
		once.Do(func() {
			close(stalled)
			<-release
		})
		var contents []string
		for _, m := range msgs {
			contents = append(contents, m.Content)
		}
		mu.Lock()
		flushes = append(flushes, contents)
		mu.Unlock()
	}

	b := newBatcher(2, 10*time.Millisecond, deliver)
	b.start()

	b.enqueue(Message{RoomID: "ABCDE", Content: "m1"})
	<-stalled // the tick flush holds m1 mid-delivery

	// Filling the buffer while m1 is in flight must not reorder batches.
	b.enqueue(Message{RoomID: "ABCDE", Content: "m2"})
	b.enqueue(Message{RoomID: "ABCDE", Content: "m3"})
	close(release)

	b.stop()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, [][]string{{"m1"}, {"m2", "m3"}}, flushes)
}

func TestBatcherStopWithoutStart(t *testing.T) {
	svc := newTestService(Options{BatchedDelivery: true})

	done := make(chan struct{})
	go func() {
		svc.Stop()
		svc.Stop() // repeated stops are no-ops too
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked with no running flush loop")
	}
}

func TestBatcherStopDrains(t *testing.T) {
	svc := newTestService(Options{
		BatchedDelivery: true,
		BatchInterval:   time.Hour,
		BatchSize:       10,
	})
	svc.Start()

	aliceConn := newFakeConn()
	alice, _, err := svc.Connect(aliceConn, "alice", "ABCDE")
	require.NoError(t, err)

	require.Equal(t, Accepted, svc.Send(alice.ID, "parting words").Status)
	assert.Empty(t, batchEvents(aliceConn))

	svc.Stop()

	batches := batchEvents(aliceConn)
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Messages, 1)
	assert.Equal(t, "parting words", batches[0].Messages[0].Content)
}

func TestImmediateModeBypassesBatcher(t *testing.T) {
	svc := newTestService(Options{BatchInterval: 10 * time.Millisecond})
	svc.Start()
	defer svc.Stop()

	aliceConn := newFakeConn()
	alice, _, err := svc.Connect(aliceConn, "alice", "ABCDE")
	require.NoError(t, err)

	require.Equal(t, Accepted, svc.Send(alice.ID, "now").Status)
	require.Len(t, messageEvents(aliceConn), 1)

	// Give the flusher a few ticks: nothing may be re-delivered.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, batchEvents(aliceConn))
	assert.Len(t, messageEvents(aliceConn), 1)
}

func batchEvents(c *fakeConn) []MessagesEvent {
	var out []MessagesEvent
	for _, e := range c.all() {
		if be, ok := e.(MessagesEvent); ok {
			out = append(out, be)
		}
	}
	return out
}

func extractRoom(t *testing.T, messageID string) string {
	t.Helper()
	require.GreaterOrEqual(t, len(messageID), roomIDLength)
	return messageID[:roomIDLength]
}
