package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Timer behavior is tested against a shortened timeout; waits are generous
// multiples so the tests stay stable on slow runners.

func TestTypingBroadcastsFullSet(t *testing.T) {
	svc := newTestService(Options{TypingTimeout: time.Hour})

	alice, _, err := svc.Connect(newFakeConn(), "alice", "ABCDE")
	require.NoError(t, err)
	bobConn := newFakeConn()
	bob, _, err := svc.Connect(bobConn, "bob", "ABCDE")
	require.NoError(t, err)

	svc.SetTyping(alice.ID, true)
	svc.SetTyping(bob.ID, true)

	events := typingEvents(bobConn)
	require.Len(t, events, 2)
	assert.Equal(t, []string{"alice"}, events[0].TypingUsers)
	assert.Equal(t, []string{"alice", "bob"}, events[1].TypingUsers)
	assert.True(t, events[1].IsTyping)
}

func TestTypingExpiresOnce(t *testing.T) {
	svc := newTestService(Options{TypingTimeout: 50 * time.Millisecond})

	alice, _, err := svc.Connect(newFakeConn(), "alice", "ABCDE")
	require.NoError(t, err)
	bobConn := newFakeConn()
	_, _, err = svc.Connect(bobConn, "bob", "ABCDE")
	require.NoError(t, err)

	svc.SetTyping(alice.ID, true)

	require.Eventually(t, func() bool {
		events := typingEvents(bobConn)
		return len(events) == 2 && !events[1].IsTyping
	}, time.Second, 10*time.Millisecond)

	// No further firing after the single expiry.
	time.Sleep(150 * time.Millisecond)
	events := typingEvents(bobConn)
	require.Len(t, events, 2)
	assert.Empty(t, events[1].TypingUsers)
}

func TestTypingSignalRestartsTimer(t *testing.T) {
	svc := newTestService(Options{TypingTimeout: 80 * time.Millisecond})

	alice, _, err := svc.Connect(newFakeConn(), "alice", "ABCDE")
	require.NoError(t, err)
	bobConn := newFakeConn()
	_, _, err = svc.Connect(bobConn, "bob", "ABCDE")
	require.NoError(t, err)

	svc.SetTyping(alice.ID, true)
	time.Sleep(50 * time.Millisecond)
	svc.SetTyping(alice.ID, true) // restart the window

	// The first window would have lapsed by now; the restart keeps it alive.
	time.Sleep(50 * time.Millisecond)
	for _, e := range typingEvents(bobConn) {
		assert.True(t, e.IsTyping)
	}

	require.Eventually(t, func() bool {
		events := typingEvents(bobConn)
		return !events[len(events)-1].IsTyping
	}, time.Second, 10*time.Millisecond)
}

func TestTypingStopCancelsTimer(t *testing.T) {
	svc := newTestService(Options{TypingTimeout: 50 * time.Millisecond})

	alice, _, err := svc.Connect(newFakeConn(), "alice", "ABCDE")
	require.NoError(t, err)
	bobConn := newFakeConn()
	_, _, err = svc.Connect(bobConn, "bob", "ABCDE")
	require.NoError(t, err)

	svc.SetTyping(alice.ID, true)
	svc.SetTyping(alice.ID, false)

	events := typingEvents(bobConn)
	require.Len(t, events, 2)
	assert.False(t, events[1].IsTyping)

	// A cancelled timer never fires: no third event shows up.
	time.Sleep(150 * time.Millisecond)
	assert.Len(t, typingEvents(bobConn), 2)
}

func TestTypingFalseWhenIdleIsNoop(t *testing.T) {
	svc := newTestService(Options{})

	alice, _, err := svc.Connect(newFakeConn(), "alice", "ABCDE")
	require.NoError(t, err)
	bobConn := newFakeConn()
	_, _, err = svc.Connect(bobConn, "bob", "ABCDE")
	require.NoError(t, err)

	svc.SetTyping(alice.ID, false)
	assert.Empty(t, typingEvents(bobConn))
}

func TestDisconnectCancelsTypingTimer(t *testing.T) {
	svc := newTestService(Options{TypingTimeout: 50 * time.Millisecond})

	alice, _, err := svc.Connect(newFakeConn(), "alice", "ABCDE")
	require.NoError(t, err)
	bobConn := newFakeConn()
	_, _, err = svc.Connect(bobConn, "bob", "ABCDE")
	require.NoError(t, err)

	svc.SetTyping(alice.ID, true)
	svc.Disconnect(alice.ID)

	// The lapsed timer must not produce a not-typing broadcast for a
	// session that is already gone.
	time.Sleep(150 * time.Millisecond)
	events := typingEvents(bobConn)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsTyping)

	svc.mu.Lock()
	assert.Empty(t, svc.timers)
	svc.mu.Unlock()
}
