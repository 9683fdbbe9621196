package chat

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrouter/auth"
)

func newTestServer(opts ServerOptions) *ChatServer {
	if opts.MaxMessageSize == 0 {
		opts.MaxMessageSize = 1 << 20
	}
	return NewChatServer(auth.NoneAuthenticator{}, opts)
}

func open(t *testing.T, s *ChatServer, id ConnId, userId uint64) *fakeConn {
	c := newFakeConn(id)
	gotUserId, ok := s.HandleOpen(c, OpenRequest{Query: map[string]string{"id": strconv.FormatUint(userId, 10)}})
	require.True(t, ok)
	require.Equal(t, userId, gotUserId)
	return c
}

// S1: unauthorized open is rejected and the connection is closed.
func TestServerRejectsUnauthenticatedOpen(t *testing.T) {
	s := newTestServer(ServerOptions{})
	s.SetAuth(denyAll{})
	c := newFakeConn("c1")
	_, ok := s.HandleOpen(c, OpenRequest{Query: map[string]string{"id": "1"}})
	assert.False(t, ok)
	closed, code := c.isClosed()
	assert.True(t, closed)
	assert.Equal(t, 4001, code)
}

// S1b: missing id query parameter is rejected.
func TestServerRejectsOpenWithoutId(t *testing.T) {
	s := newTestServer(ServerOptions{})
	c := newFakeConn("c1")
	_, ok := s.HandleOpen(c, OpenRequest{})
	assert.False(t, ok)
	closed, code := c.isClosed()
	assert.True(t, closed)
	assert.Equal(t, 4002, code)
}

// S2: fan-out delivers to every live connection of every recipient.
func TestServerFanOutToMultipleRecipientConnections(t *testing.T) {
	s := newTestServer(ServerOptions{})
	recvA := open(t, s, "a1", 2)
	recvB := open(t, s, "b1", 3)
	sender := open(t, s, "s1", 1)

	s.HandleMessage(sender, 1, OpText, []byte(`{"type":"text","sender":1,"recipients":[2,3],"body":"hi"}`))

	assert.Equal(t, 1, recvA.sentCount())
	assert.Equal(t, 1, recvB.sentCount())
}

// S3: a message is queued when its recipient has no live connection, then
// delivered on reconnect, drained before any new traffic.
func TestServerQueuesAndRedeliversOnReconnect(t *testing.T) {
	s := newTestServer(ServerOptions{EnableUndeliveredQueue: true})
	sender := open(t, s, "s1", 1)

	s.HandleMessage(sender, 1, OpText, []byte(`{"type":"text","sender":1,"recipients":[9],"body":"offline"}`))
	assert.True(t, s.undelivered.Has(9))

	recv := open(t, s, "r1", 9)
	assert.Equal(t, 1, recv.sentCount())
	assert.False(t, s.undelivered.Has(9))
}

// S4: enabling delivery-status echoes a sent-status payload back to the
// sender once a recipient's connection accepts the write, and the echo
// itself never re-triggers another echo.
func TestServerDeliveryStatusEchoDoesNotRecurse(t *testing.T) {
	s := newTestServer(ServerOptions{EnableDeliveryStatus: true})
	sender := open(t, s, "s1", 1)
	_ = open(t, s, "r1", 2)

	s.HandleMessage(sender, 1, OpText, []byte(`{"type":"text","sender":1,"recipients":[2],"body":"hi"}`))

	assert.Equal(t, 1, sender.sentCount(), "sender should receive exactly one sent-status echo")
	echoed := ParsePayload(sender.lastSent(), false)
	require.True(t, echoed.Valid)
	assert.True(t, echoed.IsTypeOfSentStatus())
}

// S5: a send-back enabled server echoes a non-ignored message type back
// to its own sender in addition to fanning it out to recipients.
func TestServerSendBackToSender(t *testing.T) {
	s := newTestServer(ServerOptions{EnableSendBack: true})
	sender := open(t, s, "s1", 1)
	_ = open(t, s, "r1", 2)

	s.HandleMessage(sender, 1, OpText, []byte(`{"type":"text","sender":1,"recipients":[2],"body":"hi"}`))

	assert.Equal(t, 1, sender.sentCount())
}

// S5b: send-back respects the ignored-types list.
func TestServerSendBackIgnoresConfiguredTypes(t *testing.T) {
	s := newTestServer(ServerOptions{EnableSendBack: true, IgnoreTypesSendBack: []string{"Typing"}})
	sender := open(t, s, "s1", 1)
	_ = open(t, s, "r1", 2)

	s.HandleMessage(sender, 1, OpText, []byte(`{"type":"typing","sender":1,"recipients":[2],"body":""}`))

	assert.Equal(t, 0, sender.sentCount())
}

// S6: an oversize message is rejected with MESSAGE_TOO_BIG and the
// connection closed, never reaching the routing stage.
func TestServerRejectsOversizeMessage(t *testing.T) {
	s := newTestServer(ServerOptions{})
	s.SetMessageSizeLimit(4)
	sender := open(t, s, "s1", 1)

	s.HandleMessage(sender, 1, OpText, []byte(`{"type":"text","sender":1,"recipients":[2],"body":"way too long"}`))

	closed, code := sender.isClosed()
	assert.True(t, closed)
	assert.Equal(t, 4004, code)
}

// Fragmented frames reassemble through FrameBuffer before routing.
func TestServerReassemblesFragmentedMessage(t *testing.T) {
	s := newTestServer(ServerOptions{})
	sender := open(t, s, "s1", 1)
	recv := open(t, s, "r1", 2)

	whole := `{"type":"text","sender":1,"recipients":[2],"body":"hello"}`
	s.HandleMessage(sender, 1, OpFragmentBeginText, []byte(whole[:10]))
	s.HandleMessage(sender, 1, OpFragmentContinue, []byte(whole[10:30]))
	s.HandleMessage(sender, 1, OpFragmentEnd, []byte(whole[30:]))

	assert.Equal(t, 1, recv.sentCount())
}

// A pong frame marks the connection active again without touching routing.
func TestServerPongUpdatesLiveness(t *testing.T) {
	s := newTestServer(ServerOptions{})
	c := open(t, s, "s1", 1)
	s.storage.MarkPongWait(1, "s1")

	s.HandleMessage(c, 1, OpPong, nil)

	conns, ok := s.storage.Get(1)
	require.True(t, ok)
	assert.Equal(t, LivenessActive, conns[0].Liveness)
}

// HandleClose is idempotent and removes the connection's registration.
func TestServerHandleCloseRemovesConnection(t *testing.T) {
	s := newTestServer(ServerOptions{})
	_ = open(t, s, "s1", 1)

	s.HandleClose(1, "s1")
	assert.False(t, s.storage.Exists(1))
	s.HandleClose(1, "s1") // no-op, no panic
}

type denyAll struct{}

func (denyAll) Validate(auth.Request) bool { return false }
