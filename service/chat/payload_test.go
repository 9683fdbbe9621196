package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayloadRoundTrip(t *testing.T) {
	p := ParsePayload([]byte(`{"type":"text","sender":1,"recipients":[2,3],"body":"hi"}`), false)
	require.True(t, p.Valid)
	assert.Equal(t, uint64(1), p.Sender)
	assert.Equal(t, []uint64{2, 3}, p.Recipients)
	assert.Equal(t, "text", p.Type)
	assert.Equal(t, "hi", p.Body)

	wire := p.ToWire()
	again := ParsePayload(wire, false)
	require.True(t, again.Valid)
	assert.Equal(t, p.Sender, again.Sender)
	assert.Equal(t, p.Recipients, again.Recipients)
	assert.Equal(t, p.Type, again.Type)
	assert.Equal(t, p.Body, again.Body)
}

func TestParsePayloadMalformedJSON(t *testing.T) {
	p := ParsePayload([]byte(`not json`), false)
	assert.False(t, p.Valid)
	assert.NotEmpty(t, p.Error)
}

func TestParsePayloadMissingType(t *testing.T) {
	p := ParsePayload([]byte(`{"sender":1,"recipients":[2]}`), false)
	assert.False(t, p.Valid)
	assert.Contains(t, p.Error, "type")
}

func TestParsePayloadMissingRecipients(t *testing.T) {
	p := ParsePayload([]byte(`{"type":"text","sender":1}`), false)
	assert.False(t, p.Valid)
	assert.Contains(t, p.Error, "recipients")
}

func TestPayloadIsForBot(t *testing.T) {
	p := ParsePayload([]byte(`{"type":"text","sender":1,"recipients":[0]}`), false)
	require.True(t, p.Valid)
	assert.True(t, p.IsForBot())

	p2 := ParsePayload([]byte(`{"type":"text","sender":1,"recipients":[7]}`), false)
	require.True(t, p2.Valid)
	assert.False(t, p2.IsForBot())
}

func TestWithRecipientDoesNotMutateOriginal(t *testing.T) {
	p := ParsePayload([]byte(`{"type":"text","sender":1,"recipients":[2,3]}`), false)
	require.True(t, p.Valid)
	narrowed := p.WithRecipient(2)
	assert.Equal(t, []uint64{2}, narrowed.Recipients)
	assert.Equal(t, []uint64{2, 3}, p.Recipients)
}

func TestCreateSentStatusAddressedBackToSender(t *testing.T) {
	original := ParsePayload([]byte(`{"type":"text","sender":1,"recipients":[2],"body":"hi"}`), false)
	require.True(t, original.Valid)
	status := CreateSentStatus(original, 2)
	assert.Equal(t, uint64(2), status.Sender)
	assert.Equal(t, []uint64{1}, status.Recipients)
	assert.True(t, status.IsTypeOfSentStatus())
}
