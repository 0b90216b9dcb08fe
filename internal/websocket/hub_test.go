package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub(nil, "instance-a", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	return h, cancel
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func TestHubSendReachesEveryConnection(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	phone := &Client{Hub: h, UserID: "u1", Send: make(chan []byte, 4)}
	laptop := &Client{Hub: h, UserID: "u1", Send: make(chan []byte, 4)}
	other := &Client{Hub: h, UserID: "u2", Send: make(chan []byte, 4)}
	for _, c := range []*Client{phone, laptop, other} {
		require.True(t, h.join(c))
	}

	require.NoError(t, h.Send(context.Background(), "u1", map[string]string{"type": "answer", "text": "Hi!"}))

	for _, c := range []*Client{phone, laptop} {
		var got map[string]string
		require.NoError(t, json.Unmarshal(receive(t, c), &got))
		assert.Equal(t, "Hi!", got["text"])
	}
	assert.Len(t, other.Send, 0)
}

func TestHubIgnoresOwnClusterMessages(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	c := &Client{Hub: h, UserID: "u1", Send: make(chan []byte, 4)}
	require.True(t, h.join(c))

	own, _ := json.Marshal(clusterPayload{Origin: "instance-a", TargetUserID: "u1", Message: json.RawMessage(`{"n":1}`)})
	remote, _ := json.Marshal(clusterPayload{Origin: "instance-b", TargetUserID: "u1", Message: json.RawMessage(`{"n":2}`)})

	h.handleRemote(context.Background(), own)
	h.handleRemote(context.Background(), remote)
	h.handleRemote(context.Background(), []byte("not json"))

	assert.JSONEq(t, `{"n":2}`, string(receive(t, c)))
	select {
	case extra := <-c.Send:
		t.Fatalf("unexpected extra delivery %s", extra)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHubLeaveAndShutdown(t *testing.T) {
	h, cancel := startHub(t)

	gone := &Client{Hub: h, UserID: "u1", Send: make(chan []byte, 1)}
	stays := &Client{Hub: h, UserID: "u2", Send: make(chan []byte, 1)}
	require.True(t, h.join(gone))
	require.True(t, h.join(stays))

	h.leave(gone)
	_, open := <-gone.Send
	assert.False(t, open)

	cancel()
	_, open = <-stays.Send
	assert.False(t, open)

	// After shutdown joins are refused and sends are dropped without blocking.
	assert.False(t, h.join(&Client{Hub: h, UserID: "u3", Send: make(chan []byte, 1)}))
	assert.NoError(t, h.Send(context.Background(), "u2", "late"))
}
