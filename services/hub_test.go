package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastToJobReachesOnlySubscribers(t *testing.T) {
	h := NewHub(testLogger())
	watcher := &Client{hub: h, id: "a", send: make(chan []byte, 1), jobID: "job-1"}
	bystander := &Client{hub: h, id: "b", send: make(chan []byte, 1), jobID: "job-2"}
	h.clients[watcher] = true
	h.clients[bystander] = true

	h.BroadcastToJob("job-1", ProgressEvent{Status: "Generating reward pool"})

	require.Len(t, watcher.send, 1)
	assert.Empty(t, bystander.send)

	var msg Message
	require.NoError(t, json.Unmarshal(<-watcher.send, &msg))
	assert.Equal(t, "progress", msg.Type)
}

func TestSubscriberCount(t *testing.T) {
	h := NewHub(testLogger())
	h.clients[&Client{hub: h, id: "a", send: make(chan []byte, 1), jobID: "job-1"}] = true
	h.clients[&Client{hub: h, id: "b", send: make(chan []byte, 1), jobID: "job-1"}] = true
	h.clients[&Client{hub: h, id: "c", send: make(chan []byte, 1), jobID: "job-2"}] = true

	assert.Equal(t, 2, h.SubscriberCount("job-1"))
	assert.Equal(t, 1, h.SubscriberCount("job-2"))
	assert.Equal(t, 0, h.SubscriberCount("job-3"))
}
