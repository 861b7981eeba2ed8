package kafka

import (
	"testing"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_AcceptsPlainAndWrappedPayloads(t *testing.T) {
	type ev struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
	}

	var plain ev
	require.NoError(t, Decode(Message{Value: []byte(`{"id":"01H","kind":"enrolled"}`)}, &plain))
	assert.Equal(t, ev{ID: "01H", Kind: "enrolled"}, plain)

	var wrapped ev
	require.NoError(t, Decode(Message{Value: []byte(`"{\"id\":\"01J\",\"kind\":\"sent\"}"`)}, &wrapped))
	assert.Equal(t, ev{ID: "01J", Kind: "sent"}, wrapped)

	assert.Error(t, Decode(Message{Value: []byte(`{"id":`)}, &plain))
}

func TestConfigFor_SeparatesGroupsPerWorker(t *testing.T) {
	k := config.KafkaConfig{Brokers: []string{"b:9092"}, GroupID: "outreach", CommitInterval: 500}

	c := ConfigFor(k, "outreach.events", "events")
	assert.Equal(t, "outreach-events", c.GroupID)
	assert.Equal(t, "outreach.events", c.Topic)
	assert.Equal(t, 500*time.Millisecond, c.CommitInterval)

	k.GroupID = ""
	assert.Equal(t, "outreach-callbacks", ConfigFor(k, "outreach.voice_events", "callbacks").GroupID)
}
