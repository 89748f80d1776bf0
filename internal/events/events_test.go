package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("broker down")
}

func (f *failingPublisher) Close() error { return nil }

func TestNewFillsEnvelope(t *testing.T) {
	actor := uuid.New()
	evt := New(FollowCreated, "alice", actor, map[string]string{"target": "bob"})

	assert.NotEqual(t, uuid.Nil, evt.ID)
	assert.Equal(t, FollowCreated, evt.Type)
	assert.Equal(t, actor, evt.ActorID)
	assert.False(t, evt.OccurredAt.IsZero())

	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"follow.created"`)
	assert.Contains(t, string(raw), `"target":"bob"`)
}

func TestEmitSwallowsErrors(t *testing.T) {
	p := &failingPublisher{}
	assert.NotPanics(t, func() {
		Emit(context.Background(), p, New(CommentPosted, "x", uuid.New(), nil))
	})
	assert.Equal(t, 1, p.calls)
}

func TestEmitNilPublisher(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(context.Background(), nil, New(CommentPosted, "x", uuid.New(), nil))
	})
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
