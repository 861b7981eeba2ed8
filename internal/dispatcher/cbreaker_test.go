package dispatcher

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMicroBreaker_OpensAndProbes(t *testing.T) {
	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := NewMicroBreaker(2, 10*time.Second)
	b.now = func() time.Time { return clock }
	boom := errors.New("boom")

	assert.ErrorIs(t, b.Do(func() error { return boom }), boom)
	assert.True(t, b.Ready())
	assert.ErrorIs(t, b.Do(func() error { return boom }), boom)

	assert.False(t, b.Ready())
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrBreakerOpen)

	clock = clock.Add(11 * time.Second)
	assert.True(t, b.Ready())
	assert.True(t, b.TryAcquire(), "first probe passes")
	assert.False(t, b.TryAcquire(), "only one probe in flight")
	b.OnFailure()
	assert.False(t, b.Ready(), "failed probe reopens")

	clock = clock.Add(11 * time.Second)
	assert.NoError(t, b.Do(func() error { return nil }))
	assert.True(t, b.Ready())
}
