package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/apperr"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmehdipour/outreach-engine/internal/service/enrichment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAsync(t *testing.T, run func(context.Context) error) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = run(ctx)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not stop")
		}
	}
}

func TestEventSink_FlushesOnSizeAndCommitsPoison(t *testing.T) {
	src := newFakeSource(
		`{"id":"e1","kind":"enrolled","enrollment_id":1,"campaign_id":"c1"}`,
		`not json`,
		`{"id":"e2","kind":"dispatched","enrollment_id":1,"campaign_id":"c1","step":0}`,
	)
	ch := &fakeCH{}
	w := NewEventSink(src, ch, nil)
	w.BatchSize = 3
	w.BatchWait = time.Hour

	stop := runAsync(t, w.Run)
	require.Eventually(t, func() bool { return src.committedCount() == 3 }, time.Second, 5*time.Millisecond)
	stop()

	stored := ch.stored()
	require.Len(t, stored, 2)
	assert.Equal(t, "e1", stored[0].ID)
	assert.Equal(t, "dispatched", stored[1].Kind)
}

func TestEventSink_KeepsBatchUntilInsertSucceeds(t *testing.T) {
	src := newFakeSource(`{"id":"e1","kind":"enrolled"}`)
	ch := &fakeCH{failures: 2}
	w := NewEventSink(src, ch, nil)
	w.BatchWait = 5 * time.Millisecond

	stop := runAsync(t, w.Run)
	require.Eventually(t, func() bool { return len(ch.stored()) == 1 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, 1, src.committedCount(), "offset committed once, after the successful insert")
}

func TestEventSink_FlushesOnShutdown(t *testing.T) {
	src := newFakeSource(`{"id":"e9","kind":"completed"}`)
	ch := &fakeCH{}
	w := NewEventSink(src, ch, nil)
	w.BatchWait = time.Hour

	stop := runAsync(t, w.Run)
	time.Sleep(20 * time.Millisecond)
	stop()

	require.Len(t, ch.stored(), 1)
	assert.Equal(t, 1, src.committedCount())
}

func TestCallbackConsumer_Outcomes(t *testing.T) {
	src := newFakeSource(
		`{"call_id":"c-1","status":"completed","completed":true,"call_length":1.5}`,
		`{"call_id":"c-1","status":"completed","completed":true}`,
		`{"call_id":"c-404","status":"completed"}`,
		`{broken`,
		`{"call_id":"c-2","status":"completed"}`,
	)
	calls := &fakeCompleter{results: []error{
		nil,
		nil,
		apperr.NotFound("call", "c-404"),
		errors.New("deadlock"), // c-2 first try
	}}
	w := NewCallbackConsumer(src, calls, nil)
	w.Backoff = time.Millisecond

	stop := runAsync(t, w.Run)
	require.Eventually(t, func() bool { return src.committedCount() == 5 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, []string{"c-1", "c-1", "c-404", "c-2", "c-2"}, calls.seen)
	assert.True(t, calls.known["c-2"], "transient error retried")
}

func TestOutboxRelay_PublishesThenDeletes(t *testing.T) {
	ob := &fakeOutbox{rows: []model.OutboxEvent{
		{ID: 1, AggregateID: "10", Topic: "outreach.events", Payload: []byte(`{"id":"a"}`)},
		{ID: 2, AggregateID: "11", Topic: "outreach.events", Payload: []byte(`{"id":"b"}`)},
	}}
	pub := &fakePublisher{}
	w := NewOutboxRelay(ob, pub, nil)

	n, err := w.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, "outreach.events", pub.sent[0].Topic)
	assert.Equal(t, []byte("11"), pub.sent[1].Key)
	assert.Equal(t, []int64{1, 2}, ob.deleted)
	assert.Empty(t, ob.rows)
}

func TestOutboxRelay_PublishFailureKeepsRows(t *testing.T) {
	ob := &fakeOutbox{rows: []model.OutboxEvent{{ID: 5, Topic: "outreach.events"}}}
	w := NewOutboxRelay(ob, &fakePublisher{err: errors.New("no leader")}, nil)

	_, err := w.RelayOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, []int64{5}, ob.attempted)
	assert.Empty(t, ob.deleted)
	assert.Len(t, ob.rows, 1)
}

func TestEnricher_DrainsUntilEmpty(t *testing.T) {
	q := &fakeBatches{results: []enrichment.BatchResult{{Claimed: 50}, {Claimed: 3}}}
	w := NewEnricher(q, zapNop())

	w.tick(context.Background())
	assert.Equal(t, 1, q.recovered)
	assert.Equal(t, 3, q.calls, "stops after the empty claim")
}

func TestEnricher_RespectsMaxBatches(t *testing.T) {
	q := &fakeBatches{results: []enrichment.BatchResult{{Claimed: 50}, {Claimed: 50}, {Claimed: 50}}}
	w := NewEnricher(q, zapNop())
	w.MaxBatches = 2

	w.tick(context.Background())
	assert.Equal(t, 2, q.calls)
}

func TestWarmup_SkipsWhenLockHeldElsewhere(t *testing.T) {
	adv := &countingAdvancer{}
	lock := &fakeLock{free: false}
	w := NewWarmup(adv, lock, zapNop())

	w.tick(context.Background())
	assert.Zero(t, adv.calls)
	assert.Zero(t, lock.released)

	lock.free = true
	w.tick(context.Background())
	assert.Equal(t, 1, adv.calls)
	assert.Equal(t, 1, lock.released)
}
