package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeFiltersByType(t *testing.T) {
	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	alerts, unsubAlerts := b.Subscribe(4, "ranking.alert")
	defer unsubAlerts()

	b.Publish(Event{Type: "job.started"})
	b.Publish(Event{Type: "ranking.alert", Data: 12})

	require.Len(t, all, 2)
	require.Len(t, alerts, 1)
	ev := <-alerts
	assert.Equal(t, 12, ev.Data)
	assert.False(t, ev.Time.IsZero())
}

func TestPublishNeverBlocks(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	for i := 0; i < 5; i++ {
		b.Publish(Event{Type: "job.finished"})
	}
	assert.Len(t, ch, 1)
	assert.EqualValues(t, 4, Dropped(b))
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)
	b.Publish(Event{Type: "job.started"})
}
