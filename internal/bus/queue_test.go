package bus

import (
	"context"
	"testing"

	"main/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDeliversInOrder(t *testing.T) {
	q := NewQueue(8)
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, q.TryPublish(Event{Order: schema.Order{ID: i}}))
	}
	q.Close()

	var got []uint64
	q.Run(context.Background(), func(e Event) {
		got = append(got, e.Order.ID)
	})
	assert.Equal(t, []uint64{1, 2, 3}, got)
}

func TestQueueOverflow(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.TryPublish(Event{Order: schema.Order{ID: 1}}))
	require.ErrorIs(t, q.TryPublish(Event{Order: schema.Order{ID: 2}}), ErrQueueFull)
}

func TestQueueClosed(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	require.ErrorIs(t, q.TryPublish(Event{}), ErrQueueClosed)
}
