package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHubPublishOrder(t *testing.T) {
	var h Hub[int]
	var got []string

	h.Subscribe(func(v int) { got = append(got, "a") })
	h.Subscribe(func(v int) { got = append(got, "b") })
	h.Publish(1)

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestHubUnsubscribe(t *testing.T) {
	var h Hub[string]
	calls := 0
	unsub := h.Subscribe(func(string) { calls++ })

	h.Publish("x")
	unsub()
	unsub()
	h.Publish("y")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, h.Len())
}

func TestHubUnsubscribeDuringPublish(t *testing.T) {
	var h Hub[int]
	var unsub func()
	calls := 0
	unsub = h.Subscribe(func(int) {
		calls++
		unsub()
	})

	h.Publish(1)
	h.Publish(2)

	assert.Equal(t, 1, calls)
}
