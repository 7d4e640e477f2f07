package broadcast

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/models"
)

func TestConnSendPreservesEnqueueOrder(t *testing.T) {
	conn := NewConn("c1", models.Actor{ID: "u1", Role: models.RoleUser}, nil, time.Second)

	for i := 0; i < 5; i++ {
		err := conn.Send(Frame{Event: EventMessageSent, Channel: "inbox.1", Data: map[string]interface{}{"n": i}})
		assert.NoError(t, err)
	}

	for i := 0; i < 5; i++ {
		v := <-conn.send
		frame, ok := v.(Frame)
		assert.True(t, ok)
		assert.Equal(t, i, frame.Data["n"])
	}
}

func TestConnSendTimesOutWhenQueueFull(t *testing.T) {
	// No write pump running, so the buffer never drains.
	conn := NewConn("c1", models.Actor{ID: "u1", Role: models.RoleUser}, nil, 20*time.Millisecond)

	for i := 0; i < defaultSendBuffer; i++ {
		err := conn.Send(Frame{Event: EventUserTyping, Channel: "inbox.1"})
		assert.NoError(t, err)
	}

	start := time.Now()
	err := conn.Send(Frame{Event: EventUserTyping, Channel: "inbox.1"})
	assert.ErrorIs(t, err, ErrSendTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "send must fail within the timeout, not block")
}

func TestConnSendAfterClose(t *testing.T) {
	conn := NewConn("c1", models.Actor{ID: "u1", Role: models.RoleUser}, nil, time.Second)
	assert.False(t, conn.Closed())

	conn.Close()
	conn.Close() // safe to call twice

	assert.True(t, conn.Closed())
	err := conn.Send(Frame{Event: EventMessageSent, Channel: "inbox.1"})
	assert.ErrorIs(t, err, ErrConnClosed)
}

func TestConnSendErrorEnqueuesErrorFrame(t *testing.T) {
	conn := NewConn("c1", models.Actor{ID: "u1", Role: models.RoleUser}, nil, time.Second)

	err := conn.SendError(ErrorFrame{Error: "forbidden", Channel: "inbox.9"})
	assert.NoError(t, err)

	v := <-conn.send
	ef, ok := v.(ErrorFrame)
	assert.True(t, ok, fmt.Sprintf("expected ErrorFrame, got %T", v))
	assert.Equal(t, "forbidden", ef.Error)
	assert.Equal(t, "inbox.9", ef.Channel)
}
