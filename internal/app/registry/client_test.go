package registry

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	sent   [][]byte
	failed bool
}

func (c *fakeConn) Send(data []byte) error {
	if c.failed {
		return errors.New("connection closed")
	}
	c.sent = append(c.sent, data)
	return nil
}

func TestClientRegistry_AddSendRemove(t *testing.T) {
	r := NewClientRegistry()
	conn := &fakeConn{}

	r.Add("client-1", conn, "Alice")
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, "Alice", r.Name("client-1"))

	assert.True(t, r.Send("client-1", []byte("hello")))
	assert.Len(t, conn.sent, 1)

	r.Remove("client-1")
	assert.Equal(t, 0, r.Count())
	assert.False(t, r.Send("client-1", []byte("gone")), "send after remove is a no-op returning false")
	assert.Len(t, conn.sent, 1)
}

func TestClientRegistry_SendFailedConn(t *testing.T) {
	r := NewClientRegistry()
	r.Add("client-1", &fakeConn{failed: true}, "Alice")

	assert.False(t, r.Send("client-1", []byte("hello")))
}

func TestClientRegistry_RoomAssociation(t *testing.T) {
	r := NewClientRegistry()
	r.Add("client-1", &fakeConn{}, "Alice")

	_, ok := r.GetRoom("client-1")
	assert.False(t, ok)
	assert.False(t, r.IsInRoom("client-1"))

	r.SetRoom("client-1", "AB23CD")
	code, ok := r.GetRoom("client-1")
	assert.True(t, ok)
	assert.Equal(t, "AB23CD", code)
	assert.True(t, r.IsInRoom("client-1"))

	r.ClearRoom("client-1")
	assert.False(t, r.IsInRoom("client-1"))
}

func TestClientRegistry_RemoveClearsRoom(t *testing.T) {
	r := NewClientRegistry()
	r.Add("client-1", &fakeConn{}, "Alice")
	r.SetRoom("client-1", "AB23CD")

	r.Remove("client-1")

	assert.False(t, r.IsInRoom("client-1"))
}

func TestClientRegistry_SetName(t *testing.T) {
	r := NewClientRegistry()
	r.Add("client-1", &fakeConn{}, "Alice")

	r.SetName("client-1", "Alice2")
	assert.Equal(t, "Alice2", r.Name("client-1"))

	r.SetName("unknown", "Bob") // unknown client is a no-op
	assert.Equal(t, "", r.Name("unknown"))
}
