package mqttbridge

import "sync"

// FakeConn is an in-memory Conn for tests.
type FakeConn struct {
	mu       sync.Mutex
	handlers map[string]func(payload []byte)
	closed   bool

	// SubscribeErr, when set, is returned by Subscribe.
	SubscribeErr error
}

// NewFakeConn creates an empty fake connection.
func NewFakeConn() *FakeConn {
	return &FakeConn{handlers: make(map[string]func(payload []byte))}
}

// Subscribe records the handler for later injection.
func (c *FakeConn) Subscribe(topic string, handler func(payload []byte)) error {
	if c.SubscribeErr != nil {
		return c.SubscribeErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	return nil
}

// Close marks the connection closed.
func (c *FakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Inject delivers a payload to the handler subscribed on topic.
func (c *FakeConn) Inject(topic string, payload []byte) {
	c.mu.Lock()
	handler := c.handlers[topic]
	c.mu.Unlock()
	if handler != nil {
		handler(payload)
	}
}
