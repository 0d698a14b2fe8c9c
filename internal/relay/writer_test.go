package relay

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingConn records writes and can be told to stall or fail them.
type blockingConn struct {
	stubConn
	mu      sync.Mutex
	frames  []int
	release chan struct{}
	failing bool
	closed  bool
}

func newBlockingConn() *blockingConn {
	return &blockingConn{release: make(chan struct{})}
}

func (c *blockingConn) WriteMessage(messageType int, _ []byte) error {
	<-c.release
	return c.record(messageType)
}

func (c *blockingConn) WriteControl(messageType int, _ []byte, _ time.Time) error {
	return c.record(messageType)
}

func (c *blockingConn) record(messageType int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, messageType)
	return nil
}

func (c *blockingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *blockingConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *blockingConn) written() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.frames...)
}

func TestPeerWriter_FullQueue(t *testing.T) {
	conn := newBlockingConn()
	w := newPeerWriter(conn, 1)
	t.Cleanup(func() {
		close(conn.release)
		w.stop()
	})

	text := frame{messageType: websocket.TextMessage, data: []byte("x")}

	// The first frame is picked up by run and blocks in WriteMessage,
	// the second fills the buffer, the third does not fit.
	require.Equal(t, sendQueued, w.enqueue(text))
	require.Eventually(t, func() bool { return len(w.sendChannel) == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, sendQueued, w.enqueue(text))
	assert.Equal(t, sendFull, w.enqueue(text))
}

func TestPeerWriter_WriteErrorClosesConnection(t *testing.T) {
	conn := newBlockingConn()
	conn.failing = true
	close(conn.release)
	w := newPeerWriter(conn, 4)
	t.Cleanup(w.stop)

	require.Equal(t, sendQueued, w.enqueue(frame{messageType: websocket.TextMessage}))

	require.Eventually(t, conn.isClosed, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		return w.enqueue(frame{messageType: websocket.TextMessage}) == sendClosed
	}, time.Second, time.Millisecond)
}

func TestPeerWriter_PingUsesControlFrame(t *testing.T) {
	conn := newBlockingConn()
	w := newPeerWriter(conn, 4)
	t.Cleanup(func() {
		close(conn.release)
		w.stop()
	})

	require.Equal(t, sendQueued, w.enqueue(pingFrame))
	require.Eventually(t, func() bool {
		frames := conn.written()
		return len(frames) == 1 && frames[0] == websocket.PingMessage
	}, time.Second, time.Millisecond)
}

func TestPeerWriter_StopIsIdempotent(t *testing.T) {
	conn := newBlockingConn()
	close(conn.release)
	w := newPeerWriter(conn, 4)

	w.stop()
	w.stop()
	w.stopGraceful("again")

	assert.True(t, conn.isClosed())
	assert.Equal(t, sendClosed, w.enqueue(pingFrame))
}

func TestPeerWriter_StopGracefulSendsCloseFrame(t *testing.T) {
	conn := newBlockingConn()
	close(conn.release)
	w := newPeerWriter(conn, 4)

	w.stopGraceful("bye")

	assert.Equal(t, []int{websocket.CloseMessage}, conn.written())
	assert.True(t, conn.isClosed())
}

// stuckConn blocks data writes until it is closed, like a socket whose
// peer stopped reading.
type stuckConn struct {
	blockingConn
	entered   chan struct{}
	closeOnce sync.Once
}

func newStuckConn() *stuckConn {
	return &stuckConn{
		blockingConn: blockingConn{release: make(chan struct{})},
		entered:      make(chan struct{}, 1),
	}
}

func (c *stuckConn) WriteMessage(int, []byte) error {
	select {
	case c.entered <- struct{}{}:
	default:
	}
	<-c.release
	return errors.New("use of closed connection")
}

func (c *stuckConn) Close() error {
	c.closeOnce.Do(func() { close(c.release) })
	return c.blockingConn.Close()
}

func TestPeerWriter_StopGracefulDoesNotWaitForStuckWrite(t *testing.T) {
	conn := newStuckConn()
	w := newPeerWriter(conn, 4)

	require.Equal(t, sendQueued, w.enqueue(frame{messageType: websocket.TextMessage, data: []byte("x")}))
	select {
	case <-conn.entered:
	case <-time.After(time.Second):
		t.Fatal("writer never started the write")
	}

	start := time.Now()
	w.stopGraceful("bye")

	assert.Less(t, time.Since(start), writeDeadline)
	assert.Equal(t, []int{websocket.CloseMessage}, conn.written())
	assert.True(t, conn.isClosed())
}
