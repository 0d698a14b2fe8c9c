package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Socket deadlines use wall time even when the hub runs on a fake clock.
const (
	writeDeadline = 5 * time.Second
	closeDeadline = time.Second
)

type frame struct {
	messageType int
	data        []byte
}

var pingFrame = frame{messageType: websocket.PingMessage}

type sendResult int

const (
	sendQueued sendResult = iota
	sendClosed
	sendFull
)

// peerWriter owns all writes to one connection.
type peerWriter struct {
	connection  Conn
	sendChannel chan frame
	doneChannel chan struct{}
	exited      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func newPeerWriter(connection Conn, bufferSize int) *peerWriter {
	w := &peerWriter{
		connection:  connection,
		sendChannel: make(chan frame, bufferSize),
		doneChannel: make(chan struct{}),
		exited:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *peerWriter) run() {
	defer w.wg.Done()
	defer close(w.exited)

	for {
		select {
		case f := <-w.sendChannel:
			if err := w.write(f); err != nil {
				// Closing makes the read loop fail, which unregisters the peer.
				_ = w.connection.Close()
				return
			}
		case <-w.doneChannel:
			return
		}
	}
}

func (w *peerWriter) write(f frame) error {
	deadline := time.Now().Add(writeDeadline)
	if f.messageType == websocket.PingMessage {
		return w.connection.WriteControl(websocket.PingMessage, nil, deadline)
	}
	_ = w.connection.SetWriteDeadline(deadline)
	return w.connection.WriteMessage(f.messageType, f.data)
}

// enqueue hands f to the writer without blocking.
func (w *peerWriter) enqueue(f frame) sendResult {
	select {
	case <-w.exited:
		return sendClosed
	default:
	}

	select {
	case w.sendChannel <- f:
		return sendQueued
	default:
		return sendFull
	}
}

func (w *peerWriter) stop() {
	w.stopOnce.Do(func() {
		close(w.doneChannel)
		_ = w.connection.Close()
	})
	w.wg.Wait()
}

// stopGraceful sends a close frame with reason before closing. WriteControl
// may run alongside a pending write, so a stuck peer costs at most
// closeDeadline and closing the socket releases the writer.
func (w *peerWriter) stopGraceful(reason string) {
	w.stopOnce.Do(func() {
		close(w.doneChannel)

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = w.connection.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(closeDeadline))
		_ = w.connection.Close()
	})
	w.wg.Wait()
}
