package gateway

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"realtime-service/internal/auth"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeSocket is an in-memory implementation of the socket interface for unit
// tests that never touch a real network connection.
type fakeSocket struct {
	mu      sync.Mutex
	written [][]byte
	closed  bool
	readCh  chan []byte
	readErr error
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{readCh: make(chan []byte, 16)}
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	data, ok := <-f.readCh
	if !ok {
		if f.readErr != nil {
			return 0, nil, f.readErr
		}
		return 0, nil, websocket.ErrCloseSent
	}
	return websocket.TextMessage, data, nil
}

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return websocket.ErrCloseSent
	}
	f.written = append(f.written, data)
	return nil
}

func (f *fakeSocket) SetReadLimit(int64)              {}
func (f *fakeSocket) SetReadDeadline(time.Time) error { return nil }
func (f *fakeSocket) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeSocket) SetPongHandler(func(string) error) {}

var _ socket = (*fakeSocket)(nil)

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testCredential(userID string, userType auth.UserType) auth.UserCredential {
	return auth.UserCredential{
		ID:       userID,
		Email:    userID + "@example.com",
		UserType: userType,
	}
}

// newTestConn builds a connection whose emitted frames stay queued in the
// send buffer, where tests can inspect them without running the pumps.
func newTestConn(ns *namespace, userID string, userType auth.UserType) *Conn {
	return newConn(ns, newFakeSocket(), testCredential(userID, userType))
}

// drainFrames empties the connection's send buffer and decodes each frame.
func drainFrames(t *testing.T, conn *Conn) []Frame {
	t.Helper()

	var frames []Frame
	for {
		select {
		case raw, ok := <-conn.send:
			if !ok {
				return frames
			}
			var frame Frame
			require.NoError(t, json.Unmarshal(raw, &frame))
			frames = append(frames, frame)
		default:
			return frames
		}
	}
}

// framesByEvent indexes drained frames by event name, keeping the last frame
// per event.
func framesByEvent(frames []Frame) map[string]Frame {
	indexed := make(map[string]Frame, len(frames))
	for _, frame := range frames {
		indexed[frame.Event] = frame
	}
	return indexed
}

func eventNames(frames []Frame) []string {
	names := make([]string, 0, len(frames))
	for _, frame := range frames {
		names = append(names, frame.Event)
	}
	return names
}

func decodeData(t *testing.T, frame Frame, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(frame.Data, out))
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
