package broadcast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"github.com/graybiralo/SyncGuardian/internal/protocol"
)

type tcpTransport struct {
	conn   net.Conn
	reader *protocol.Reader
}

func newTCPTransport(conn net.Conn, maxFrame int) *tcpTransport {
	return &tcpTransport{conn: conn, reader: protocol.NewReader(conn, maxFrame)}
}

func (t *tcpTransport) ReadMessage() (protocol.Message, error) {
	return t.reader.Next()
}

func (t *tcpTransport) WriteFrame(frame []byte) error {
	_, err := t.conn.Write(frame)
	return err
}

func (t *tcpTransport) SetWriteDeadline(d time.Time) error { return t.conn.SetWriteDeadline(d) }
func (t *tcpTransport) Close() error                       { return t.conn.Close() }
func (t *tcpTransport) RemoteAddr() string                 { return t.conn.RemoteAddr().String() }
func (t *tcpTransport) Kind() string                       { return "tcp" }

// wsTransport carries the same messages over WebSocket, one JSON object per
// text message.
type wsTransport struct {
	conn       *websocket.Conn
	remoteAddr string
}

func newWSTransport(conn *websocket.Conn, remoteAddr string) *wsTransport {
	return &wsTransport{conn: conn, remoteAddr: remoteAddr}
}

func (t *wsTransport) ReadMessage() (protocol.Message, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			return protocol.Message{}, io.EOF
		}
		return protocol.Message{}, err
	}
	var m protocol.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return protocol.Message{}, fmt.Errorf("%w: %v", protocol.ErrMalformedFrame, err)
	}
	return m, nil
}

func (t *wsTransport) WriteFrame(frame []byte) error {
	return t.conn.WriteMessage(websocket.TextMessage, bytes.TrimSuffix(frame, []byte("\n")))
}

func (t *wsTransport) SetWriteDeadline(d time.Time) error { return t.conn.SetWriteDeadline(d) }
func (t *wsTransport) Close() error                       { return t.conn.Close() }
func (t *wsTransport) RemoteAddr() string                 { return t.remoteAddr }
func (t *wsTransport) Kind() string                       { return "websocket" }
