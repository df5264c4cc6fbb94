package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// ErrMalformedMessage is returned by ReadEnvelope when a frame is not JSON.
var ErrMalformedMessage = errors.New("malformed message")

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, code, msg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Code:  code,
		Error: msg,
	})
}

// ReadEnvelope reads one message and peeks at its action. The raw message is
// kept for Decode.
func ReadEnvelope(conn *websocket.Conn) (*RequestEnvelope, error) {
	conn.SetReadDeadline(time.Now().Add(readWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	env := &RequestEnvelope{Raw: data}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return env, nil
}

// Decode parses the full message behind env into v.
func (env *RequestEnvelope) Decode(v any) error {
	return json.Unmarshal(env.Raw, v)
}
