// Package sway speaks the i3/sway IPC protocol over the compositor's unix
// socket.
package sway

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Message types
const (
	msgRunCommand uint32 = 0
	msgSubscribe  uint32 = 2
	msgGetTree    uint32 = 4
	msgGetVersion uint32 = 7
)

// eventBit is set on the type field of every event message.
const eventBit uint32 = 1 << 31

// EventType is an IPC event type as used in subscribe payloads.
type EventType string

const (
	EventWorkspace EventType = "workspace"
	EventWindow    EventType = "window"
	EventBinding   EventType = "binding"
	EventShutdown  EventType = "shutdown"
)

var eventCodes = map[uint32]EventType{
	eventBit | 0: EventWorkspace,
	eventBit | 3: EventWindow,
	eventBit | 5: EventBinding,
	eventBit | 6: EventShutdown,
}

var ipcMagic = []byte("i3-ipc")

const headerLen = 14

// maxPayload bounds a single message; full trees of busy sessions stay
// well under this.
const maxPayload = 64 << 20

var (
	// ErrBadMagic is returned when a reply does not start with "i3-ipc".
	ErrBadMagic = errors.New("sway: bad magic in ipc header")
	// ErrNoSocket is returned when neither SWAYSOCK nor I3SOCK is set.
	ErrNoSocket = errors.New("sway: SWAYSOCK and I3SOCK not set")
)

// SocketPath returns the IPC socket path from the environment.
func SocketPath() (string, error) {
	if sock := os.Getenv("SWAYSOCK"); sock != "" {
		return sock, nil
	}
	if sock := os.Getenv("I3SOCK"); sock != "" {
		return sock, nil
	}
	return "", ErrNoSocket
}

// writeMessage frames payload as magic + length + type + payload.
func writeMessage(w io.Writer, msgType uint32, payload []byte) error {
	msg := make([]byte, headerLen+len(payload))
	copy(msg[0:6], ipcMagic)
	binary.LittleEndian.PutUint32(msg[6:10], uint32(len(payload)))
	binary.LittleEndian.PutUint32(msg[10:14], msgType)
	copy(msg[headerLen:], payload)
	_, err := w.Write(msg)
	return err
}

// readMessage reads one framed message. Short reads are retried through
// io.ReadFull so large trees arrive whole.
func readMessage(r io.Reader) (uint32, []byte, error) {
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	if string(header[0:6]) != string(ipcMagic) {
		return 0, nil, ErrBadMagic
	}
	size := binary.LittleEndian.Uint32(header[6:10])
	msgType := binary.LittleEndian.Uint32(header[10:14])
	if size > maxPayload {
		return 0, nil, fmt.Errorf("sway: payload of %d bytes exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("sway: read payload: %w", err)
	}
	return msgType, payload, nil
}
