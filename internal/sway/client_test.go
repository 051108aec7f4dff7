package sway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeServer answers requests on one end of a pipe.
type fakeServer struct {
	t    *testing.T
	conn net.Conn
}

func newPipeClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	t.Cleanup(func() {
		clientSide.Close()
		serverSide.Close()
	})
	return &Client{path: "pipe", conn: clientSide}, &fakeServer{t: t, conn: serverSide}
}

// expect reads one request and replies with payload, in the background.
func (s *fakeServer) expect(wantType uint32, wantPayload string, reply string) <-chan error {
	errc := make(chan error, 1)
	go func() {
		msgType, payload, err := readMessage(s.conn)
		if err != nil {
			errc <- err
			return
		}
		if msgType != wantType {
			errc <- errors.New("unexpected request type")
			return
		}
		if string(payload) != wantPayload {
			errc <- errors.New("unexpected payload: " + string(payload))
			return
		}
		errc <- writeMessage(s.conn, msgType, []byte(reply))
	}()
	return errc
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeMessage(&buf, msgGetTree, []byte(`{"id":1}`)); err != nil {
		t.Fatalf("writeMessage: %v", err)
	}
	if got := buf.Len(); got != headerLen+8 {
		t.Fatalf("frame length = %d", got)
	}
	msgType, payload, err := readMessage(&buf)
	if err != nil {
		t.Fatalf("readMessage: %v", err)
	}
	if msgType != msgGetTree || string(payload) != `{"id":1}` {
		t.Fatalf("got type %d payload %q", msgType, payload)
	}
}

func TestReadMessageRejectsBadMagic(t *testing.T) {
	raw := append([]byte("i3-ipX"), make([]byte, 8)...)
	if _, _, err := readMessage(bytes.NewReader(raw)); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("err = %v, want ErrBadMagic", err)
	}
}

func TestReadMessageTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := writeMessage(&buf, msgRunCommand, []byte("abcdef")); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()-2]
	if _, _, err := readMessage(bytes.NewReader(truncated)); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want unexpected EOF", err)
	}
}

func TestRunCommand(t *testing.T) {
	client, server := newPipeClient(t)

	done := server.expect(msgRunCommand, "[con_id=3] focus", `[{"success":true}]`)
	if err := client.RunCommand(testContext(t), "[con_id=3] focus"); err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("server: %v", err)
	}
}

func TestRunCommandFailure(t *testing.T) {
	client, server := newPipeClient(t)

	done := server.expect(msgRunCommand, "nonsense", `[{"success":false,"parse_error":true,"error":"Unknown/invalid command"}]`)
	err := client.RunCommand(testContext(t), "nonsense")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("err = %v, want *CommandError", err)
	}
	if cmdErr.Command != "nonsense" || cmdErr.Message != "Unknown/invalid command" {
		t.Fatalf("unexpected error %+v", cmdErr)
	}
	if err := <-done; err != nil {
		t.Fatalf("server: %v", err)
	}
}

func TestGetTree(t *testing.T) {
	client, server := newPipeClient(t)

	tree := `{"id":1,"type":"root","nodes":[{"id":2,"type":"output","nodes":[{"id":3,"type":"workspace",
		"nodes":[{"id":10,"type":"con","app_id":"foot","nodes":[]}],
		"floating_nodes":[{"id":11,"type":"floating_con","app_id":null,"window":4194307,
			"window_properties":{"class":"Steam"},"nodes":[]}]}]}]}`
	done := server.expect(msgGetTree, "", tree)
	root, err := client.GetTree(testContext(t))
	if err != nil {
		t.Fatalf("GetTree: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("server: %v", err)
	}

	var windows []*Node
	root.Walk(func(n *Node) {
		if n.IsWindow() {
			windows = append(windows, n)
		}
	})
	if len(windows) != 2 {
		t.Fatalf("found %d windows, want 2", len(windows))
	}
	if windows[0].AppIDValue() != "foot" {
		t.Fatalf("first window app_id = %q", windows[0].AppIDValue())
	}
	if windows[1].ClassValue() != "Steam" || windows[1].AppIDValue() != "" {
		t.Fatalf("second window = %+v", windows[1])
	}
	if w, ok := windows[1].X11Window(); !ok || w != 4194307 {
		t.Fatalf("X11Window = %d, %v", w, ok)
	}
}

func TestSubscribeStream(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer serverSide.Close()

	go func() {
		msgType, payload, err := readMessage(serverSide)
		if err != nil || msgType != msgSubscribe || string(payload) != `["window"]` {
			serverSide.Close()
			return
		}
		writeMessage(serverSide, msgSubscribe, []byte(`{"success":true}`))
		writeMessage(serverSide, eventBit|3, []byte(`{"change":"focus","container":{"id":5}}`))
		serverSide.Close()
	}()

	stream, err := subscribeConn(clientSide, []EventType{EventWindow})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stream.Close()

	ctx := testContext(t)
	ev, err := stream.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Type != EventWindow {
		t.Fatalf("event type = %q", ev.Type)
	}
	if _, err := stream.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("second Next err = %v, want EOF", err)
	}
}

func TestSubscribeRejected(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	go func() {
		readMessage(serverSide)
		writeMessage(serverSide, msgSubscribe, []byte(`{"success":false}`))
	}()

	if _, err := subscribeConn(clientSide, []EventType{EventWindow}); err == nil {
		t.Fatal("expected rejected subscription to fail")
	}
}

// slowSocket serves command requests on a unix socket. The "first" command
// is answered late, after the client has given up on it.
func slowSocket(t *testing.T) (path string, accepts <-chan struct{}) {
	t.Helper()
	dir, err := os.MkdirTemp("", "sway")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path = filepath.Join(dir, "ipc.sock")

	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	accepted := make(chan struct{}, 8)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- struct{}{}
			go func() {
				defer conn.Close()
				for {
					_, payload, err := readMessage(conn)
					if err != nil {
						return
					}
					reply := `[{"success":true}]`
					if string(payload) == "first" {
						time.Sleep(150 * time.Millisecond)
						reply = `[{"success":false,"error":"late reply for first"}]`
					}
					if err := writeMessage(conn, msgRunCommand, []byte(reply)); err != nil {
						return
					}
				}
			}()
		}
	}()
	return path, accepted
}

func TestTimedOutRequestDoesNotShiftReplies(t *testing.T) {
	path, accepts := slowSocket(t)
	c, err := Dial(testContext(t), path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.RunCommand(short, "first"); err == nil {
		t.Fatal("first command beat its deadline")
	}

	if err := c.RunCommand(testContext(t), "second"); err != nil {
		t.Fatalf("second command got %v", err)
	}
	if err := c.RunCommand(testContext(t), "third"); err != nil {
		t.Fatalf("third command got %v", err)
	}

	if n := len(accepts); n != 2 {
		t.Fatalf("server accepted %d connections, want 2", n)
	}
}
