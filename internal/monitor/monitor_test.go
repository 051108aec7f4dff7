package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/gyara/changeup/internal/identity"
	"github.com/gyara/changeup/internal/state"
	"github.com/gyara/changeup/internal/sway"
)

type fakeStream struct {
	events []sway.Event
	end    error
	closed bool
}

func (s *fakeStream) Next(ctx context.Context) (sway.Event, error) {
	if len(s.events) == 0 {
		return sway.Event{}, s.end
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeConn struct {
	tree    *sway.Node
	treeErr error
	stream  *fakeStream
	kinds   []sway.EventType
}

func (c *fakeConn) GetTree(context.Context) (*sway.Node, error) {
	return c.tree, c.treeErr
}

func (c *fakeConn) Subscribe(_ context.Context, kinds ...sway.EventType) (sway.Stream, error) {
	c.kinds = kinds
	return c.stream, nil
}

type classMap map[uint32]string

func (m classMap) Class(w uint32) (string, bool) {
	c, ok := m[w]
	return c, ok
}

func strp(s string) *string { return &s }

func u32p(v uint32) *uint32 { return &v }

func windowEvent(t *testing.T, change sway.WindowChange, n *sway.Node) sway.Event {
	t.Helper()
	payload, err := json.Marshal(sway.WindowEvent{Change: change, Container: n})
	if err != nil {
		t.Fatal(err)
	}
	return sway.Event{Type: sway.EventWindow, Payload: payload}
}

func testTree() *sway.Node {
	return &sway.Node{
		ID:   1000,
		Type: sway.NodeRoot,
		Nodes: []*sway.Node{{
			ID:   1001,
			Type: sway.NodeOutput,
			Nodes: []*sway.Node{{
				ID:   1002,
				Type: sway.NodeWorkspace,
				Nodes: []*sway.Node{
					{ID: 1, Type: sway.NodeCon, AppID: strp("term")},
					{ID: 5, Type: sway.NodeCon, WindowProperties: &sway.WindowProperties{Class: "Steam"}},
					{ID: 6, Type: sway.NodeCon},
				},
				FloatingNodes: []*sway.Node{
					{ID: 7, Type: sway.NodeFloatingCon, Window: u32p(0x1200007)},
				},
			}},
		}},
	}
}

func TestRunScenario(t *testing.T) {
	stream := &fakeStream{end: io.EOF}
	conn := &fakeConn{tree: testTree(), stream: stream}
	st := state.New()

	stream.events = []sway.Event{
		windowEvent(t, sway.WindowFocus, &sway.Node{ID: 1}),
		windowEvent(t, sway.WindowNew, &sway.Node{ID: 2, AppID: strp("browser")}),
		windowEvent(t, sway.WindowTitle, &sway.Node{ID: 2}),
		windowEvent(t, sway.WindowFocus, &sway.Node{ID: 2}),
		windowEvent(t, sway.WindowFocus, &sway.Node{ID: 1}),
	}

	err := New(conn, st).Run(context.Background())
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("Run = %v, want ErrStreamClosed", err)
	}
	if !stream.closed {
		t.Fatal("stream not closed")
	}
	if !reflect.DeepEqual(conn.kinds, []sway.EventType{sway.EventWindow}) {
		t.Fatalf("subscribed to %v", conn.kinds)
	}

	last, ok := st.LastViewed()
	if !ok || last != 2 {
		t.Fatalf("last = %d, %v; want 2", last, ok)
	}
	now, ok := st.NowOn()
	if !ok || now != 1 {
		t.Fatalf("nowOn = %d, %v; want 1", now, ok)
	}

	snap := st.Snapshot()
	want := map[string][]identity.Handle{
		"term":        {1},
		"browser":     {2},
		"class:Steam": {5},
	}
	if !reflect.DeepEqual(snap.Index, want) {
		t.Fatalf("index = %v, want %v", snap.Index, want)
	}
}

func TestScanUsesClassResolver(t *testing.T) {
	conn := &fakeConn{tree: testTree()}
	st := state.New()
	m := New(conn, st, WithClassResolver(classMap{0x1200007: "Gimp"}))

	if err := m.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := st.Snapshot().Index["class:Gimp"]; !reflect.DeepEqual(got, []identity.Handle{7}) {
		t.Fatalf("class:Gimp = %v", got)
	}
}

func TestScanFailureIsFatal(t *testing.T) {
	conn := &fakeConn{treeErr: errors.New("broken pipe")}
	if err := New(conn, state.New()).Run(context.Background()); err == nil {
		t.Fatal("Run succeeded with failing tree scan")
	}
}

func TestCloseRemovesFromIndexAndHistory(t *testing.T) {
	st := state.New()
	m := New(&fakeConn{}, st)

	apply := func(change sway.WindowChange, n *sway.Node) {
		t.Helper()
		payload, _ := json.Marshal(sway.WindowEvent{Change: change, Container: n})
		if err := m.Apply(payload); err != nil {
			t.Fatalf("Apply(%s): %v", change, err)
		}
	}
	apply(sway.WindowNew, &sway.Node{ID: 3, AppID: strp("foot")})
	apply(sway.WindowFocus, &sway.Node{ID: 3})
	apply(sway.WindowClose, &sway.Node{ID: 3, AppID: strp("foot")})
	apply(sway.WindowClose, &sway.Node{ID: 3})

	snap := st.Snapshot()
	if len(snap.Index) != 0 || len(snap.History) != 0 {
		t.Fatalf("state after close = %+v", snap)
	}
}

func TestMalformedEvents(t *testing.T) {
	m := New(&fakeConn{}, state.New())
	for name, payload := range map[string]string{
		"not json":     `{"change":`,
		"no container": `{"change":"focus"}`,
		"no id":        `{"change":"focus","container":{"app_id":"x"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			if err := m.Apply([]byte(payload)); !errors.Is(err, ErrMalformedEvent) {
				t.Fatalf("Apply = %v, want ErrMalformedEvent", err)
			}
		})
	}
}

func TestMalformedEventStopsRun(t *testing.T) {
	stream := &fakeStream{
		events: []sway.Event{{Type: sway.EventWindow, Payload: json.RawMessage(`[]`)}},
		end:    io.EOF,
	}
	err := New(&fakeConn{tree: &sway.Node{}, stream: stream}, state.New()).Run(context.Background())
	if !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("Run = %v, want ErrMalformedEvent", err)
	}
}

func TestTransportErrorStopsRun(t *testing.T) {
	stream := &fakeStream{end: errors.New("connection reset")}
	err := New(&fakeConn{tree: &sway.Node{}, stream: stream}, state.New()).Run(context.Background())
	if err == nil || errors.Is(err, ErrStreamClosed) {
		t.Fatalf("Run = %v, want transport error", err)
	}
}
