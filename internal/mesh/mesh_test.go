package mesh

import (
	"bytes"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestPeerURL(t *testing.T) {
	cases := map[string]string{
		"10.0.0.2":           "ws://10.0.0.2:8765",
		"node.local:9000":    "ws://node.local:9000",
		"ws://node.local:1/": "ws://node.local:1/",
	}
	for in, want := range cases {
		if got := PeerURL(in); got != want {
			t.Fatalf("PeerURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStepReachesPeer(t *testing.T) {
	got := make(chan Message, 4)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var m Message
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			got <- m
		}
	}))
	defer srv.Close()

	var logs bytes.Buffer
	b := New([]string{"ws://" + strings.TrimPrefix(srv.URL, "http://")}, log.New(&logs, "", 0))
	defer b.Close()

	b.Step(3, []bool{true, false, true})
	b.Step(4, []bool{false, false, false})

	for _, want := range []int{3, 4} {
		select {
		case m := <-got:
			if m.Type != "STEP" || m.Step != want || len(m.Activity) != 3 {
				t.Fatalf("message = %+v, want STEP %d with 3 entries", m, want)
			}
			if want == 3 && !(m.Activity[0] && !m.Activity[1] && m.Activity[2]) {
				t.Fatalf("activity = %v", m.Activity)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no message for step %d", want)
		}
	}
	if b.Online() != 1 {
		t.Fatalf("online = %d, want 1", b.Online())
	}
}

func TestUnreachablePeerRetriesLazily(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	var logs bytes.Buffer
	b := New([]string{addr}, log.New(&logs, "", 0))
	defer b.Close()
	now := time.Unix(100, 0)
	b.now = func() time.Time { return now }

	b.Step(0, nil)
	b.Step(1, nil)
	now = now.Add(RetryInterval + time.Millisecond)
	b.Step(2, nil)

	if n := strings.Count(logs.String(), "unreachable"); n != 1 {
		t.Fatalf("logged %d failures, want 1:\n%s", n, logs.String())
	}
	if b.Online() != 0 {
		t.Fatalf("online = %d, want 0", b.Online())
	}
}

func TestAddRemovePeer(t *testing.T) {
	b := New(nil, log.New(&bytes.Buffer{}, "", 0))
	b.AddPeer("a")
	b.AddPeer("a")
	b.AddPeer("b:1")
	if got := b.Peers(); len(got) != 2 {
		t.Fatalf("peers = %v", got)
	}
	b.RemovePeer("a")
	if got := b.Peers(); len(got) != 1 || got[0] != "ws://b:1" {
		t.Fatalf("peers = %v", got)
	}
}
