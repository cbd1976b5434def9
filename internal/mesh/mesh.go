// Package mesh relays step activity to peer nodes over WebSocket. Delivery
// is best effort: a peer that cannot be reached is skipped and dialed again
// after RetryInterval.
package mesh

import (
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultPort is the port peers listen on when an address names none.
	DefaultPort = 8765

	// RetryInterval is how long an unreachable peer is left alone.
	RetryInterval = 2 * time.Second

	writeWait = time.Second
)

// Message is the JSON frame sent once per tick.
type Message struct {
	Type     string `json:"type"`
	Step     int    `json:"step"`
	Activity []bool `json:"activity"`
}

// PeerURL turns "host", "host:port" or a full ws:// URL into a dial URL.
func PeerURL(addr string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return "ws://" + addr
	}
	return "ws://" + net.JoinHostPort(addr, strconv.Itoa(DefaultPort))
}

type peer struct {
	url     string
	conn    *websocket.Conn
	retryAt time.Time
	failing bool
}

// Broadcaster fans step messages out to its peers. Step blocks on the
// network and belongs on a notification goroutine.
type Broadcaster struct {
	mu     sync.Mutex
	peers  []*peer
	dialer *websocket.Dialer
	logger *log.Logger
	retry  time.Duration
	now    func() time.Time
}

func New(addrs []string, logger *log.Logger) *Broadcaster {
	b := &Broadcaster{
		dialer: &websocket.Dialer{HandshakeTimeout: writeWait},
		logger: logger,
		retry:  RetryInterval,
		now:    time.Now,
	}
	for _, a := range addrs {
		b.AddPeer(a)
	}
	return b
}

// AddPeer registers addr. Duplicates are ignored. The connection is opened
// by the next Step.
func (b *Broadcaster) AddPeer(addr string) {
	u := PeerURL(addr)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.peers {
		if p.url == u {
			return
		}
	}
	b.peers = append(b.peers, &peer{url: u})
}

// RemovePeer disconnects and forgets addr.
func (b *Broadcaster) RemovePeer(addr string) {
	u := PeerURL(addr)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.peers {
		if p.url == u {
			p.close()
			b.peers = append(b.peers[:i], b.peers[i+1:]...)
			return
		}
	}
}

// Peers returns the dial URLs of all peers.
func (b *Broadcaster) Peers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.peers))
	for i, p := range b.peers {
		out[i] = p.url
	}
	return out
}

// Online reports how many peers currently hold an open connection.
func (b *Broadcaster) Online() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.peers {
		if p.conn != nil {
			n++
		}
	}
	return n
}

// Step sends one STEP message to every reachable peer.
func (b *Broadcaster) Step(step int, fired []bool) {
	msg := Message{Type: "STEP", Step: step, Activity: fired}
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	for _, p := range b.peers {
		if p.conn == nil {
			if now.Before(p.retryAt) {
				continue
			}
			if err := b.dial(p); err != nil {
				b.fail(p, now, err)
				continue
			}
		}
		p.conn.SetWriteDeadline(now.Add(writeWait))
		if err := p.conn.WriteJSON(msg); err != nil {
			b.fail(p, now, err)
		}
	}
}

func (b *Broadcaster) dial(p *peer) error {
	conn, _, err := b.dialer.Dial(p.url, nil)
	if err != nil {
		return err
	}
	p.conn = conn
	p.failing = false
	b.logger.Printf("mesh: linked %s", p.url)
	go discard(conn)
	return nil
}

// fail drops the connection and logs the first failure of a streak.
func (b *Broadcaster) fail(p *peer, now time.Time, err error) {
	p.close()
	p.retryAt = now.Add(b.retry)
	if !p.failing {
		p.failing = true
		b.logger.Printf("mesh: %s unreachable: %v", p.url, err)
	}
}

func (p *peer) close() {
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// discard consumes inbound frames so control messages are answered.
// Telemetry sent back by peers is not used.
func discard(conn *websocket.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// Close disconnects every peer.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.peers {
		p.close()
	}
	return nil
}
