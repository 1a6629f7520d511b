// Package gridfeed delivers occupancy grids from the sensor side into the
// jockey, either live over UDP or replayed from a packet capture.
package gridfeed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/banshee-data/lj-costmap/internal/costmap"
	"github.com/banshee-data/lj-costmap/internal/monitoring"
)

var logf = monitoring.Tagged("gridfeed")

// readTimeout bounds each blocking read so cancellation is noticed.
const readTimeout = 100 * time.Millisecond

// Sink receives decoded grids. jockey.SnapshotStore satisfies it.
type Sink interface {
	Submit(g *costmap.Grid)
}

// Stats counts datagrams seen by a listener or a replay.
type Stats struct {
	Packets  atomic.Uint64
	Bytes    atomic.Uint64
	Grids    atomic.Uint64
	Rejected atomic.Uint64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Packets  uint64 `json:"packets"`
	Bytes    uint64 `json:"bytes"`
	Grids    uint64 `json:"grids"`
	Rejected uint64 `json:"rejected"`
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Packets:  s.Packets.Load(),
		Bytes:    s.Bytes.Load(),
		Grids:    s.Grids.Load(),
		Rejected: s.Rejected.Load(),
	}
}

// deliver decodes one payload and hands the grid to sink.
func (s *Stats) deliver(payload []byte, sink Sink) error {
	s.Packets.Add(1)
	s.Bytes.Add(uint64(len(payload)))
	g, err := costmap.Decode(payload)
	if err != nil {
		s.Rejected.Add(1)
		return err
	}
	s.Grids.Add(1)
	sink.Submit(g)
	return nil
}

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Sink        Sink
	Factory     SocketFactory
}

// Listener receives one grid per UDP datagram.
type Listener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	sink        Sink
	factory     SocketFactory
	stats       Stats

	bound atomic.Pointer[net.UDPAddr]
}

// NewListener creates a listener; a zero LogInterval means one minute.
func NewListener(cfg ListenerConfig) *Listener {
	l := &Listener{
		address:     cfg.Address,
		rcvBuf:      cfg.RcvBuf,
		logInterval: cfg.LogInterval,
		sink:        cfg.Sink,
		factory:     cfg.Factory,
	}
	if l.logInterval == 0 {
		l.logInterval = time.Minute
	}
	if l.factory == nil {
		l.factory = NetFactory()
	}
	return l
}

// Stats exposes the listener counters.
func (l *Listener) Stats() *Stats { return &l.stats }

// Addr is the bound address once Start has opened the socket.
func (l *Listener) Addr() *net.UDPAddr { return l.bound.Load() }

// Start receives datagrams until ctx is done. Malformed datagrams are
// counted and dropped.
func (l *Listener) Start(ctx context.Context) error {
	if l.sink == nil {
		return errors.New("gridfeed: listener has no sink")
	}
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", l.address, err)
	}
	conn, err := l.factory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP %s: %w", l.address, err)
	}
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			logf("failed to set receive buffer to %d: %v", l.rcvBuf, err)
		}
	}
	if ua, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		l.bound.Store(ua)
	}
	logf("listening for grids on %s", conn.LocalAddr())

	go l.logStats(ctx)

	buf := make([]byte, costmap.MaxDatagram)
	for {
		if err := ctx.Err(); err != nil {
			logf("listener stopping: %v", err)
			return err
		}
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read grid datagram: %w", err)
		}
		if err := l.stats.deliver(buf[:n], l.sink); err != nil {
			logf("dropping datagram from %v: %v", from, err)
		}
	}
}

func (l *Listener) logStats(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := l.stats.Snapshot()
			logf("packets=%d bytes=%d grids=%d rejected=%d", s.Packets, s.Bytes, s.Grids, s.Rejected)
		}
	}
}
