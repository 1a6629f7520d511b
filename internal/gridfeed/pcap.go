package gridfeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ReplayConfig configures a capture replay.
type ReplayConfig struct {
	// Port selects UDP datagrams by destination port; zero accepts all.
	Port int
	// SpeedMultiplier paces delivery by capture timestamps (1.0 = real
	// time, 2.0 = twice as fast). Zero or negative delivers as fast as
	// possible.
	SpeedMultiplier float64
	Sink            Sink
}

// ReplayFile replays the grid datagrams of a pcap file into cfg.Sink.
func ReplayFile(ctx context.Context, path string, cfg ReplayConfig) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	defer f.Close()
	return Replay(ctx, f, cfg)
}

// Replay reads a pcap stream and delivers each matching UDP payload as a
// grid. It returns the counters when the stream ends or ctx is done.
func Replay(ctx context.Context, r io.Reader, cfg ReplayConfig) (Snapshot, error) {
	var stats Stats
	if cfg.Sink == nil {
		return stats.Snapshot(), errors.New("gridfeed: replay has no sink")
	}
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return stats.Snapshot(), fmt.Errorf("failed to read PCAP header: %w", err)
	}

	source := gopacket.NewPacketSource(reader, reader.LinkType())
	start := time.Now()
	var lastStamp time.Time

	for {
		packet, err := source.NextPacket()
		if errors.Is(err, io.EOF) {
			s := stats.Snapshot()
			logf("replay complete: %d packets, %d grids in %v", s.Packets, s.Grids, time.Since(start))
			return s, nil
		}
		if err != nil {
			logf("skipping unreadable packet: %v", err)
			if ctx.Err() != nil {
				return stats.Snapshot(), ctx.Err()
			}
			continue
		}

		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if cfg.Port != 0 && int(udp.DstPort) != cfg.Port {
			continue
		}

		if cfg.SpeedMultiplier > 0 {
			stamp := packet.Metadata().Timestamp
			if delay := stamp.Sub(lastStamp); !lastStamp.IsZero() && delay > 0 {
				wait := time.NewTimer(time.Duration(float64(delay) / cfg.SpeedMultiplier))
				select {
				case <-ctx.Done():
					wait.Stop()
					return stats.Snapshot(), ctx.Err()
				case <-wait.C:
				}
			}
			lastStamp = stamp
		}

		if err := ctx.Err(); err != nil {
			logf("replay stopping: %v", err)
			return stats.Snapshot(), err
		}
		if err := stats.deliver(udp.Payload, cfg.Sink); err != nil {
			logf("dropping packet %d: %v", stats.Packets.Load(), err)
		}
	}
}
