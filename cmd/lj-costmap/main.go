// Command lj-costmap runs the costmap localizing jockey: it receives
// occupancy grids, builds place descriptors on request, stores them in the
// map and scores them through the dissimilarity service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/banshee-data/lj-costmap/internal/config"
	"github.com/banshee-data/lj-costmap/internal/gridfeed"
	"github.com/banshee-data/lj-costmap/internal/jockey"
	"github.com/banshee-data/lj-costmap/internal/monitor"
	"github.com/banshee-data/lj-costmap/internal/rpc"
	"github.com/banshee-data/lj-costmap/internal/version"
)

var (
	configFile = flag.String("config", config.DefaultConfigPath, "Path to the JSON jockey configuration")
	listen     = flag.String("listen", ":50062", "gRPC listen address for the action surface")
	httpListen = flag.String("http", ":8082", "Monitor HTTP listen address (empty disables)")
	gridAddr   = flag.String("grid-udp", ":7447", "UDP address receiving grid datagrams")
	gridRcvBuf = flag.Int("grid-rcvbuf", 4<<20, "UDP receive buffer size in bytes")
	pcapFile   = flag.String("pcap", "", "Replay grids from this pcap file instead of listening on UDP")
	pcapSpeed  = flag.Float64("pcap-speed", 1.0, "Replay speed multiplier (0 = as fast as possible)")
	showVer    = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println(version.String())
		return
	}
	log.Printf("lj-costmap %s", version.String())

	cfg, err := config.LoadJockeyConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mapConn, err := rpc.Dial(cfg.GetMapAddress())
	if err != nil {
		log.Fatalf("failed to connect to map: %v", err)
	}
	defer mapConn.Close()
	dissimConn := mapConn
	if cfg.GetDissimilarityAddress() != cfg.GetMapAddress() {
		dissimConn, err = rpc.Dial(cfg.GetDissimilarityAddress())
		if err != nil {
			log.Fatalf("failed to connect to dissimilarity service: %v", err)
		}
		defer dissimConn.Close()
	}

	maps := jockey.NewMapInterfaceClient(rpc.NewMapClient(mapConn, cfg.GetCallTimeout()),
		cfg.GetPlaceProfileInterfaceName(), cfg.GetCrossingInterfaceName())
	if err := maps.RegisterInterfaces(ctx); err != nil {
		log.Fatalf("failed to register map interfaces: %v", err)
	}

	snaps := jockey.NewSnapshotStore(nil)
	ctrl := jockey.NewController(jockey.ControllerConfig{
		Name:    cfg.GetJockeyName(),
		Store:   snaps,
		Builder: jockey.NewDescriptorBuilder(cfg.Detector()),
		Map:     maps,
		Dissim: jockey.NewDissimilarityClient(
			rpc.NewDissimilarityClient(dissimConn, cfg.GetCallTimeout()),
			cfg.GetLocalizeService(), cfg.GetDissimilarityServerName(), maps.PlaceProfileInterface),
		Params:      cfg.DetectorOptions(),
		DataTimeout: cfg.GetDataTimeout(),
	})
	frame := jockey.NewFrame(ctrl)

	server := rpc.NewServer()
	server.RegisterService(&rpc.JockeyServiceDesc, rpc.NewFrameServer(frame))
	if err := server.Listen(*listen); err != nil {
		log.Fatalf("failed to start gRPC server: %v", err)
	}
	defer server.Stop()

	var wg sync.WaitGroup
	var feedStats *gridfeed.Stats

	if *pcapFile != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := gridfeed.ReplayFile(ctx, *pcapFile, gridfeed.ReplayConfig{
				Port:            udpPort(*gridAddr),
				SpeedMultiplier: *pcapSpeed,
				Sink:            snaps,
			})
			if err != nil && err != context.Canceled {
				log.Printf("pcap replay failed: %v", err)
			}
			log.Printf("pcap replay finished: %d grids", s.Grids)
		}()
	} else {
		listener := gridfeed.NewListener(gridfeed.ListenerConfig{
			Address: *gridAddr,
			RcvBuf:  *gridRcvBuf,
			Sink:    snaps,
		})
		feedStats = listener.Stats()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil && err != context.Canceled {
				log.Printf("grid listener failed: %v", err)
			}
		}()
	}

	if *httpListen != "" {
		ws := monitor.NewWebServer(monitor.WebServerConfig{
			Address: *httpListen,
			Jockey:  ctrl,
			Grids:   snaps,
			Feed:    feedStats,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Start(ctx); err != nil {
				log.Printf("monitor server failed: %v", err)
			}
		}()
	}

	log.Printf("jockey %s ready (profile=%s crossing=%s)", ctrl.Name(),
		maps.PlaceProfileInterface(), maps.CrossingInterface())

	<-ctx.Done()
	frame.Cancel()
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// udpPort extracts the port of addr for pcap filtering; zero accepts any.
func udpPort(addr string) int {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return 0
	}
	return p
}
