// Command lama-map serves the descriptor map and the dissimilarity service
// the jockey talks to.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/lj-costmap/internal/config"
	"github.com/banshee-data/lj-costmap/internal/dissim"
	"github.com/banshee-data/lj-costmap/internal/mapstore"
	"github.com/banshee-data/lj-costmap/internal/rpc"
	"github.com/banshee-data/lj-costmap/internal/version"
)

var (
	configFile = flag.String("config", config.DefaultConfigPath, "Path to the JSON jockey configuration (service names, bins)")
	dbPath     = flag.String("db", "lama_map.db", "Path to the sqlite map database")
	listen     = flag.String("listen", ":50061", "gRPC listen address")
	adminAddr  = flag.String("admin", "localhost:8083", "Admin HTTP listen address (empty disables)")
	showVer    = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println(version.String())
		return
	}
	log.Printf("lama-map %s", version.String())

	cfg, err := config.LoadJockeyConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := mapstore.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open map database: %v", err)
	}
	defer store.Close()

	server := rpc.NewServer()
	server.RegisterService(&rpc.MapServiceDesc, rpc.NewStoreServer(store))
	server.RegisterService(
		rpc.NewDissimilarityServiceDesc(cfg.GetLocalizeService(), cfg.GetDissimilarityServerName()),
		rpc.NewScoringServer(dissim.NewService(store, dissim.RangeRMS{Bins: cfg.GetDissimilarityBins()})),
	)
	if err := server.Listen(*listen); err != nil {
		log.Fatalf("failed to start gRPC server: %v", err)
	}
	defer server.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if *adminAddr != "" {
		mux := http.NewServeMux()
		if err := store.AttachAdminRoutes(mux); err != nil {
			log.Fatalf("failed to attach admin routes: %v", err)
		}
		admin := &http.Server{Addr: *adminAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		wg.Add(1)
		go func() {
			defer wg.Done()
			go func() {
				if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Printf("admin server failed: %v", err)
				}
			}()
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := admin.Shutdown(shutdownCtx); err != nil {
				log.Printf("admin server shutdown error: %v", err)
			}
		}()
	}

	ifaces, descs, err := store.Stats(ctx)
	if err != nil {
		log.Printf("failed to read map stats: %v", err)
	}
	log.Printf("map %s ready: %d interfaces, %d descriptors", store.Path(), ifaces, descs)

	<-ctx.Done()
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
