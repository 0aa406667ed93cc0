package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/logger"
	"fieldsync/internal/metrics"
	"fieldsync/internal/room"
	"fieldsync/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default $FIELDSYNC_CONFIG or fieldsync.yaml)")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		logger.Log.Error("config_error", "error", err)
		os.Exit(1)
	}
	if err := logger.Configure(os.Stdout, conf.Log.Level); err != nil {
		logger.Log.Error("config_error", "error", err)
		os.Exit(1)
	}

	roomManager := room.NewManager(nil)
	hub := ws.NewHub(roomManager)
	roomManager.SetDropCallback(hub.DropClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		rooms, peers := roomManager.Stats()
		metrics.SetActiveRooms(rooms)
		metrics.SetActivePeers(peers)
		metrics.Handler(w, r)
	})
	mux.HandleFunc("/ws", hub.Handler(ctx))

	server := &http.Server{Addr: conf.Server.Addr, Handler: mux}

	go func() {
		logger.Log.Info("server_listening", "addr", conf.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("server_error", "error", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	<-hub.Done()
	roomManager.Shutdown(shutdownCtx)
	logger.Log.Info("server_stopped")
}
