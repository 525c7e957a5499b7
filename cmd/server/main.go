package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"lootstash.gg/internal/catalogs"
	"lootstash.gg/internal/persistence/indexdb"
	"lootstash.gg/internal/persistence/journal"
	"lootstash.gg/internal/transport/ws"
	"lootstash.gg/internal/tuning"
)

func main() {
	var (
		addr      = flag.String("addr", ":8080", "http listen address")
		configDir = flag.String("configs", "./configs", "config directory")
		dataDir   = flag.String("data", "./data", "runtime data directory")
		disableDB = flag.Bool("disable_db", false, "disable the sqlite audit index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[hub] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(filepath.Join(*configDir, "tuning.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", filepath.Join(*configDir, "tuning.yaml"))
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	logger.Printf("item catalog: %d items digest=%s", len(cats.IDs), cats.Digest)

	var (
		audits   []ws.EnvelopeSink
		presence []ws.PresenceSink
	)

	var jrnl *journal.Journal
	if tune.Journal.Enabled {
		jrnl = journal.New(filepath.Join(*dataDir, "mutations"), "mutations")
		defer jrnl.Close()
		audits = append(audits, jrnl)
	}

	if !*disableDB {
		idx, err := indexdb.Open(*dataDir)
		if err != nil {
			logger.Fatalf("open index backend: %v", err)
		}
		defer idx.Close()
		audits = append(audits, idx)
		presence = append(presence, idx)
	}

	hub := ws.NewHub(ws.HubConfig{
		MaxQueue: tune.Hub.MaxQueue,
		Audits:   audits,
		Presence: presence,
		Log:      logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", hub.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/catalog", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(struct {
			Digest string   `json:"digest"`
			IDs    []string `json:"ids"`
		}{Digest: cats.Digest, IDs: cats.IDs})
	})

	srv := &http.Server{Addr: *addr, Handler: mux}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("serve: %v", err)
		}
	}()

	<-stop
	logger.Printf("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
