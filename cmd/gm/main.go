// Command gm runs the privileged authority client. It joins the hub as a
// GM, hosts the authoritative scene/actor state in memory, applies every
// mutation routed to it and snapshots state on exit.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"lootstash.gg/internal/actors"
	"lootstash.gg/internal/persistence/journal"
	"lootstash.gg/internal/persistence/snapshot"
	"lootstash.gg/internal/relay"
	"lootstash.gg/internal/scene"
	"lootstash.gg/internal/transport/ws"
	"lootstash.gg/internal/tuning"
)

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "hub ws url")
		name      = flag.String("name", "gm", "user name")
		userID    = flag.String("user", "", "resume an existing user id")
		configDir = flag.String("configs", "./configs", "config directory")
		dataDir   = flag.String("data", "./data", "runtime data directory")
		snapPath  = flag.String("snapshot", "", "scene snapshot path (default: <data>/scene.snap.zst)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[gm] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(filepath.Join(*configDir, "tuning.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	path := *snapPath
	if path == "" {
		path = filepath.Join(*dataDir, "scene.snap.zst")
	}

	sc, store := loadState(path, tune.GridSize, logger)

	client, err := ws.Dial(ws.DialConfig{URL: *url, Name: *name, GM: true, UserID: *userID, Log: logger})
	if err != nil {
		logger.Fatalf("dial hub: %v", err)
	}
	defer client.Close()
	logger.Printf("joined as %s", client.UserID())

	var jrnl *journal.Journal
	if tune.Journal.Enabled {
		jrnl = journal.New(filepath.Join(*dataDir, "applied"), "applied")
		defer jrnl.Close()
	}

	r := relay.New(relay.Config{
		UserID:  client.UserID(),
		Users:   client.Users,
		Channel: client,
		Scene:   sc,
		Actors:  store,
		Journal: jrnl,
		Log:     logger,
	})
	cancel := client.Subscribe(r.HandleEnvelope)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Printf("interrupted")
	case <-client.Done():
		logger.Printf("hub connection closed")
	}

	snap := snapshot.SnapshotV1{
		GridSize: sc.GridSize(),
		Tokens:   sc.Placeables(),
		Actors:   store.All(),
	}
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		logger.Fatalf("write snapshot: %v", err)
	}
	logger.Printf("snapshot saved to %s (%d tokens, %d actors)", path, len(snap.Tokens), len(snap.Actors))
}

func loadState(path string, gridSize float64, logger *log.Logger) (*scene.Scene, *actors.Store) {
	store := actors.NewStore()

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("read snapshot: %v", err)
		}
		logger.Printf("no snapshot at %s; starting fresh", path)
		return scene.New(gridSize), store
	}

	if snap.GridSize > 0 {
		gridSize = snap.GridSize
	}
	sc := scene.New(gridSize)
	for _, tok := range snap.Tokens {
		if _, err := sc.CreateToken(tok); err != nil {
			logger.Fatalf("restore token %s: %v", tok.ID, err)
		}
	}
	for _, a := range snap.Actors {
		if _, err := store.AddActor(a); err != nil {
			logger.Fatalf("restore actor %s: %v", a.ID, err)
		}
	}
	logger.Printf("restored %d tokens, %d actors from %s", len(snap.Tokens), len(snap.Actors), path)
	return sc, store
}
