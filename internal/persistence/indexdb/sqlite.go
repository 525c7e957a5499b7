// Package indexdb keeps a sqlite audit index of relayed mutations and
// presence changes. Read-model only: nothing in the relay path depends on
// it, so writes happen on a single background goroutine and are dropped
// rather than ever blocking the channel.
package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"lootstash.gg/internal/protocol"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqMutation reqKind = iota + 1
	reqPresence
)

type req struct {
	kind reqKind

	mutation mutationRow
	presence presenceRow
}

type mutationRow struct {
	At     time.Time
	Sender string
	Kind   string
	Data   []byte
}

type presenceRow struct {
	At     time.Time
	UserID string
	Name   string
	GM     bool
	Active bool
}

const schema = `
CREATE TABLE IF NOT EXISTS mutations (
	seq    INTEGER PRIMARY KEY AUTOINCREMENT,
	at     TEXT NOT NULL,
	sender TEXT NOT NULL,
	kind   TEXT NOT NULL,
	data   BLOB
);
CREATE INDEX IF NOT EXISTS idx_mutations_kind ON mutations(kind);
CREATE TABLE IF NOT EXISTS presence (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	at      TEXT NOT NULL,
	user_id TEXT NOT NULL,
	name    TEXT NOT NULL,
	gm      INTEGER NOT NULL,
	active  INTEGER NOT NULL
);
`

func Open(dir string) (*SQLiteIndex, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "index.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	idx := &SQLiteIndex{
		db: db,
		ch: make(chan req, 1024),
	}
	idx.wg.Add(1)
	go idx.writer()
	return idx, nil
}

func (x *SQLiteIndex) Record(env protocol.Envelope) error {
	x.enqueue(req{kind: reqMutation, mutation: mutationRow{
		At:     time.Now().UTC(),
		Sender: env.Sender,
		Kind:   env.Kind,
		Data:   env.Data,
	}})
	return nil
}

func (x *SQLiteIndex) RecordPresence(userID, name string, gm, active bool) {
	x.enqueue(req{kind: reqPresence, presence: presenceRow{
		At:     time.Now().UTC(),
		UserID: userID,
		Name:   name,
		GM:     gm,
		Active: active,
	}})
}

// Dropped reports writes lost to backpressure since open.
func (x *SQLiteIndex) Dropped() uint64 { return x.dropped.Load() }

func (x *SQLiteIndex) enqueue(r req) {
	if x.closed.Load() {
		return
	}
	select {
	case x.ch <- r:
	default:
		x.dropped.Add(1)
	}
}

func (x *SQLiteIndex) writer() {
	defer x.wg.Done()
	for r := range x.ch {
		switch r.kind {
		case reqMutation:
			m := r.mutation
			_, _ = x.db.Exec(
				`INSERT INTO mutations(at, sender, kind, data) VALUES(?,?,?,?)`,
				m.At.Format(time.RFC3339Nano), m.Sender, m.Kind, m.Data,
			)
		case reqPresence:
			p := r.presence
			_, _ = x.db.Exec(
				`INSERT INTO presence(at, user_id, name, gm, active) VALUES(?,?,?,?,?)`,
				p.At.Format(time.RFC3339Nano), p.UserID, p.Name, boolInt(p.GM), boolInt(p.Active),
			)
		}
	}
}

// MutationCount is a read-model helper used by tests and the admin
// surface.
func (x *SQLiteIndex) MutationCount() (int, error) {
	var n int
	err := x.db.QueryRow(`SELECT COUNT(*) FROM mutations`).Scan(&n)
	return n, err
}

// Close drains pending writes and closes the database.
func (x *SQLiteIndex) Close() error {
	var err error
	x.once.Do(func() {
		x.closed.Store(true)
		close(x.ch)
		x.wg.Wait()
		err = x.db.Close()
	})
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
