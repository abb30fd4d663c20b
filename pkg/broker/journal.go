package broker

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Journal provides SQLite persistence for broker activity: client
// sessions and published messages. It stores what passed through the
// broker for inspection; it is not a delivery queue, and nothing is
// ever replayed from it.
type Journal struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenJournal opens (or creates) a journal at the given database
// path. Use ":memory:" for an in-memory journal.
func OpenJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure journal: %w", err)
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return j, nil
}

// migrate creates the journal schema.
func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identity TEXT NOT NULL,
		remote_addr TEXT,
		connected_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS publishes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identity TEXT,
		topic TEXT NOT NULL,
		payload BLOB,
		payload_size INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_publishes_topic ON publishes(topic);
	CREATE INDEX IF NOT EXISTS idx_publishes_created_at ON publishes(created_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_identity ON sessions(identity);
	`

	_, err := j.db.Exec(schema)
	return err
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordSession records a completed client handshake.
func (j *Journal) RecordSession(identity, remoteAddr string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(`
		INSERT INTO sessions (identity, remote_addr, connected_at)
		VALUES (?, ?, ?)
	`, identity, remoteAddr, time.Now().UTC())
	return err
}

// RecordPublish records one published message.
func (j *Journal) RecordPublish(identity, topic string, payload []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(`
		INSERT INTO publishes (identity, topic, payload, payload_size, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, identity, topic, payload, len(payload), time.Now().UTC())
	return err
}

// PublishRecord is one journaled message.
type PublishRecord struct {
	ID        int64
	Identity  string
	Topic     string
	Payload   []byte
	CreatedAt time.Time
}

// RecentPublishes returns the most recent messages for a topic, newest
// first. An empty topic returns messages for all topics.
func (j *Journal) RecentPublishes(topic string, limit int) ([]PublishRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, identity, topic, payload, created_at
		FROM publishes
	`
	args := []any{}
	if topic != "" {
		query += " WHERE topic = ?"
		args = append(args, topic)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []PublishRecord
	for rows.Next() {
		var r PublishRecord
		var identity sql.NullString
		if err := rows.Scan(&r.ID, &identity, &r.Topic, &r.Payload, &r.CreatedAt); err != nil {
			return nil, err
		}
		if identity.Valid {
			r.Identity = identity.String
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountPublishes returns the total number of journaled messages.
func (j *Journal) CountPublishes() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var count int
	err := j.db.QueryRow("SELECT COUNT(*) FROM publishes").Scan(&count)
	return count, err
}

// SessionCount returns the number of recorded handshakes for an
// identity, or for all identities when empty.
func (j *Journal) SessionCount(identity string) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var count int
	var err error
	if identity == "" {
		err = j.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count)
	} else {
		err = j.db.QueryRow("SELECT COUNT(*) FROM sessions WHERE identity = ?", identity).Scan(&count)
	}
	return count, err
}
