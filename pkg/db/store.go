package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// CreateOrGetSource returns existing source id or inserts a new source and returns its id.
func CreateOrGetSource(db DBExecutor, sourceType, path, title, url string) (int64, error) {
	trimmedSourceType := strings.TrimSpace(sourceType)
	if trimmedSourceType == "" {
		return 0, fmt.Errorf("sourceType must be non-empty")
	}

	const maxRetries = 3

	var id int64
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := db.QueryRow(
			`SELECT id FROM sources WHERE source_type = ? AND path = ? AND url = ?`,
			trimmedSourceType, path, url,
		).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}

		res, err := db.Exec(
			`INSERT INTO sources (source_type, path, title, url) VALUES (?, ?, ?, ?)`,
			trimmedSourceType, path, title, url,
		)
		if err != nil {
			// Lost a race with another writer; look the row up again.
			if isUniqueConstraintErr(err) {
				continue
			}
			return 0, err
		}
		return res.LastInsertId()
	}

	return 0, fmt.Errorf("could not create or get source after %d retries", maxRetries)
}

// GetSource loads a source by id.
func GetSource(db DBExecutor, id int64) (Source, error) {
	var s Source
	err := db.QueryRow(
		`SELECT id, source_type, path, title, url, added_at, last_processed_row FROM sources WHERE id = ?`, id,
	).Scan(&s.ID, &s.SourceType, &s.Path, &s.Title, &s.URL, &s.AddedAt, &s.LastProcessedRow)
	if err != nil {
		return Source{}, fmt.Errorf("get source %d: %w", id, err)
	}
	return s, nil
}

// GetSourceProgress returns the last processed row for a source.
func GetSourceProgress(db DBExecutor, sourceID int64) (int, error) {
	var row int
	err := db.QueryRow("SELECT last_processed_row FROM sources WHERE id = ?", sourceID).Scan(&row)
	if err != nil {
		return 0, err
	}
	return row, nil
}

// UpdateSourceProgress records the last processed row. Progress never moves backwards.
func UpdateSourceProgress(db DBExecutor, sourceID int64, row int) error {
	_, err := db.Exec(
		"UPDATE sources SET last_processed_row = MAX(last_processed_row, ?) WHERE id = ?",
		row, sourceID,
	)
	return err
}

// ResetSourceProgress rewinds a source to its first row.
func ResetSourceProgress(db DBExecutor, sourceID int64) error {
	_, err := db.Exec("UPDATE sources SET last_processed_row = 0 WHERE id = ?", sourceID)
	return err
}

// RecordNote stores a note that Anki accepted and returns its history id.
func RecordNote(db DBExecutor, n Note) (int64, error) {
	if strings.TrimSpace(n.BatchID) == "" {
		return 0, fmt.Errorf("batch id must be non-empty")
	}
	payload, err := json.Marshal(n.Fields)
	if err != nil {
		return 0, fmt.Errorf("encode fields: %w", err)
	}

	var id int64
	err = db.QueryRow(
		`INSERT INTO notes (batch_id, source_id, row, note_id, deck, model, fields_json, added_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		n.BatchID, nullableInt64(n.SourceID), n.Row, n.NoteID, n.Deck, n.Model, string(payload), time.Now(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert note: %w", err)
	}
	return id, nil
}

// NotesByBatch returns the notes of one run in insertion order.
func NotesByBatch(db DBExecutor, batchID string) ([]Note, error) {
	rows, err := db.Query(
		`SELECT id, batch_id, source_id, row, note_id, deck, model, fields_json, added_at
		 FROM notes WHERE batch_id = ? ORDER BY id`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		var sourceID sql.NullInt64
		var payload string
		if err := rows.Scan(&n.ID, &n.BatchID, &sourceID, &n.Row, &n.NoteID, &n.Deck, &n.Model, &payload, &n.AddedAt); err != nil {
			return nil, err
		}
		if sourceID.Valid {
			n.SourceID = sourceID.Int64
		}
		if err := json.Unmarshal([]byte(payload), &n.Fields); err != nil {
			return nil, fmt.Errorf("decode fields of note %d: %w", n.ID, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountNotes returns how many notes were recorded for a source.
func CountNotes(db DBExecutor, sourceID int64) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM notes WHERE source_id = ?`, sourceID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// LookupAudio returns the cached file for text from provider.
func LookupAudio(db DBExecutor, text, provider string) (string, bool, error) {
	var path string
	err := db.QueryRow(`SELECT path FROM audio_cache WHERE text = ? AND provider = ?`, text, provider).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup audio: %w", err)
	}
	return path, true, nil
}

// StoreAudio remembers the file synthesized for text, replacing an older entry.
func StoreAudio(db DBExecutor, e AudioEntry) error {
	if strings.TrimSpace(e.Text) == "" || e.Path == "" {
		return fmt.Errorf("audio entry needs text and path")
	}
	_, err := db.Exec(
		`INSERT INTO audio_cache (text, provider, path) VALUES (?, ?, ?)
		 ON CONFLICT(text, provider) DO UPDATE SET path = excluded.path, created_at = CURRENT_TIMESTAMP`,
		e.Text, e.Provider, e.Path,
	)
	if err != nil {
		return fmt.Errorf("store audio: %w", err)
	}
	return nil
}

// ForgetAudio drops a cache entry whose file has gone missing.
func ForgetAudio(db DBExecutor, text, provider string) error {
	_, err := db.Exec(`DELETE FROM audio_cache WHERE text = ? AND provider = ?`, text, provider)
	return err
}

// nullableInt64 returns nil for 0 (meaning no source) else the value.
func nullableInt64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
