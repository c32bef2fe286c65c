package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Ensure single connection to avoid separate in-memory DBs per connection.
	db.SetMaxOpenConns(1)
	if err := InitDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCreateOrGetSource(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	id1, err := CreateOrGetSource(db, "file", "/data/vocab.csv", "vocab.csv", "")
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	id2, err := CreateOrGetSource(db, "file", "/data/vocab.csv", "renamed", "")
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same source id, got %d and %d", id1, id2)
	}
	id3, err := CreateOrGetSource(db, "article", "", "", "https://example.com/a")
	if err != nil {
		t.Fatalf("create article source: %v", err)
	}
	if id3 == id1 {
		t.Fatalf("expected distinct ids for distinct sources")
	}

	s, err := GetSource(db, id1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.Title != "vocab.csv" || s.SourceType != "file" {
		t.Fatalf("unexpected source %+v", s)
	}
}

func TestCreateOrGetSourceRejectsEmptyType(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	if _, err := CreateOrGetSource(db, "  ", "x", "", ""); err == nil {
		t.Fatalf("expected error for empty source type")
	}
}

func TestSourceProgress(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	id, err := CreateOrGetSource(db, "file", "/data/a.tsv", "", "")
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	if err := UpdateSourceProgress(db, id, 5); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := UpdateSourceProgress(db, id, 3); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := GetSourceProgress(db, id)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if got != 5 {
		t.Fatalf("expected progress 5, got %d", got)
	}

	if err := ResetSourceProgress(db, id); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got, _ := GetSourceProgress(db, id); got != 0 {
		t.Fatalf("expected progress 0 after reset, got %d", got)
	}
}

func TestRecordNoteAndQuery(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	sID, err := CreateOrGetSource(db, "file", "/data/b.csv", "", "")
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	notes := []Note{
		{BatchID: "batch-1", SourceID: sID, Row: 1, NoteID: 1001, Deck: "Default", Model: "Chinese", Fields: map[string]string{"Hanzi": "你好"}},
		{BatchID: "batch-1", SourceID: sID, Row: 2, NoteID: 1002, Deck: "Default", Model: "Chinese", Fields: map[string]string{"Hanzi": "谢谢"}},
		{BatchID: "batch-2", Row: 1, NoteID: 1003, Deck: "Default", Model: "Chinese", Fields: map[string]string{"Hanzi": "再见"}},
	}
	for _, n := range notes {
		if _, err := RecordNote(db, n); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := NotesByBatch(db, "batch-1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(got))
	}
	if got[1].Fields["Hanzi"] != "谢谢" || got[1].NoteID != 1002 {
		t.Fatalf("unexpected second note %+v", got[1])
	}

	other, err := NotesByBatch(db, "batch-2")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(other) != 1 || other[0].SourceID != 0 {
		t.Fatalf("expected one note without source, got %+v", other)
	}

	cnt, err := CountNotes(db, sID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 2 {
		t.Fatalf("expected 2 notes for source, got %d", cnt)
	}

	if _, err := RecordNote(db, Note{Row: 1}); err == nil {
		t.Fatalf("expected error for missing batch id")
	}
}

func TestAudioCache(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if _, ok, err := LookupAudio(db, "你好", "google"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := StoreAudio(db, AudioEntry{Text: "你好", Provider: "google", Path: "/a/1.mp3"}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := StoreAudio(db, AudioEntry{Text: "你好", Provider: "google", Path: "/a/2.mp3"}); err != nil {
		t.Fatalf("store again: %v", err)
	}
	path, ok, err := LookupAudio(db, "你好", "google")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if path != "/a/2.mp3" {
		t.Fatalf("expected latest path, got %s", path)
	}
	if _, ok, _ := LookupAudio(db, "你好", "elevenlabs"); ok {
		t.Fatalf("providers must not share entries")
	}

	if err := ForgetAudio(db, "你好", "google"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, ok, _ := LookupAudio(db, "你好", "google"); ok {
		t.Fatalf("expected miss after forget")
	}
	if err := StoreAudio(db, AudioEntry{Provider: "google", Path: "/a/3.mp3"}); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestCreateOrGetSourceConcurrency(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	const n = 8
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		go func() {
			id, err := CreateOrGetSource(db, "article", "", "Title", "https://example.com/c")
			if err != nil {
				t.Errorf("create or get source: %v", err)
				ids <- 0
				return
			}
			ids <- id
		}()
	}
	var first int64
	for i := 0; i < n; i++ {
		id := <-ids
		if id == 0 {
			t.Fatalf("error in goroutine")
		}
		if i == 0 {
			first = id
		}
		if id != first {
			t.Fatalf("expected same id, got %d and %d", first, id)
		}
	}
	var cnt int
	err := db.QueryRow(`SELECT COUNT(*) FROM sources WHERE url = ?`, "https://example.com/c").Scan(&cnt)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected 1 source row, got %d", cnt)
	}
}
