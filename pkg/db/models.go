package db

import "time"

// Source is a file, article or sentence batch that notes were created from.
type Source struct {
	ID               int64
	SourceType       string
	Path             string
	Title            string
	URL              string
	AddedAt          time.Time
	LastProcessedRow int
}

// Note records one note handed to Anki.
type Note struct {
	ID       int64
	BatchID  string
	SourceID int64
	Row      int
	NoteID   int64
	Deck     string
	Model    string
	Fields   map[string]string
	AddedAt  time.Time
}

// AudioEntry maps synthesized text to a file on disk.
type AudioEntry struct {
	Text     string
	Provider string
	Path     string
}
