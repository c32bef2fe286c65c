package source

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/japaniel/ankify/pkg/domain"
)

// Kind is the record shape of an input file.
type Kind int

const (
	KindSubtitle Kind = iota
	KindTable
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindSubtitle:
		return "subtitle"
	case KindTable:
		return "table"
	case KindText:
		return "text"
	}
	return "unknown"
}

// Record is one input row keyed by column name. Row is 1-based.
type Record struct {
	Row    int
	Values map[string]string
}

// Get returns the value of column, or "" when absent.
func (r Record) Get(column string) string {
	return r.Values[column]
}

// File is a parsed input file.
type File struct {
	Path    string
	Kind    Kind
	Headers []string
	Records []Record
	// Subtitles is set for KindSubtitle only.
	Subtitles []Subtitle
	// Lines is set for KindText only.
	Lines []string
}

// Dir is the directory relative audio references are resolved against.
func (f *File) Dir() string { return filepath.Dir(f.Path) }

// KindOf maps a file extension to its record shape.
func KindOf(path string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".srt":
		return KindSubtitle, nil
	case ".csv", ".tsv":
		return KindTable, nil
	case ".txt", ".text":
		return KindText, nil
	}
	if ext == "" {
		ext = "(none)"
	}
	return 0, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, ext)
}

// Open reads path with the parser its extension selects.
func Open(path string) (*File, error) {
	kind, err := KindOf(path)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindSubtitle:
		subs, err := ReadSubtitles(path)
		if err != nil {
			return nil, err
		}
		return &File{Path: path, Kind: kind, Subtitles: subs}, nil
	case KindTable:
		headers, records, err := ReadTable(path)
		if err != nil {
			return nil, err
		}
		return &File{Path: path, Kind: kind, Headers: headers, Records: records}, nil
	default:
		lines, err := ReadLines(path)
		if err != nil {
			return nil, err
		}
		return &File{Path: path, Kind: kind, Lines: lines}, nil
	}
}
