package source

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/japaniel/ankify/pkg/domain"
)

// Mode is how positional arguments are interpreted.
type Mode int

const (
	ModeInteractive Mode = iota
	ModePaths
	ModeSentences
)

func (m Mode) String() string {
	switch m {
	case ModeInteractive:
		return "interactive"
	case ModePaths:
		return "paths"
	case ModeSentences:
		return "sentences"
	}
	return "unknown"
}

// Input is the classified form of the positional arguments.
type Input struct {
	Mode   Mode
	Values []string
}

// Classifier decides whether arguments are files or free text.
type Classifier struct {
	// Exists reports whether a path is on disk. Defaults to os.Stat.
	Exists func(path string) bool
}

// Classify uses a Classifier backed by the real filesystem.
func Classify(args []string) (Input, error) {
	return Classifier{}.Classify(args)
}

// Classify applies the rules in order: no arguments means interactive;
// all paths (on disk or file-like) means paths; a mix of paths and text is
// rejected; one argument is a sentence; bare words are joined into one
// sentence; phrases are separate sentences; bare words mixed with phrases
// are rejected.
func (c Classifier) Classify(args []string) (Input, error) {
	if len(args) == 0 {
		return Input{Mode: ModeInteractive}, nil
	}

	exists := c.Exists
	if exists == nil {
		exists = onDisk
	}

	allPaths, anyPath := true, false
	allFileLike, anyFileLike := true, false
	allNoSpace, allSpace := true, true
	for _, a := range args {
		e := exists(a)
		f := isFileLike(strings.ToLower(a))
		allPaths = allPaths && e
		anyPath = anyPath || e
		allFileLike = allFileLike && f
		anyFileLike = anyFileLike || f
		hasSpace := strings.Contains(a, " ")
		allNoSpace = allNoSpace && !hasSpace
		allSpace = allSpace && hasSpace
	}

	switch {
	case allPaths || allFileLike:
		return Input{Mode: ModePaths, Values: append([]string(nil), args...)}, nil
	case anyPath || anyFileLike:
		return Input{}, fmt.Errorf("%w: cannot mix file paths with non-path arguments", domain.ErrAmbiguousInput)
	case len(args) == 1:
		return Input{Mode: ModeSentences, Values: []string{args[0]}}, nil
	case allNoSpace:
		return Input{Mode: ModeSentences, Values: []string{strings.Join(args, " ")}}, nil
	case allSpace:
		return Input{Mode: ModeSentences, Values: append([]string(nil), args...)}, nil
	}
	return Input{}, fmt.Errorf("%w: cannot mix sentences with single words", domain.ErrAmbiguousInput)
}

// isFileLike reports a final dot that is not leading, not preceded by a
// space and followed by at most five characters.
func isFileLike(arg string) bool {
	dot := strings.LastIndex(arg, ".")
	return dot > 0 && arg[dot-1] != ' ' && utf8.RuneCountInString(arg[dot:]) <= 6
}

func onDisk(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
