package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/japaniel/ankify/pkg/db"
)

// ErrHistoryClosed is returned by Record after Close.
var ErrHistoryClosed = errors.New("history writer closed")

// Entry is one handled record. Note is nil for rows that produced no note;
// they still advance the source checkpoint.
type Entry struct {
	SourceID int64
	Row      int
	Note     *db.Note
}

// HistoryWriter buffers entries and commits them in batches inside a
// transaction, off the row loop.
type HistoryWriter struct {
	mu          sync.Mutex
	buf         []Entry
	cap         int
	flushTicker *time.Ticker
	closed      bool
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	commitCh chan []Entry
	db       *sql.DB
	OnError  func(error)

	// errMu guards lastErr, the first asynchronous error seen.
	errMu   sync.Mutex
	lastErr error
}

// NewHistoryWriter starts a writer that flushes every bufferSize entries
// and, when flushInterval > 0, on that interval.
func NewHistoryWriter(conn *sql.DB, bufferSize int, flushInterval time.Duration) *HistoryWriter {
	if bufferSize <= 0 {
		bufferSize = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &HistoryWriter{
		buf:      make([]Entry, 0, bufferSize),
		cap:      bufferSize,
		ctx:      ctx,
		cancel:   cancel,
		commitCh: make(chan []Entry, 2),
		db:       conn,
	}

	w.wg.Add(1)
	go w.committer()

	if flushInterval > 0 {
		w.flushTicker = time.NewTicker(flushInterval)
		w.wg.Add(1)
		go w.loop()
	}
	return w
}

// Record enqueues an entry.
func (w *HistoryWriter) Record(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrHistoryClosed
	}
	w.buf = append(w.buf, e)
	if len(w.buf) >= w.cap {
		w.flushLocked()
	}
	return nil
}

// flushLocked assumes w.mu is held. A full commit channel blocks Record,
// which is the backpressure the row loop needs.
func (w *HistoryWriter) flushLocked() {
	if len(w.buf) == 0 {
		return
	}
	batch := w.buf
	w.buf = make([]Entry, 0, w.cap)

	select {
	case w.commitCh <- batch:
	case <-w.ctx.Done():
		w.fail(fmt.Errorf("history: dropping %d entries after shutdown", len(batch)))
	}
}

func (w *HistoryWriter) fail(err error) {
	w.errMu.Lock()
	if w.lastErr == nil {
		w.lastErr = err
	}
	w.errMu.Unlock()
	if w.OnError != nil {
		w.OnError(err)
	}
}

func (w *HistoryWriter) committer() {
	defer w.wg.Done()
	for batch := range w.commitCh {
		if err := w.commit(batch); err != nil {
			w.fail(err)
		}
	}
}

func (w *HistoryWriter) commit(batch []Entry) error {
	if w.db == nil {
		return nil
	}

	// Background context so a closing writer still flushes.
	tx, err := w.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("history: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	for _, e := range batch {
		if e.Note != nil {
			if _, err := db.RecordNote(tx, *e.Note); err != nil {
				return fmt.Errorf("history: row %d: %w", e.Row, err)
			}
		}
		if e.SourceID > 0 {
			if err := db.UpdateSourceProgress(tx, e.SourceID, e.Row); err != nil {
				return fmt.Errorf("history: save progress: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit %d entries: %w", len(batch), err)
	}
	return nil
}

func (w *HistoryWriter) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.mu.Lock()
			w.flushLocked()
			w.mu.Unlock()
		}
	}
}

// Close flushes pending entries, waits for them to commit and returns the
// first error seen.
func (w *HistoryWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrHistoryClosed
	}
	w.closed = true
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}
	w.flushLocked()
	w.mu.Unlock()

	w.cancel()
	close(w.commitCh)
	w.wg.Wait()

	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.lastErr
}
