// Package storage persists the bus event journal.
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/tabshell/internal/bus"
)

// Record is one journal line.
type Record struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	EventName string         `json:"event_name"`
	Data      map[string]any `json:"data"`
}

// Journal appends records as JSON lines under baseDir/<date>/ without
// blocking the caller. Files rotate by date and by size.
type Journal struct {
	baseDir   string
	maxSizeMB int
	writeCh   chan Record
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
}

func NewJournal(baseDir string, bufferSize, maxSizeMB int) *Journal {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 25
	}
	j := &Journal{
		baseDir:   baseDir,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan Record, bufferSize),
		done:      make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writeLoop()
	return j
}

// HandleBusEvent is a bus.Handler that journals evt.
func (j *Journal) HandleBusEvent(evt bus.Event) {
	rec := Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventName: evt.EventName,
		Data:      evt.Data,
	}
	if err := j.Write(rec); err != nil {
		slog.Debug("journal write skipped", "event", evt.EventName, "error", err)
	}
}

// Write queues rec. A full buffer drops the record instead of blocking.
func (j *Journal) Write(rec Record) error {
	select {
	case <-j.done:
		return fmt.Errorf("journal is closed")
	default:
	}
	select {
	case j.writeCh <- rec:
		return nil
	default:
		slog.Warn("journal buffer full, dropping record", "event", rec.EventName)
		return fmt.Errorf("buffer full")
	}
}

// Close flushes queued records and closes the current file.
func (j *Journal) Close() error {
	j.closeOnce.Do(func() { close(j.done) })
	j.wg.Wait()

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.logger != nil {
		err := j.logger.Close()
		j.logger = nil
		return err
	}
	return nil
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()
	for {
		select {
		case rec := <-j.writeCh:
			j.writeRecord(rec)
		case <-j.done:
			for {
				select {
				case rec := <-j.writeCh:
					j.writeRecord(rec)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) writeRecord(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("journal marshal failed", "event", rec.EventName, "error", err)
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	date := rec.Timestamp.UTC().Format("2006-01-02")
	if date != j.currentDate || j.logger == nil {
		if err := j.rotateForDate(date); err != nil {
			slog.Error("journal rotate failed", "dir", j.baseDir, "error", err)
			return
		}
	}
	if _, err := j.logger.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "event", rec.EventName, "error", err)
	}
}

func (j *Journal) rotateForDate(date string) error {
	if j.logger != nil {
		j.logger.Close()
		j.logger = nil
	}

	dir := filepath.Join(j.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	filename := filepath.Join(dir, fmt.Sprintf("events-%d.jsonl", time.Now().Unix()))
	j.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    j.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
		Compress:   false,
		LocalTime:  false,
	}
	j.currentDate = date
	slog.Info("journal file opened", "file", filename)
	return nil
}
