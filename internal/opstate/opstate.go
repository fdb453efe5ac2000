// Package opstate implements Operation State (spec §4.7): a per-operation
// JSON document mapping file hash to status, persisted atomically and fed
// by a single writer goroutine so concurrent workers never race on the
// file.
package opstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaa/blackbird/internal/fsutil"
)

// Status is the lifecycle of a single file within an operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// Failed builds a "failed:<message>" status value.
func Failed(message string) Status {
	return Status("failed:" + message)
}

// IsFailed reports whether s is a "failed:..." status.
func (s Status) IsFailed() bool {
	return strings.HasPrefix(string(s), "failed:")
}

// Message returns the text after "failed:", or "" if s is not failed.
func (s Status) Message() string {
	if !s.IsFailed() {
		return ""
	}
	return strings.TrimPrefix(string(s), "failed:")
}

var ErrUnknownFile = errors.New("opstate: file not tracked by this operation")

// Document is the on-disk shape described in spec §6.1.
type Document struct {
	OperationType  string            `json:"operation_type"`
	Timestamp      time.Time         `json:"timestamp"`
	Source         string            `json:"source,omitempty"`
	TargetLocation string            `json:"target_location,omitempty"`
	Components     []string          `json:"components,omitempty"`
	Files          map[string]string `json:"files"`
}

// State owns one operation's document and serializes every mutation
// through a single writer goroutine, persisting after every applied
// update. Callers send updates via Update/Fail/Done from any number of
// worker goroutines.
type State struct {
	dir  string
	id   string
	doc  Document

	mu      sync.Mutex
	updates chan update
	done    chan struct{}
	flushed chan struct{}
	saveErr error
}

type update struct {
	hash   string
	status Status
}

// New creates a fresh operation state for the given file hashes, all
// starting pending, and starts its writer goroutine.
func New(dir, operationType, source, targetLocation string, components []string, fileHashes []string, now time.Time) (*State, error) {
	files := make(map[string]string, len(fileHashes))
	for _, h := range fileHashes {
		files[h] = string(StatusPending)
	}
	doc := Document{
		OperationType:  operationType,
		Timestamp:      now,
		Source:         source,
		TargetLocation: targetLocation,
		Components:     components,
		Files:          files,
	}
	id := operationType + "_" + uuid.NewString()
	st := &State{dir: dir, id: id, doc: doc}
	if err := st.save(); err != nil {
		return nil, err
	}
	st.start()
	return st, nil
}

// Resume loads an existing operation state file by id and starts its
// writer goroutine. Only files whose status is pending or failed:* are
// eligible for re-processing; Pending returns exactly that set.
func Resume(dir, id string) (*State, error) {
	payload, err := os.ReadFile(filePath(dir, id))
	if err != nil {
		return nil, fmt.Errorf("read operation state %s: %w", id, err)
	}
	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parse operation state %s: %w", id, err)
	}
	st := &State{dir: dir, id: id, doc: doc}
	st.start()
	return st, nil
}

func filePath(dir, id string) string {
	return filepath.Join(dir, ".blackbird", fmt.Sprintf("operation_%s.json", id))
}

// ID returns the operation's identifier, used to name its state file and
// to resume it later.
func (s *State) ID() string { return s.id }

func (s *State) start() {
	s.updates = make(chan update, 64)
	s.done = make(chan struct{})
	s.flushed = make(chan struct{})
	go s.run()
}

func (s *State) run() {
	defer close(s.flushed)
	for {
		select {
		case u, ok := <-s.updates:
			if !ok {
				return
			}
			s.mu.Lock()
			s.doc.Files[u.hash] = string(u.status)
			err := s.save()
			if err != nil {
				s.saveErr = err
			}
			s.mu.Unlock()
		case <-s.done:
			// Drain any remaining buffered updates before exiting.
			for {
				select {
				case u := <-s.updates:
					s.mu.Lock()
					s.doc.Files[u.hash] = string(u.status)
					if err := s.save(); err != nil {
						s.saveErr = err
					}
					s.mu.Unlock()
				default:
					return
				}
			}
		}
	}
}

// Update queues a status change for hash. Safe to call from any goroutine.
func (s *State) Update(hash string, status Status) {
	s.updates <- update{hash: hash, status: status}
}

// Done marks hash as done.
func (s *State) Done(hash string) { s.Update(hash, StatusDone) }

// Fail marks hash as failed with message.
func (s *State) Fail(hash, message string) { s.Update(hash, Failed(message)) }

// Close stops the writer goroutine after flushing any buffered updates,
// and returns the last save error encountered, if any.
func (s *State) Close() error {
	close(s.done)
	<-s.flushed
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveErr
}

// Pending returns every file hash whose status is pending or failed:*,
// i.e. everything Resume's caller still needs to (re)process.
func (s *State) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var hashes []string
	for hash, raw := range s.doc.Files {
		status := Status(raw)
		if status == StatusPending || status.IsFailed() {
			hashes = append(hashes, hash)
		}
	}
	return hashes
}

// Snapshot returns a copy of the current document, safe to inspect or
// serialize for reporting.
func (s *State) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := make(map[string]string, len(s.doc.Files))
	for k, v := range s.doc.Files {
		files[k] = v
	}
	doc := s.doc
	doc.Files = files
	return doc
}

// Remove deletes a completed operation's state file. Callers are expected
// to have Close()d the State first.
func Remove(dir, id string) error {
	err := os.Remove(filePath(dir, id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove operation state %s: %w", id, err)
	}
	return nil
}

// save persists the document atomically. Callers must hold s.mu.
func (s *State) save() error {
	payload, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal operation state: %w", err)
	}
	return fsutil.AtomicWriteBytes(filePath(s.dir, s.id), payload, 0o644)
}
