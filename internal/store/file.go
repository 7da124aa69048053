package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/framepost/outbox/internal/core"
)

// DefaultFileName is the on-disk name of the queue blob.
const DefaultFileName = "message_queue.json"

// FileStore persists the whole queue as one JSON array. Queue sizes are tens
// to low hundreds of messages, so full rewrite-per-mutation is deliberate:
// durability over throughput.
type FileStore struct {
	Path string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Path: filepath.Join(dir, DefaultFileName)}
}

// Load reads the persisted queue. A missing or unreadable blob yields an
// empty queue; a restart never fails on bad state, it starts over.
func (s *FileStore) Load() ([]core.QueuedMessage, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		log.Printf("queue blob %s unreadable, discarding: %v", s.Path, err)
		return nil, nil
	}
	var msgs []core.QueuedMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		log.Printf("queue blob %s unreadable, discarding: %v", s.Path, err)
		return nil, nil
	}
	return msgs, nil
}

// Save atomically replaces the blob: write a temp file, fsync, rename. A
// crash mid-save leaves the previous blob intact.
func (s *FileStore) Save(msgs []core.QueuedMessage) error {
	if msgs == nil {
		msgs = []core.QueuedMessage{}
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, DefaultFileName+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path)
}
