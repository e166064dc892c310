// Package bolt persists run snapshots in a BoltDB file.  Each story
// gets a bucket; each save slot within a story is one key holding a
// JSON-encoded snapshot record.
package bolt

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/fable-lang/fable/core"

	bolt "go.etcd.io/bbolt"
)

// SavedRun is one stored save slot.
type SavedRun struct {
	// Slot is the save-slot name.
	Slot string `json:"slot,omitempty"`

	// Script names the script the snapshot was taken against.
	Script string `json:"script,omitempty"`

	SavedAt  time.Time      `json:"savedAt"`
	Snapshot *core.Snapshot `json:"snapshot"`
}

// Storage is a snapshot store backed by a single BoltDB file.
type Storage struct {
	Debug    bool
	filename string
	db       *bolt.DB
}

// NewStorage makes a Storage for the given filename.  Call Open
// before use.
func NewStorage(filename string) (*Storage, error) {
	return &Storage{
		filename: filename,
	}, nil
}

// Open opens the underlying database file.
func (s *Storage) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// Close closes the underlying database file.
func (s *Storage) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Storage) logf(format string, args ...interface{}) {
	if s == nil {
		return
	}
	if s.Debug {
		log.Printf("BoltDB "+format, args...)
	}
}

// EnsureStory creates the story's bucket if needed.
func (s *Storage) EnsureStory(ctx context.Context, story string) error {
	if s == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(story))
		return err
	})
}

// RemStory deletes the story's bucket and all of its slots.
func (s *Storage) RemStory(ctx context.Context, story string) error {
	if s == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.DeleteBucket([]byte(story))
	})
}

// WriteRun stores a snapshot in the given slot, overwriting any
// previous save there.
func (s *Storage) WriteRun(ctx context.Context, story, slot string, snap *core.Snapshot) error {
	if s == nil {
		return nil
	}

	// To save some space, the slot name lives in the key only.
	run := &SavedRun{
		Script:   story,
		SavedAt:  time.Now().UTC(),
		Snapshot: snap,
	}
	js, err := json.Marshal(run)
	if err != nil {
		return err
	}

	s.logf("WriteRun %s/%s (%d bytes)", story, slot, len(js))

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(story))
		if err != nil {
			return err
		}
		return b.Put([]byte(slot), js)
	})
}

// ReadRun loads the snapshot stored in the given slot, or nil if the
// slot is empty.
func (s *Storage) ReadRun(ctx context.Context, story, slot string) (*SavedRun, error) {
	if s == nil {
		return nil, nil
	}
	var run *SavedRun
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(story))
		if b == nil {
			return nil
		}
		bs := b.Get([]byte(slot))
		if bs == nil {
			return nil
		}
		var r SavedRun
		if err := json.Unmarshal(bs, &r); err != nil {
			return err
		}
		r.Slot = slot
		run = &r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logf("ReadRun %s/%s found=%v", story, slot, run != nil)

	return run, nil
}

// ListRuns returns every save slot of a story, in key order.
func (s *Storage) ListRuns(ctx context.Context, story string) ([]*SavedRun, error) {
	if s == nil {
		return nil, nil
	}
	runs := make([]*SavedRun, 0, 8)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(story))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for slot, bs := c.First(); slot != nil; slot, bs = c.Next() {
			var r SavedRun
			if err := json.Unmarshal(bs, &r); err != nil {
				return err
			}
			r.Slot = string(slot)
			runs = append(runs, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logf("ListRuns %s found %d runs", story, len(runs))

	if len(runs) == 0 {
		return nil, nil
	}

	return runs, nil
}

// RemRun deletes one save slot.
func (s *Storage) RemRun(ctx context.Context, story, slot string) error {
	if s == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(story))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(slot))
	})
}
