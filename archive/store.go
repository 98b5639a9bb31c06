// Package archive keeps a local transcript of every message the
// synchronizer has ever observed, in a PebbleDB key-value store. It is a
// write-behind record for export only: the displayed message list is always
// the backend's latest snapshot and is never seeded from here.
package archive

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble/v2"

	"github.com/gosuda/edgechat/gateway"
)

// Store persists messages keyed by 4-byte big-endian room id followed by
// 8-byte big-endian message id, so a room's history iterates in id order and
// re-appending an already seen message is a no-op overwrite.
type Store struct {
	db *pebble.DB
	mu sync.Mutex
}

// Open opens (or creates) the store at dir. An empty dir returns a nil
// store; all methods tolerate the nil receiver so callers don't branch.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func key(roomID, msgID int) []byte {
	k := make([]byte, 12)
	binary.BigEndian.PutUint32(k[:4], uint32(roomID))
	binary.BigEndian.PutUint64(k[4:], uint64(msgID))
	return k
}

// Append records the messages of one room snapshot. Messages already in the
// store are skipped; the synchronizer hands over full snapshots, so most of
// each batch is usually old.
func (s *Store) Append(roomID int, msgs []gateway.Message) error {
	if s == nil || s.db == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.db.NewBatch()
	defer func() { _ = b.Close() }()
	dirty := false
	for i := range msgs {
		k := key(roomID, msgs[i].ID)
		if _, closer, err := s.db.Get(k); err == nil {
			_ = closer.Close()
			continue
		}
		val, err := json.Marshal(msgs[i])
		if err != nil {
			return err
		}
		if err := b.Set(k, val, nil); err != nil {
			return err
		}
		dirty = true
	}
	if !dirty {
		return nil
	}
	return b.Commit(pebble.Sync)
}

// LoadRoom returns every archived message of one room in message-id order.
func (s *Store) LoadRoom(roomID int) ([]gateway.Message, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	lower := key(roomID, 0)
	upper := make([]byte, 4)
	binary.BigEndian.PutUint32(upper, uint32(roomID)+1)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()
	var out []gateway.Message
	for it.First(); it.Valid(); it.Next() {
		var m gateway.Message
		if err := json.Unmarshal(it.Value(), &m); err == nil {
			out = append(out, m)
		}
	}
	return out, nil
}
