package archive

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gosuda/edgechat/gateway"
)

// Dump is the export JSON format: "room-<id>" -> archived messages in id
// order.
type Dump map[string][]gateway.Message

// BuildDump walks the whole store and groups its contents per room.
func (s *Store) BuildDump() (Dump, error) {
	out := make(Dump)
	if s == nil || s.db == nil {
		return out, nil
	}
	it, err := s.db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()
	for it.First(); it.Valid(); it.Next() {
		k := it.Key()
		if len(k) < 12 {
			continue
		}
		roomID := binary.BigEndian.Uint32(k[:4])
		var m gateway.Message
		if err := json.Unmarshal(it.Value(), &m); err != nil {
			continue
		}
		name := fmt.Sprintf("room-%d", roomID)
		out[name] = append(out[name], m)
	}
	return out, nil
}

// WriteDump streams the dump as indented JSON.
func (s *Store) WriteDump(w io.Writer) error {
	d, err := s.BuildDump()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
