// Package badgerindex is a Badger-backed SecondaryIndexer, for callers of
// orderservice.IndexOrderResult that want published offsets to survive past
// process lifetime instead of living in orderservice.MapSecondaryIndexer.
// Ported from the teacher's BadgerStore transaction/iterator idiom
// (datalog/storage/badger_store.go).
package badgerindex

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/wbrown/avquery"
)

// storageFailure panics on a Badger I/O error. This is a storage-layer
// failure, not a ProgrammerError — SecondaryIndexer's interface has no
// error return, so there is nowhere else for it to go.
func storageFailure(op string, eid avquery.EID, err error) {
	panic(fmt.Sprintf("badgerindex: %s failed for eid %d: %v", op, eid, err))
}

// Store publishes EID -> offset under a Badger-backed key-value store, one
// key per tracked EID.
type Store struct {
	db *badger.DB
}

// Open creates (or opens) a Badger database at path as an offset store.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeKey(eid avquery.EID) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(eid))
	return key
}

// SetOffset implements orderservice.SecondaryIndexer.
func (s *Store) SetOffset(eid avquery.EID, offset int) {
	err := s.db.Update(func(txn *badger.Txn) error {
		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, uint64(int64(offset)))
		return txn.Set(encodeKey(eid), val)
	})
	if err != nil {
		storageFailure("SetOffset", eid, err)
	}
}

// ClearOffset implements orderservice.SecondaryIndexer.
func (s *Store) ClearOffset(eid avquery.EID) {
	err := s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(encodeKey(eid))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		storageFailure("ClearOffset", eid, err)
	}
}

// Get returns eid's published offset, if any.
func (s *Store) Get(eid avquery.EID) (int, bool) {
	var offset int
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(encodeKey(eid))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			offset = int(int64(binary.BigEndian.Uint64(val)))
			found = true
			return nil
		})
	})
	if err != nil {
		storageFailure("Get", eid, err)
	}
	return offset, found
}
