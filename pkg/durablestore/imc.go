package durablestore

import (
	"encoding/json"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/dtn-bard/bard/pkg/bard/imc"
)

// prefixIMC namespaces the imcrgngrp table.
const prefixIMC = "imcrgngrp:"

func keyIMC(recordKey string) []byte {
	return []byte(prefixIMC + recordKey)
}

// PutIMCRecord persists one IMC region/group record, keyed by its own
// rec_type_regionOrGroup_nodeOrId string.
func (s *Store) PutIMCRecord(r imc.Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("durablestore: encoding imc record %s: %w", r.Key(), err)
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyIMC(r.Key()), data)
	})
}

// DeleteIMCRecord removes a previously persisted IMC record.
func (s *Store) DeleteIMCRecord(recordKey string) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		err := txn.Delete(keyIMC(recordKey))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// LoadIMCRecords returns every persisted IMC record, for replay into an
// imc.Table at startup.
func (s *Store) LoadIMCRecords() ([]imc.Record, error) {
	var out []imc.Record
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixIMC)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var r imc.Record
				if err := json.Unmarshal(val, &r); err != nil {
					return err
				}
				out = append(out, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("durablestore: loading imc records: %w", err)
	}
	return out, nil
}

// ClearIMCRecords deletes every persisted IMC record under the
// imcrgngrp prefix, for the DB-clear tombstone path: a startup
// configuration applies this once, then writes a tombstone so it never
// repeats on subsequent restarts.
func (s *Store) ClearIMCRecords() error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixIMC)
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			keys = append(keys, k)
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
