package durablestore

import (
	"encoding/json"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/dtn-bard/bard/pkg/bard"
)

// prefixQuota namespaces the bardquota table: one record per
// canonical key with a configured quota.
const prefixQuota = "bardquota:"

func keyQuota(key string) []byte {
	return []byte(prefixQuota + key)
}

// quotaRecord is the on-disk encoding of one quota row.
type quotaRecord struct {
	QuotaType bard.QuotaType `json:"quota_type"`
	Scheme    bard.Scheme    `json:"scheme"`
	Node      string         `json:"node"`
	Quota     bard.Quota     `json:"quota"`
}

// PutQuota writes or overwrites the quota record for key, satisfying
// bard.Store.
func (s *Store) PutQuota(key string, qt bard.QuotaType, scheme bard.Scheme, node string, q bard.Quota) error {
	rec := quotaRecord{QuotaType: qt, Scheme: scheme, Node: node, Quota: q}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("durablestore: encoding quota %s: %w", key, err)
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyQuota(key), data)
	})
}

// DeleteQuota removes the persisted quota record for key.
func (s *Store) DeleteQuota(key string) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		err := txn.Delete(keyQuota(key))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// LoadQuotas returns every persisted quota record, keyed by canonical
// key, for bard.BARD.LoadQuotasFromStore to replay at startup.
func (s *Store) LoadQuotas() (map[string]struct {
	QuotaType bard.QuotaType
	Scheme    bard.Scheme
	Node      string
	Quota     bard.Quota
}, error) {
	out := make(map[string]struct {
		QuotaType bard.QuotaType
		Scheme    bard.Scheme
		Node      string
		Quota     bard.Quota
	})

	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixQuota)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			key := string(item.Key()[len(prefixQuota):])
			err := item.Value(func(val []byte) error {
				var rec quotaRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				out[key] = struct {
					QuotaType bard.QuotaType
					Scheme    bard.Scheme
					Node      string
					Quota     bard.Quota
				}{rec.QuotaType, rec.Scheme, rec.Node, rec.Quota}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("durablestore: loading quotas: %w", err)
	}
	return out, nil
}

var _ bard.Store = (*Store)(nil)
