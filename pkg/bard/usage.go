package bard

import (
	"sync"
	"time"
)

// Counters groups the four accounting axes that appear together
// throughout the accounting model: bundles/bytes crossed with internal/external.
type Counters struct {
	Bundles uint64
	Bytes   uint64
}

func (c *Counters) add(n, length uint64) {
	c.Bundles += n
	c.Bytes += length
}

// sub decrements the counters by n/length, clamping at zero and
// reporting whether a clamp occurred. Normal operation must never
// clamp; rescan is the only path allowed to pass clamp=true
// through without it being a bug.
func (c *Counters) sub(n, length uint64) (clamped bool) {
	if c.Bundles >= n {
		c.Bundles -= n
	} else {
		c.Bundles = 0
		clamped = true
	}
	if c.Bytes >= length {
		c.Bytes -= length
	} else {
		c.Bytes = 0
		clamped = true
	}
	return clamped
}

// Quota holds the durable configuration fields of a UsageRecord.
// Zero in either Internal field means unlimited.
type Quota struct {
	InternalBundles  uint64
	InternalBytes    uint64
	ExternalBundles  uint64
	ExternalBytes    uint64
	RefuseBundle     bool
	AutoReload       bool
	RestageLinkName  string
	InDatastore      bool
	Modified         time.Time
}

// HasQuota reports whether internal limits are configured at all
func (q *Quota) HasQuota() bool {
	return q.InternalBytes != 0 || q.InternalBundles != 0
}

// Accounting holds the transient (never-persisted) bookkeeping fields
// of a UsageRecord.
type Accounting struct {
	InUseInternal  Counters
	InUseExternal  Counters
	ReservedInternal Counters
	ReservedExternal Counters

	// LastInUseExternal is the pre-rescan snapshot taken at the start of a rescan,
	// used by the acceptance oracle as the stable external-quota
	// denominator while a rescan is in flight.
	LastInUseExternal Counters

	LastReloadCommandTime time.Time

	// emailSent tracks which watermark thresholds have already fired
	// a one-shot notification for this key, so repeated crossings
	// don't re-notify every accounting tick.
	emailSent map[string]bool
}

// CommittedInternal is in-use plus reserved internal occupancy ("committed"),
// the effective value admission control compares to quota.
func (a *Accounting) CommittedInternal() Counters {
	return Counters{
		Bundles: a.InUseInternal.Bundles + a.ReservedInternal.Bundles,
		Bytes:   a.InUseInternal.Bytes + a.ReservedInternal.Bytes,
	}
}

// CommittedExternal is the live external committed occupancy.
func (a *Accounting) CommittedExternal() Counters {
	return Counters{
		Bundles: a.InUseExternal.Bundles + a.ReservedExternal.Bundles,
		Bytes:   a.InUseExternal.Bytes + a.ReservedExternal.Bytes,
	}
}

// LastCommittedExternal is the frozen pre-rescan external occupancy
// used by the acceptance oracle during a rescan.
func (a *Accounting) LastCommittedExternal() Counters {
	return Counters{
		Bundles: a.LastInUseExternal.Bundles + a.ReservedExternal.Bundles,
		Bytes:   a.LastInUseExternal.Bytes + a.ReservedExternal.Bytes,
	}
}

// UsageRecord is one record per (quota-type × scheme × node) ever
// observed. Identity fields are immutable after creation;
// Quota is persisted through the durable store; Accounting is
// transient and rebuilt by rescan/reload/restage events.
type UsageRecord struct {
	mu sync.Mutex

	QuotaType  QuotaType
	Scheme     Scheme
	NodeNumber uint64 // meaningful for IPN/IMC; 0 for DTN
	NodeName   string // meaningful for DTN; decimal string for IPN/IMC
	Key        string

	Quota
	Accounting
}

// NewUsageRecord constructs a record for a canonical key triple. Quota
// fields start zeroed (no quota configured, i.e. always admit
// unconditionally) until a quota is added.
func NewUsageRecord(qt QuotaType, scheme Scheme, node string) *UsageRecord {
	u := &UsageRecord{
		QuotaType: qt,
		Scheme:    scheme,
		NodeName:  node,
		Key:       CanonicalKey(qt, scheme, node),
	}
	if scheme != SchemeDTN {
		// best-effort numeric parse; IPN/IMC identifiers are decimal
		var n uint64
		for _, r := range node {
			if r < '0' || r > '9' {
				n = 0
				break
			}
			n = n*10 + uint64(r-'0')
		}
		u.NodeNumber = n
	}
	return u
}

// UsageTable is the two-map structure: quotaMap holds only
// records with a configured quota (authoritative for limits), usageMap
// holds every record ever referenced (authoritative for accounting). A
// record present in quotaMap is always also present in usageMap — both
// maps hold a pointer to the same *UsageRecord (shared ownership).
type UsageTable struct {
	usageMap map[string]*UsageRecord
	quotaMap map[string]*UsageRecord
}

// NewUsageTable constructs an empty table.
func NewUsageTable() *UsageTable {
	return &UsageTable{
		usageMap: make(map[string]*UsageRecord),
		quotaMap: make(map[string]*UsageRecord),
	}
}

// GetOrCreate returns the record for (qt, scheme, node), creating and
// registering it in usageMap on first reference. Callers must
// hold the owning BARD's mutex.
func (t *UsageTable) GetOrCreate(qt QuotaType, scheme Scheme, node string) *UsageRecord {
	key := CanonicalKey(qt, scheme, node)
	if u, ok := t.usageMap[key]; ok {
		return u
	}
	u := NewUsageRecord(qt, scheme, node)
	t.usageMap[key] = u
	return u
}

// Get looks up a record by canonical key without creating it.
func (t *UsageTable) Get(key string) (*UsageRecord, bool) {
	u, ok := t.usageMap[key]
	return u, ok
}

// SetQuota installs quota fields on the record for key and registers
// it in quotaMap, creating the underlying UsageRecord if needed.
func (t *UsageTable) SetQuota(qt QuotaType, scheme Scheme, node string, q Quota) *UsageRecord {
	u := t.GetOrCreate(qt, scheme, node)
	q.Modified = time.Now()
	u.Quota = q
	t.quotaMap[u.Key] = u
	return u
}

// ClearQuota removes the record from quotaMap and zeros its quota
// fields; the record remains in usageMap for accounting.
func (t *UsageTable) ClearQuota(key string) bool {
	u, ok := t.usageMap[key]
	if !ok {
		return false
	}
	u.Quota = Quota{Modified: time.Now()}
	delete(t.quotaMap, key)
	return true
}

// AllUsage returns every known record, in no particular order.
func (t *UsageTable) AllUsage() []*UsageRecord {
	out := make([]*UsageRecord, 0, len(t.usageMap))
	for _, u := range t.usageMap {
		out = append(out, u)
	}
	return out
}

// AllQuotas returns every record with a configured quota.
func (t *UsageTable) AllQuotas() []*UsageRecord {
	out := make([]*UsageRecord, 0, len(t.quotaMap))
	for _, u := range t.quotaMap {
		out = append(out, u)
	}
	return out
}
