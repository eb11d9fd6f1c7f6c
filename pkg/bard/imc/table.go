package imc

import "sync"

// Table is an in-memory projection of the durable IMC record log: the
// last operation observed per key wins, same as replaying the durable
// store's records in order at startup.
type Table struct {
	mu         sync.RWMutex
	records    map[string]Record
	homeRegion string
	cleared    bool
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{records: make(map[string]Record)}
}

// Apply replays one record into the table, honoring its Operation.
func (t *Table) Apply(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch r.Type {
	case RecordTombstone:
		t.cleared = true
		t.records = make(map[string]Record)
		return
	case RecordHomeRegion:
		t.homeRegion = r.RegionOrGroup
		return
	}

	switch r.Operation {
	case OpRemove:
		delete(t.records, r.Key())
	default:
		t.records[r.Key()] = r
	}
}

// HomeRegion returns the node's configured home region, if any.
func (t *Table) HomeRegion() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.homeRegion
}

// Cleared reports whether a DB-clear tombstone has been applied, so
// startup configuration knows not to clear again.
func (t *Table) Cleared() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cleared
}

// RegionMembers returns every node currently recorded as a member of
// region.
func (t *Table) RegionMembers(region string) []string {
	return t.nodesOf(RecordRegion, region)
}

// GroupSubscribers returns every node currently subscribed to group,
// including nodes with a manual join.
func (t *Table) GroupSubscribers(group string) []string {
	subs := t.nodesOf(RecordGroup, group)
	joins := t.nodesOf(RecordManualJoin, group)
	seen := make(map[string]bool, len(subs))
	out := make([]string, 0, len(subs)+len(joins))
	for _, n := range subs {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, n := range joins {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// IsManualJoin reports whether node is a manual-join member of group,
// meaning bundles for it must be retained absent a live registration.
func (t *Table) IsManualJoin(group, node string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.records[Record{Type: RecordManualJoin, RegionOrGroup: group, NodeOrID: node}.Key()]
	return ok && r.Type == RecordManualJoin
}

func (t *Table) nodesOf(typ RecordType, name string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for _, r := range t.records {
		if r.Type == typ && r.RegionOrGroup == name {
			out = append(out, r.NodeOrID)
		}
	}
	return out
}

// All returns every record currently held, for durable-store
// persistence or diagnostic dump.
func (t *Table) All() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, r)
	}
	return out
}
