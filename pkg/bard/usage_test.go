package bard

import "testing"

func TestCountersSubClamps(t *testing.T) {
	c := Counters{Bundles: 2, Bytes: 100}
	if clamped := c.sub(1, 40); clamped {
		t.Fatal("sub within balance must not clamp")
	}
	if c.Bundles != 1 || c.Bytes != 60 {
		t.Fatalf("counters = %+v, want {1 60}", c)
	}
	if clamped := c.sub(5, 1000); !clamped {
		t.Fatal("sub past balance must report a clamp")
	}
	if c.Bundles != 0 || c.Bytes != 0 {
		t.Fatalf("counters = %+v, want zero after clamp", c)
	}
}

func TestHasQuota(t *testing.T) {
	var q Quota
	if q.HasQuota() {
		t.Fatal("zero quota must report HasQuota() == false")
	}
	q.InternalBundles = 1
	if !q.HasQuota() {
		t.Fatal("bundle limit alone must report HasQuota() == true")
	}
	q = Quota{InternalBytes: 1}
	if !q.HasQuota() {
		t.Fatal("byte limit alone must report HasQuota() == true")
	}
	// External limits alone do not constitute a quota.
	q = Quota{ExternalBundles: 10, ExternalBytes: 10}
	if q.HasQuota() {
		t.Fatal("external-only limits must report HasQuota() == false")
	}
}

func TestCommittedHelpers(t *testing.T) {
	a := Accounting{
		InUseInternal:     Counters{Bundles: 3, Bytes: 300},
		ReservedInternal:  Counters{Bundles: 1, Bytes: 100},
		InUseExternal:     Counters{Bundles: 5, Bytes: 500},
		ReservedExternal:  Counters{Bundles: 2, Bytes: 200},
		LastInUseExternal: Counters{Bundles: 9, Bytes: 900},
	}
	if got := a.CommittedInternal(); got != (Counters{Bundles: 4, Bytes: 400}) {
		t.Fatalf("CommittedInternal = %+v", got)
	}
	if got := a.CommittedExternal(); got != (Counters{Bundles: 7, Bytes: 700}) {
		t.Fatalf("CommittedExternal = %+v", got)
	}
	// During a rescan the frozen snapshot replaces the live in-use term.
	if got := a.LastCommittedExternal(); got != (Counters{Bundles: 11, Bytes: 1100}) {
		t.Fatalf("LastCommittedExternal = %+v", got)
	}
}

func TestUsageTableSharesRecordBetweenMaps(t *testing.T) {
	tbl := NewUsageTable()
	u := tbl.SetQuota(QuotaDst, SchemeIPN, "5", Quota{InternalBundles: 10})

	fromUsage, ok := tbl.Get(u.Key)
	if !ok {
		t.Fatal("quota record must also be registered in the usage map")
	}
	if fromUsage != u {
		t.Fatal("quota map and usage map must share the same *UsageRecord")
	}

	// Mutation through one view is visible through the other.
	fromUsage.InUseInternal.add(1, 50)
	for _, q := range tbl.AllQuotas() {
		if q.Key == u.Key && q.InUseInternal.Bytes != 50 {
			t.Fatal("accounting mutation not visible through quota map")
		}
	}
}

func TestUsageTableGetOrCreateIsIdempotent(t *testing.T) {
	tbl := NewUsageTable()
	a := tbl.GetOrCreate(QuotaDst, SchemeIPN, "5")
	b := tbl.GetOrCreate(QuotaDst, SchemeIPN, "5")
	if a != b {
		t.Fatal("GetOrCreate must return the same record for the same triple")
	}
	if len(tbl.AllUsage()) != 1 {
		t.Fatalf("usage map size = %d, want 1", len(tbl.AllUsage()))
	}
}

func TestClearQuotaKeepsUsageRecord(t *testing.T) {
	tbl := NewUsageTable()
	u := tbl.SetQuota(QuotaSrc, SchemeDTN, "alpha", Quota{InternalBytes: 100})
	u.InUseInternal.add(3, 30)

	if !tbl.ClearQuota(u.Key) {
		t.Fatal("ClearQuota on an existing key must succeed")
	}
	if tbl.ClearQuota("no-such-key") {
		t.Fatal("ClearQuota on an unknown key must report false")
	}

	kept, ok := tbl.Get(u.Key)
	if !ok {
		t.Fatal("record must survive ClearQuota for accounting")
	}
	if kept.HasQuota() {
		t.Fatal("quota fields must be zeroed")
	}
	if kept.InUseInternal.Bundles != 3 {
		t.Fatal("accounting must be untouched by ClearQuota")
	}
	if len(tbl.AllQuotas()) != 0 {
		t.Fatal("cleared quota must leave the quota map")
	}
}

func TestNewUsageRecordNodeNumber(t *testing.T) {
	u := NewUsageRecord(QuotaDst, SchemeIPN, "42")
	if u.NodeNumber != 42 {
		t.Fatalf("NodeNumber = %d, want 42", u.NodeNumber)
	}
	d := NewUsageRecord(QuotaDst, SchemeDTN, "alpha")
	if d.NodeNumber != 0 {
		t.Fatalf("DTN NodeNumber = %d, want 0", d.NodeNumber)
	}
}
