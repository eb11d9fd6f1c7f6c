package bard

import "testing"

// publishingLink is a RestageLink whose Rescan republishes a fixed set
// of totals, standing in for a real directory walk.
type publishingLink struct {
	fakeLink
	owner  *BARD
	totals map[string]Counters

	sawRescanning bool
}

func (p *publishingLink) Rescan() error {
	p.sawRescanning = p.owner.Rescanning()
	return p.owner.ApplyRescanTotals(p.totals)
}

// In-memory form of the out-of-band-delete scenario: external in-use
// settles at what the
// link actually found, even when files vanished behind BARD's back.
func TestRescanRebuildsExternalInUse(t *testing.T) {
	b := New(nil)
	key := CanonicalKey(QuotaDst, SchemeIPN, "5")

	u := b.table.GetOrCreate(QuotaDst, SchemeIPN, "5")
	u.InUseExternal = Counters{Bundles: 3, Bytes: 300}

	link := &publishingLink{
		fakeLink: fakeLink{name: "L1", state: CLStateOnline},
		owner:    b,
		totals:   map[string]Counters{key: {Bundles: 2, Bytes: 200}},
	}
	b.RegisterRestageCL(link)

	if err := b.Rescan(); err != nil {
		t.Fatalf("Rescan: %v", err)
	}

	if !link.sawRescanning {
		t.Fatal("link rescan must run while BARD reports rescanning")
	}
	if b.Rescanning() {
		t.Fatal("rescanning flag must clear after completion")
	}
	if u.InUseExternal != (Counters{Bundles: 2, Bytes: 200}) {
		t.Fatalf("InUseExternal = %+v, want {2 200}", u.InUseExternal)
	}
	if u.LastInUseExternal != (Counters{Bundles: 3, Bytes: 300}) {
		t.Fatalf("LastInUseExternal = %+v, want the pre-rescan snapshot {3 300}", u.LastInUseExternal)
	}
}

// Two consecutive rescans with no intervening restage/reload/delete
// produce identical external in-use counters.
func TestRescanIdempotent(t *testing.T) {
	b := New(nil)
	key := CanonicalKey(QuotaSrc, SchemeDTN, "alpha")

	link := &publishingLink{
		fakeLink: fakeLink{name: "L1", state: CLStateOnline},
		owner:    b,
		totals:   map[string]Counters{key: {Bundles: 4, Bytes: 400}},
	}
	b.RegisterRestageCL(link)

	if err := b.Rescan(); err != nil {
		t.Fatalf("first Rescan: %v", err)
	}
	u, _ := b.table.Get(key)
	first := u.InUseExternal

	if err := b.Rescan(); err != nil {
		t.Fatalf("second Rescan: %v", err)
	}
	if u.InUseExternal != first {
		t.Fatalf("second rescan changed counters: %+v -> %+v", first, u.InUseExternal)
	}
}

// A key spread across two links sums both contributions.
func TestRescanSumsAcrossLinks(t *testing.T) {
	b := New(nil)
	key := CanonicalKey(QuotaDst, SchemeIPN, "9")

	for _, link := range []*publishingLink{
		{fakeLink: fakeLink{name: "L1", state: CLStateOnline}, owner: b,
			totals: map[string]Counters{key: {Bundles: 1, Bytes: 100}}},
		{fakeLink: fakeLink{name: "L2", state: CLStateOnline}, owner: b,
			totals: map[string]Counters{key: {Bundles: 2, Bytes: 200}}},
	} {
		b.RegisterRestageCL(link)
	}

	if err := b.Rescan(); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	u, ok := b.table.Get(key)
	if !ok {
		t.Fatal("rescan must create usage records for keys it discovers")
	}
	if u.InUseExternal != (Counters{Bundles: 3, Bytes: 300}) {
		t.Fatalf("InUseExternal = %+v, want {3 300}", u.InUseExternal)
	}
}

// A second rescan request while one is active is refused.
func TestRescanRefusesConcurrent(t *testing.T) {
	b := New(nil)
	b.mu.Lock()
	b.rescanning = true
	b.mu.Unlock()
	if err := b.Rescan(); err != ErrRescanInProgress {
		t.Fatalf("Rescan during rescan = %v, want ErrRescanInProgress", err)
	}
}
