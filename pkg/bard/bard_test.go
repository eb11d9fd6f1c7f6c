package bard

import (
	"testing"
	"time"
)

func dstEID(node string) EndpointID { return EndpointID{Scheme: SchemeIPN, Node: node, Service: "1"} }
func srcEID(node string) EndpointID { return EndpointID{Scheme: SchemeIPN, Node: node, Service: "1"} }

func newBundle(src, dst string, payload uint64) *Bundle {
	return NewBundle(srcEID(src), dstEID(dst), payload, time.Now().Add(time.Hour))
}

// fakeLink is a minimal bard.RestageLink for tests that need a routable
// RestageCL without standing up the real worker goroutines.
type fakeLink struct {
	name  string
	state CLState
}

func (f *fakeLink) Name() string     { return f.name }
func (f *fakeLink) State() CLState   { return f.state }
func (f *fakeLink) PartOfPool() bool { return true }
func (f *fakeLink) PauseForRescan()    {}
func (f *fakeLink) ResumeAfterRescan() {}
func (f *fakeLink) Rescan() error      { return nil }
func (f *fakeLink) RescanCompleted() <-chan struct{} {
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	return ch
}

// Scenario: accept under quota.
func TestAcceptUnderQuota(t *testing.T) {
	b := New(nil)
	if err := b.AddQuota(QuotaDst, SchemeIPN, "5", Quota{
		InternalBundles: 10,
		InternalBytes:   1_000_000,
		RefuseBundle:    true,
	}); err != nil {
		t.Fatalf("AddQuota: %v", err)
	}

	var accepted []*Bundle
	for i := 0; i < 10; i++ {
		bu := newBundle("1", "5", 1000)
		if !b.QueryAcceptBundle(bu) {
			t.Fatalf("bundle %d expected to be accepted", i)
		}
		b.BundleAccepted(bu)
		accepted = append(accepted, bu)
	}

	key := CanonicalKey(QuotaDst, SchemeIPN, "5")
	u, ok := b.table.Get(key)
	if !ok {
		t.Fatal("expected usage record to exist")
	}
	if u.InUseInternal.Bundles != 10 || u.InUseInternal.Bytes != 10_000 {
		t.Fatalf("InUseInternal = %+v, want {10 10000}", u.InUseInternal)
	}

	eleventh := newBundle("1", "5", 1000)
	if b.QueryAcceptBundle(eleventh) {
		t.Fatal("11th bundle expected to be refused")
	}
	// Even refused, the bundle is still resident in internal storage
	// and holds an internal reservation until the host deletes it.
	if u.ReservedInternal.Bundles != 1 {
		t.Fatalf("ReservedInternal = %+v, want the refused bundle's hold", u.ReservedInternal)
	}
	b.BundleDeleted(eleventh)

	// Conservation: delete everything, counters return to zero.
	for _, bu := range accepted {
		b.BundleDeleted(bu)
	}
	u, _ = b.table.Get(key)
	if u.InUseInternal.Bundles != 0 || u.InUseInternal.Bytes != 0 {
		t.Fatalf("after delete InUseInternal = %+v, want zero", u.InUseInternal)
	}
	if u.ReservedInternal.Bundles != 0 || u.ReservedInternal.Bytes != 0 {
		t.Fatalf("after delete ReservedInternal = %+v, want zero", u.ReservedInternal)
	}
}

// Scenario: reserve-then-reroute.
func TestReserveThenReroute(t *testing.T) {
	b := New(nil)
	l1 := &fakeLink{name: "L1", state: CLStateOnline}
	l2 := &fakeLink{name: "L2", state: CLStateOnline}
	b.RegisterRestageCL(l1)
	b.RegisterRestageCL(l2)

	if err := b.AddQuota(QuotaDst, SchemeIPN, "7", Quota{
		InternalBytes:   100,
		ExternalBytes:   1000,
		RestageLinkName: "L1",
	}); err != nil {
		t.Fatalf("AddQuota: %v", err)
	}

	bu := newBundle("1", "7", 200)
	if !b.QueryAcceptBundle(bu) {
		t.Fatal("expected external reservation to succeed on L1")
	}
	if bu.RestageLinkName != "L1" {
		t.Fatalf("RestageLinkName = %q, want L1", bu.RestageLinkName)
	}

	l1.state = CLStateError

	bu2 := newBundle("1", "7", 200)
	if !b.QueryAcceptBundle(bu2) {
		t.Fatal("expected external reservation to succeed on pool member L2")
	}
	if bu2.RestageLinkName != "L2" {
		t.Fatalf("RestageLinkName = %q, want L2", bu2.RestageLinkName)
	}
}

// Scenario: auto-reload fires at most once per 600s once committed
// percent drops to the reload threshold (20%).
func TestAutoReloadTriggersOnce(t *testing.T) {
	b := New(nil)
	if err := b.AddQuota(QuotaSrc, SchemeDTN, "alpha", Quota{
		InternalBundles: 10,
		AutoReload:      true,
	}); err != nil {
		t.Fatalf("AddQuota: %v", err)
	}

	var reloads int
	b.SetReloadIssuer(reloadIssuerFunc(func(string, string) { reloads++ }))

	key := CanonicalKey(QuotaSrc, SchemeDTN, "alpha")
	u, _ := b.table.Get(key)
	if u == nil {
		u = b.table.GetOrCreate(QuotaSrc, SchemeDTN, "alpha")
	}

	// Simulate 10 accepted internal bundles and 5 externally in-use
	// (restaged) bundles for this key directly on the record, then
	// delete 8 of the 10 internal bundles so committed-percent drops
	// to 20%, matching the scenario's setup.
	bundles := make([]*Bundle, 0, 10)
	for i := 0; i < 10; i++ {
		bu := &Bundle{Source: EndpointID{Scheme: SchemeDTN, Node: "alpha"}, Destination: EndpointID{Scheme: SchemeIPN, Node: "99", Service: "1"}, PayloadLen: 10}
		if !b.QueryAcceptBundle(bu) {
			t.Fatalf("bundle %d expected accepted", i)
		}
		b.BundleAccepted(bu)
		bundles = append(bundles, bu)
	}
	u.InUseExternal.Bundles = 5
	u.InUseExternal.Bytes = 500

	for i := 0; i < 8; i++ {
		b.BundleDeleted(bundles[i])
	}

	if reloads != 1 {
		t.Fatalf("reloads = %d, want exactly 1", reloads)
	}

	// A second delete within the 600s window must not re-trigger.
	b.BundleDeleted(bundles[8])
	if reloads != 1 {
		t.Fatalf("reloads after second delete = %d, want still 1 (throttled)", reloads)
	}
}

type reloadIssuerFunc func(linkName, key string)

func (f reloadIssuerFunc) IssueReload(linkName, key string) { f(linkName, key) }

// Repeated QueryAcceptBundle calls for the same bundle/side never
// double-reserve.
func TestRepeatedQueryAcceptDoesNotDoubleReserve(t *testing.T) {
	b := New(nil)
	if err := b.AddQuota(QuotaDst, SchemeIPN, "5", Quota{InternalBundles: 10, InternalBytes: 1_000_000}); err != nil {
		t.Fatalf("AddQuota: %v", err)
	}
	bu := newBundle("1", "5", 1000)
	for i := 0; i < 5; i++ {
		if !b.QueryAcceptBundle(bu) {
			t.Fatalf("call %d expected accepted", i)
		}
	}
	key := CanonicalKey(QuotaDst, SchemeIPN, "5")
	u, _ := b.table.Get(key)
	if u.ReservedInternal.Bundles != 1 || u.ReservedInternal.Bytes != 1000 {
		t.Fatalf("ReservedInternal = %+v, want {1 1000} (no double reservation)", u.ReservedInternal)
	}
}

// Quota enforcement: admission never leaves committed over quota.
func TestQuotaEnforcementNeverExceedsLimit(t *testing.T) {
	b := New(nil)
	if err := b.AddQuota(QuotaDst, SchemeIPN, "5", Quota{InternalBundles: 3, RefuseBundle: true}); err != nil {
		t.Fatalf("AddQuota: %v", err)
	}
	accepted := 0
	for i := 0; i < 10; i++ {
		bu := newBundle("1", "5", 10)
		if b.QueryAcceptBundle(bu) {
			accepted++
			b.BundleAccepted(bu)
		} else {
			// A refused bundle still holds an internal reservation
			// until the host drops it; model that here so committed
			// occupancy reflects only live bundles.
			b.BundleDeleted(bu)
		}
	}
	if accepted != 3 {
		t.Fatalf("accepted = %d, want 3", accepted)
	}
	key := CanonicalKey(QuotaDst, SchemeIPN, "5")
	u, _ := b.table.Get(key)
	if u.CommittedInternal().Bundles > u.InternalBundles {
		t.Fatalf("committed %d exceeds quota %d", u.CommittedInternal().Bundles, u.InternalBundles)
	}
}

// Payload length of 0 is charged as 1 byte.
func TestZeroPayloadChargedAsOneByte(t *testing.T) {
	b := New(nil)
	bu := newBundle("1", "5", 0)
	if !b.QueryAcceptBundle(bu) {
		t.Fatal("expected bundle with zero payload to be accepted (no quota configured)")
	}
	b.BundleAccepted(bu)
	key := CanonicalKey(QuotaDst, SchemeIPN, "5")
	u, _ := b.table.Get(key)
	if u.InUseInternal.Bytes != 1 {
		t.Fatalf("InUseInternal.Bytes = %d, want 1 (zero-length floor)", u.InUseInternal.Bytes)
	}
}

// With no quota configured, bundles are admitted internally
// and reservations are still tracked for later release.
func TestNoQuotaAlwaysAdmitsInternally(t *testing.T) {
	b := New(nil)
	bu := newBundle("1", "5", 5000)
	if !b.QueryAcceptBundle(bu) {
		t.Fatal("expected unconditional internal admission with no quota")
	}
	key := CanonicalKey(QuotaDst, SchemeIPN, "5")
	u, _ := b.table.Get(key)
	if u.ReservedInternal.Bundles != 1 || u.ReservedInternal.Bytes != 5000 {
		t.Fatalf("ReservedInternal = %+v, want {1 5000}", u.ReservedInternal)
	}
}

func TestDelQuotaClearsButKeepsRecord(t *testing.T) {
	b := New(nil)
	if err := b.AddQuota(QuotaDst, SchemeIPN, "5", Quota{InternalBundles: 10}); err != nil {
		t.Fatalf("AddQuota: %v", err)
	}
	if err := b.DelQuota(QuotaDst, SchemeIPN, "5"); err != nil {
		t.Fatalf("DelQuota: %v", err)
	}
	key := CanonicalKey(QuotaDst, SchemeIPN, "5")
	u, ok := b.table.Get(key)
	if !ok {
		t.Fatal("expected usage record to survive DelQuota")
	}
	if u.HasQuota() {
		t.Fatal("expected quota fields to be cleared")
	}
	for _, q := range b.Quotas() {
		if q.Key == key {
			t.Fatal("cleared quota should no longer appear in Quotas()")
		}
	}
}

func TestUnlimitedQuotaZeroesLimits(t *testing.T) {
	b := New(nil)
	if err := b.AddQuota(QuotaDst, SchemeIPN, "5", Quota{InternalBundles: 10, InternalBytes: 100}); err != nil {
		t.Fatalf("AddQuota: %v", err)
	}
	if err := b.UnlimitedQuota(QuotaDst, SchemeIPN, "5"); err != nil {
		t.Fatalf("UnlimitedQuota: %v", err)
	}
	// HasQuota only looks at nonzero internal limits, so an unlimited
	// (all zero) quota reports HasQuota() == false, i.e. unlimited
	// behaves exactly like "no quota configured".
	key := CanonicalKey(QuotaDst, SchemeIPN, "5")
	u, _ := b.table.Get(key)
	if u.HasQuota() {
		t.Fatal("expected all-zero quota to report HasQuota() == false (unlimited)")
	}
}
