package durablestore

import (
	"testing"

	"github.com/dtn-bard/bard/pkg/bard"
	"github.com/dtn-bard/bard/pkg/bard/imc"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestQuotaPersistenceRoundTrip(t *testing.T) {
	s := openTestStore(t)

	key := bard.CanonicalKey(bard.QuotaDst, bard.SchemeIPN, "5")
	q := bard.Quota{
		InternalBundles: 10,
		InternalBytes:   1_000_000,
		ExternalBundles: 100,
		ExternalBytes:   10_000_000,
		AutoReload:      true,
		RestageLinkName: "primary",
		InDatastore:     true,
	}
	if err := s.PutQuota(key, bard.QuotaDst, bard.SchemeIPN, "5", q); err != nil {
		t.Fatalf("PutQuota: %v", err)
	}

	rows, err := s.LoadQuotas()
	if err != nil {
		t.Fatalf("LoadQuotas: %v", err)
	}
	row, ok := rows[key]
	if !ok {
		t.Fatalf("key %q missing from loaded quotas", key)
	}
	if row.QuotaType != bard.QuotaDst || row.Scheme != bard.SchemeIPN || row.Node != "5" {
		t.Fatalf("identity = %+v", row)
	}
	if row.Quota.InternalBytes != q.InternalBytes || row.Quota.RestageLinkName != "primary" {
		t.Fatalf("quota = %+v, want %+v", row.Quota, q)
	}
}

func TestQuotaOverwriteAndDelete(t *testing.T) {
	s := openTestStore(t)
	key := bard.CanonicalKey(bard.QuotaSrc, bard.SchemeDTN, "alpha")

	if err := s.PutQuota(key, bard.QuotaSrc, bard.SchemeDTN, "alpha", bard.Quota{InternalBundles: 1}); err != nil {
		t.Fatalf("PutQuota: %v", err)
	}
	if err := s.PutQuota(key, bard.QuotaSrc, bard.SchemeDTN, "alpha", bard.Quota{InternalBundles: 2}); err != nil {
		t.Fatalf("PutQuota overwrite: %v", err)
	}
	rows, err := s.LoadQuotas()
	if err != nil {
		t.Fatalf("LoadQuotas: %v", err)
	}
	if rows[key].Quota.InternalBundles != 2 {
		t.Fatalf("InternalBundles = %d, want overwrite to win", rows[key].Quota.InternalBundles)
	}

	if err := s.DeleteQuota(key); err != nil {
		t.Fatalf("DeleteQuota: %v", err)
	}
	// Deleting a missing key is not an error.
	if err := s.DeleteQuota(key); err != nil {
		t.Fatalf("DeleteQuota (absent): %v", err)
	}
	rows, err = s.LoadQuotas()
	if err != nil {
		t.Fatalf("LoadQuotas: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("loaded %d quotas after delete, want 0", len(rows))
	}
}

func TestIMCRecordRoundTrip(t *testing.T) {
	s := openTestStore(t)

	recs := []imc.Record{
		imc.NewHomeRegion("marsnet"),
		imc.NewRegionMembership("marsnet", "7", imc.OpAdd, true),
		imc.NewGroupSubscription("19", "7", imc.OpAdd, false),
		imc.NewManualJoin("19", "9", false),
	}
	for _, r := range recs {
		if err := s.PutIMCRecord(r); err != nil {
			t.Fatalf("PutIMCRecord(%s): %v", r.Key(), err)
		}
	}

	loaded, err := s.LoadIMCRecords()
	if err != nil {
		t.Fatalf("LoadIMCRecords: %v", err)
	}
	if len(loaded) != len(recs) {
		t.Fatalf("loaded %d records, want %d", len(loaded), len(recs))
	}

	tbl := imc.NewTable()
	for _, r := range loaded {
		tbl.Apply(r)
	}
	if tbl.HomeRegion() != "marsnet" {
		t.Fatalf("HomeRegion = %q", tbl.HomeRegion())
	}
	if !tbl.IsManualJoin("19", "9") {
		t.Fatal("manual join must survive persistence")
	}
}

func TestIMCClearRemovesOnlyIMCPrefix(t *testing.T) {
	s := openTestStore(t)

	key := bard.CanonicalKey(bard.QuotaDst, bard.SchemeIPN, "5")
	if err := s.PutQuota(key, bard.QuotaDst, bard.SchemeIPN, "5", bard.Quota{InternalBundles: 1}); err != nil {
		t.Fatalf("PutQuota: %v", err)
	}
	if err := s.PutIMCRecord(imc.NewHomeRegion("marsnet")); err != nil {
		t.Fatalf("PutIMCRecord: %v", err)
	}

	if err := s.ClearIMCRecords(); err != nil {
		t.Fatalf("ClearIMCRecords: %v", err)
	}

	imcs, err := s.LoadIMCRecords()
	if err != nil {
		t.Fatalf("LoadIMCRecords: %v", err)
	}
	if len(imcs) != 0 {
		t.Fatalf("loaded %d IMC records after clear, want 0", len(imcs))
	}
	quotas, err := s.LoadQuotas()
	if err != nil {
		t.Fatalf("LoadQuotas: %v", err)
	}
	if len(quotas) != 1 {
		t.Fatal("quota table must be untouched by an IMC clear")
	}
}
