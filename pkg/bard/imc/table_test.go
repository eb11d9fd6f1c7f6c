package imc

import (
	"sort"
	"testing"
)

func TestRecordKeys(t *testing.T) {
	cases := []struct {
		rec  Record
		want string
	}{
		{NewRegionMembership("marsnet", "7", OpAdd, false), "region_marsnet_7"},
		{NewGroupSubscription("19", "7", OpAdd, false), "group_19_7"},
		{NewManualJoin("19", "9", true), "manualjoin_19_9"},
		{Tombstone(), "dbclear"},
	}
	for _, tc := range cases {
		if got := tc.rec.Key(); got != tc.want {
			t.Fatalf("Key() = %q, want %q", got, tc.want)
		}
	}
}

func TestApplyAddRemove(t *testing.T) {
	tbl := NewTable()
	tbl.Apply(NewRegionMembership("marsnet", "7", OpAdd, false))
	tbl.Apply(NewRegionMembership("marsnet", "8", OpAdd, true))
	tbl.Apply(NewRegionMembership("marsnet", "7", OpRemove, false))

	members := tbl.RegionMembers("marsnet")
	if len(members) != 1 || members[0] != "8" {
		t.Fatalf("RegionMembers = %v, want [8]", members)
	}
}

func TestGroupSubscribersIncludeManualJoins(t *testing.T) {
	tbl := NewTable()
	tbl.Apply(NewGroupSubscription("19", "7", OpAdd, false))
	tbl.Apply(NewManualJoin("19", "9", false))
	tbl.Apply(NewGroupSubscription("19", "9", OpAdd, false)) // overlap with the manual join

	subs := tbl.GroupSubscribers("19")
	sort.Strings(subs)
	if len(subs) != 2 || subs[0] != "7" || subs[1] != "9" {
		t.Fatalf("GroupSubscribers = %v, want deduplicated [7 9]", subs)
	}

	if !tbl.IsManualJoin("19", "9") {
		t.Fatal("node 9 must be a manual join of group 19")
	}
	if tbl.IsManualJoin("19", "7") {
		t.Fatal("node 7 is a plain subscriber, not a manual join")
	}
}

func TestHomeRegion(t *testing.T) {
	tbl := NewTable()
	if tbl.HomeRegion() != "" {
		t.Fatal("empty table must have no home region")
	}
	tbl.Apply(NewHomeRegion("marsnet"))
	if tbl.HomeRegion() != "marsnet" {
		t.Fatalf("HomeRegion = %q", tbl.HomeRegion())
	}
}

func TestTombstoneClearsOnce(t *testing.T) {
	tbl := NewTable()
	tbl.Apply(NewGroupSubscription("19", "7", OpAdd, false))
	tbl.Apply(Tombstone())

	if !tbl.Cleared() {
		t.Fatal("tombstone must mark the table cleared")
	}
	if len(tbl.All()) != 0 {
		t.Fatal("tombstone must wipe existing records")
	}

	// Records applied after the tombstone stick: the clear happens at
	// most once, it is not a standing filter.
	tbl.Apply(NewGroupSubscription("19", "8", OpAdd, false))
	if len(tbl.All()) != 1 {
		t.Fatal("records after the tombstone must be retained")
	}
}
