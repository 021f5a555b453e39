package tagstore

import (
	"testing"
	"time"

	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/testhelpers"
)

func TestRecordTagValue_UpsertsAggregates(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	store := New(db)

	first := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	if err := store.RecordTagValue(1, 1, nil, KeyUser, "alice", first); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordTagValue(1, 1, nil, KeyUser, "alice", second); err != nil {
		t.Fatal(err)
	}

	var tv database.GroupTagValue
	if err := db.First(&tv).Error; err != nil {
		t.Fatal(err)
	}
	if tv.TimesSeen != 2 {
		t.Errorf("times_seen = %d, want 2", tv.TimesSeen)
	}
	if !tv.FirstSeen.Equal(first) {
		t.Errorf("first_seen = %v, want %v", tv.FirstSeen, first)
	}
	if !tv.LastSeen.Equal(second) {
		t.Errorf("last_seen = %v, want %v", tv.LastSeen, second)
	}

	var count int64
	db.Model(&database.GroupTagValue{}).Count(&count)
	if count != 1 {
		t.Errorf("repeated observations must not create new rows, got %d", count)
	}
}

func TestGetGroupsUserCounts(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	store := New(db)
	ts := time.Now()

	// Group 1: two distinct users; group 2: one; group 3: none.
	for _, u := range []string{"alice", "bob"} {
		if err := store.RecordTagValue(1, 1, nil, KeyUser, u, ts); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.RecordTagValue(1, 2, nil, KeyUser, "alice", ts); err != nil {
		t.Fatal(err)
	}
	// A repeat observation does not add a distinct user.
	if err := store.RecordTagValue(1, 1, nil, KeyUser, "alice", ts); err != nil {
		t.Fatal(err)
	}
	// Non-user tags are ignored by user counting.
	if err := store.RecordTagValue(1, 3, nil, KeyEnvironment, "production", ts); err != nil {
		t.Fatal(err)
	}

	counts, err := store.GetGroupsUserCounts(1, []uint{1, 2, 3}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if counts[1] != 2 {
		t.Errorf("group 1 user count = %d, want 2", counts[1])
	}
	if counts[2] != 1 {
		t.Errorf("group 2 user count = %d, want 1", counts[2])
	}
	if _, ok := counts[3]; ok {
		t.Error("group 3 has no user tags and should be absent")
	}
}

func TestGetGroupsUserCounts_EnvironmentScoped(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	store := New(db)
	ts := time.Now()
	env := uint(5)

	if err := store.RecordTagValue(1, 1, nil, KeyUser, "alice", ts); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordTagValue(1, 1, &env, KeyUser, "alice", ts); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordTagValue(1, 1, nil, KeyUser, "bob", ts); err != nil {
		t.Fatal(err)
	}

	scoped, err := store.GetGroupsUserCounts(1, []uint{1}, &env)
	if err != nil {
		t.Fatal(err)
	}
	if scoped[1] != 1 {
		t.Errorf("env-scoped count = %d, want 1", scoped[1])
	}

	unscoped, err := store.GetGroupsUserCounts(1, []uint{1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if unscoped[1] != 2 {
		t.Errorf("unscoped count = %d, want 2", unscoped[1])
	}
}

func TestGetGroupListTagValue(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	store := New(db)
	ts := time.Now()
	env := uint(5)

	if err := store.RecordTagValue(1, 1, &env, KeyEnvironment, "production", ts); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordTagValue(1, 2, &env, KeyEnvironment, "staging", ts); err != nil {
		t.Fatal(err)
	}

	values, err := store.GetGroupListTagValue(1, []uint{1, 2}, env, KeyEnvironment, "production")
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 1 {
		t.Fatalf("expected one matching row, got %d", len(values))
	}
	if values[1].Value != "production" {
		t.Errorf("value = %q, want production", values[1].Value)
	}
}

func TestQueries_EmptyGroupList(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	store := New(db)

	counts, err := store.GetGroupsUserCounts(1, nil, nil)
	if err != nil || len(counts) != 0 {
		t.Errorf("empty group list: counts=%v err=%v", counts, err)
	}
	values, err := store.GetGroupListTagValue(1, nil, 1, KeyEnvironment, "x")
	if err != nil || len(values) != 0 {
		t.Errorf("empty group list: values=%v err=%v", values, err)
	}
}
