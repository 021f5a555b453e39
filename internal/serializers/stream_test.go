package serializers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/testhelpers"
	"github.com/faultline/faultline/internal/tsdb"
)

func newTestTSDB(t *testing.T) *tsdb.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	return tsdb.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestStreamSerializer_RejectsUnknownPeriod(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	base := newTestSerializer(db)

	if _, err := NewStreamGroupSerializer(base, newTestTSDB(t), "7d"); err == nil {
		t.Error("unknown stats period should be rejected")
	}
	if _, err := NewStreamGroupSerializer(base, newTestTSDB(t), "24h"); err != nil {
		t.Errorf("24h should be accepted: %v", err)
	}
	if _, err := NewStreamGroupSerializer(base, newTestTSDB(t), ""); err != nil {
		t.Errorf("empty period should be accepted: %v", err)
	}
}

func TestStreamSerializer_StatsSeries(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	fx := testhelpers.NewFixture(t, db)
	series := newTestTSDB(t)

	group := testhelpers.NewGroupBuilder(fx.Project.ID).Create(t, db)

	// Three events in the current hour bucket.
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := series.Increment(ctx, group.ID, nil, testNow); err != nil {
			t.Fatal(err)
		}
	}

	base := newTestSerializer(db)
	stream, err := NewStreamGroupSerializer(base, series, "24h")
	if err != nil {
		t.Fatal(err)
	}
	stream.Now = func() time.Time { return testNow }

	attrs, err := stream.GetAttrs([]*database.Group{group}, nil)
	if err != nil {
		t.Fatal(err)
	}
	result := stream.Serialize(group, attrs[group.ID], nil)

	points, ok := result.Stats["24h"]
	if !ok {
		t.Fatal("stats missing 24h series")
	}
	if len(points) != 24 {
		t.Fatalf("24h series has %d points, want 24", len(points))
	}
	last := points[len(points)-1]
	if last[1] != 3 {
		t.Errorf("current bucket = %d, want 3", last[1])
	}
	for _, p := range points[:len(points)-1] {
		if p[1] != 0 {
			t.Errorf("bucket %d should be empty, got %d", p[0], p[1])
		}
	}
}

func TestStreamSerializer_EmptySeriesWhenBackendDown(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	fx := testhelpers.NewFixture(t, db)

	mr := miniredis.RunT(t)
	series := tsdb.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	mr.Close()

	group := testhelpers.NewGroupBuilder(fx.Project.ID).Create(t, db)

	base := newTestSerializer(db)
	stream, err := NewStreamGroupSerializer(base, series, "14d")
	if err != nil {
		t.Fatal(err)
	}
	stream.Now = func() time.Time { return testNow }

	attrs, err := stream.GetAttrs([]*database.Group{group}, nil)
	if err != nil {
		t.Fatalf("backend failure must not fail serialization: %v", err)
	}
	result := stream.Serialize(group, attrs[group.ID], nil)

	points := result.Stats["14d"]
	if len(points) != 14 {
		t.Fatalf("14d series has %d points, want 14", len(points))
	}
	for _, p := range points {
		if p[1] != 0 {
			t.Errorf("degraded series should be all zeros, got %d", p[1])
		}
	}
}

func TestStreamSerializer_NoBackendConfigured(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	fx := testhelpers.NewFixture(t, db)

	group := testhelpers.NewGroupBuilder(fx.Project.ID).Create(t, db)

	// Stats can be requested even when no time-series store is wired up.
	base := newTestSerializer(db)
	stream, err := NewStreamGroupSerializer(base, nil, "24h")
	if err != nil {
		t.Fatal(err)
	}
	stream.Now = func() time.Time { return testNow }

	attrs, err := stream.GetAttrs([]*database.Group{group}, nil)
	if err != nil {
		t.Fatalf("missing store must not fail serialization: %v", err)
	}
	result := stream.Serialize(group, attrs[group.ID], nil)

	points := result.Stats["24h"]
	if len(points) != 24 {
		t.Fatalf("24h series has %d points, want 24", len(points))
	}
	for _, p := range points {
		if p[1] != 0 {
			t.Errorf("series without a store should be all zeros, got %d", p[1])
		}
	}
}

func TestStreamSerializer_MatchingEventPassthrough(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	fx := testhelpers.NewFixture(t, db)

	group := testhelpers.NewGroupBuilder(fx.Project.ID).Create(t, db)

	base := newTestSerializer(db)
	stream, err := NewStreamGroupSerializer(base, newTestTSDB(t), "")
	if err != nil {
		t.Fatal(err)
	}
	stream.MatchingEventID = "event-uuid-1"
	stream.MatchingEventEnvironment = "production"

	attrs, err := stream.GetAttrs([]*database.Group{group}, nil)
	if err != nil {
		t.Fatal(err)
	}
	result := stream.Serialize(group, attrs[group.ID], nil)

	if result.MatchingEventID != "event-uuid-1" {
		t.Errorf("matchingEventId = %q", result.MatchingEventID)
	}
	if result.MatchingEventEnvironment != "production" {
		t.Errorf("matchingEventEnvironment = %q", result.MatchingEventEnvironment)
	}
	if result.Stats != nil {
		t.Error("no stats period requested, stats should be omitted")
	}
}

func TestTagBasedStreamSerializer_SeenTimestamps(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	fx := testhelpers.NewFixture(t, db)

	group := testhelpers.NewGroupBuilder(fx.Project.ID).Create(t, db)

	base := newTestSerializer(db)
	stream, err := NewStreamGroupSerializer(base, newTestTSDB(t), "")
	if err != nil {
		t.Fatal(err)
	}

	tagFirst := testNow.Add(-2 * time.Hour)
	tagLast := testNow.Add(-10 * time.Minute)
	tagged := &TagBasedStreamGroupSerializer{
		StreamGroupSerializer: stream,
		Tags: map[uint]database.GroupTagValue{
			group.ID: {FirstSeen: tagFirst, LastSeen: tagLast},
		},
	}

	attrs, err := tagged.GetAttrs([]*database.Group{group}, nil)
	if err != nil {
		t.Fatal(err)
	}
	result := tagged.Serialize(group, attrs[group.ID], nil)

	if result.TagFirstSeen == nil || !result.TagFirstSeen.Equal(tagFirst) {
		t.Errorf("tagFirstSeen = %v, want %v", result.TagFirstSeen, tagFirst)
	}
	if result.TagLastSeen == nil || !result.TagLastSeen.Equal(tagLast) {
		t.Errorf("tagLastSeen = %v, want %v", result.TagLastSeen, tagLast)
	}
}
