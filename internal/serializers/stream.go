package serializers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/tsdb"
)

// StatsPeriod defines a supported stats window as a segment count and the
// interval each segment covers.
type StatsPeriod struct {
	Segments int
	Interval time.Duration
	Rollup   time.Duration
}

// StatsPeriods enumerates the selectable stats windows
var StatsPeriods = map[string]StatsPeriod{
	"24h": {Segments: 24, Interval: time.Hour, Rollup: tsdb.RollupHour},
	"14d": {Segments: 14, Interval: 24 * time.Hour, Rollup: tsdb.RollupDay},
}

// StreamGroupSerializer augments the base projection with a time series per
// group for list views. A failing time-series backend degrades to zero-filled
// series instead of failing the request.
type StreamGroupSerializer struct {
	*GroupSerializer

	tsdb        *tsdb.Store
	statsPeriod string

	// MatchingEventID, when set, is echoed on every serialized group of
	// the call. Search backends use it to carry the matched event through.
	MatchingEventID          string
	MatchingEventEnvironment string
}

// NewStreamGroupSerializer wraps a base serializer with time-series stats.
// statsPeriod must be a key of StatsPeriods or empty to skip stats.
func NewStreamGroupSerializer(base *GroupSerializer, store *tsdb.Store, statsPeriod string) (*StreamGroupSerializer, error) {
	if statsPeriod != "" {
		if _, ok := StatsPeriods[statsPeriod]; !ok {
			return nil, errors.New("invalid stats period: " + statsPeriod)
		}
	}
	return &StreamGroupSerializer{
		GroupSerializer: base,
		tsdb:            store,
		statsPeriod:     statsPeriod,
	}, nil
}

// GetAttrs extends the base aggregation with one batched time-series read
func (s *StreamGroupSerializer) GetAttrs(items []*database.Group, user *database.User) (map[uint]*Attrs, error) {
	attrs, err := s.GroupSerializer.GetAttrs(items, user)
	if err != nil {
		return nil, err
	}
	if s.statsPeriod == "" || len(items) == 0 {
		return attrs, nil
	}

	period := StatsPeriods[s.statsPeriod]
	now := s.Now()
	start := now.Add(-time.Duration(period.Segments-1) * period.Interval)

	itemIDs := make([]uint, len(items))
	for i, item := range items {
		itemIDs[i] = item.ID
	}

	var environmentID *uint
	if env, err := s.environment(); err == nil && env != nil {
		environmentID = &env.ID
	}

	// A nil store means stats are disabled (no Redis configured); serve the
	// zero-filled shape instead of failing the request.
	var series map[uint][]tsdb.Point
	if s.tsdb != nil {
		series, err = s.tsdb.Range(context.Background(), itemIDs, environmentID, start, now, period.Rollup)
		if err != nil {
			log.Printf("Time-series read failed, serving empty stats: %v", err)
			series = nil
		}
	}
	for _, item := range items {
		points := series[item.ID]
		if points == nil {
			points = tsdb.MakeSeries(0, start, now, period.Rollup)
		}
		attrs[item.ID].Stats = points
	}
	return attrs, nil
}

// Serialize projects one group including its stats window
func (s *StreamGroupSerializer) Serialize(group *database.Group, attrs *Attrs, user *database.User) GroupResponse {
	result := s.GroupSerializer.Serialize(group, attrs, user)
	if s.statsPeriod != "" {
		result.Stats = map[string][]tsdb.Point{
			s.statsPeriod: attrs.Stats,
		}
	}
	if s.MatchingEventID != "" {
		result.MatchingEventID = s.MatchingEventID
		result.MatchingEventEnvironment = s.MatchingEventEnvironment
	}
	return result
}

// TagBasedStreamGroupSerializer overlays per-tag first/last seen timestamps
// on the stream projection, for list views filtered by a tag value.
type TagBasedStreamGroupSerializer struct {
	*StreamGroupSerializer

	// Tags maps group ID to the tag value row that matched the filter.
	Tags map[uint]database.GroupTagValue
}

// Serialize projects one group with tag-scoped seen timestamps
func (s *TagBasedStreamGroupSerializer) Serialize(group *database.Group, attrs *Attrs, user *database.User) GroupResponse {
	result := s.StreamGroupSerializer.Serialize(group, attrs, user)
	if tag, ok := s.Tags[group.ID]; ok {
		lastSeen := tag.LastSeen
		firstSeen := tag.FirstSeen
		result.TagLastSeen = &lastSeen
		result.TagFirstSeen = &firstSeen
	}
	return result
}
