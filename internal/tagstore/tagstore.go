// Package tagstore maintains denormalized per-group tag aggregates. It backs
// the serializer's distinct-user counts and per-environment first/last-seen
// lookups, and is fed by event ingestion.
package tagstore

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/faultline/faultline/internal/database"
)

// KeyUser is the tag key tracking distinct users per group. One row per
// distinct value, so a row count is a distinct-user count.
const KeyUser = "user"

// KeyEnvironment is the tag key recording per-environment occurrence windows.
const KeyEnvironment = "environment"

// Store queries and maintains GroupTagValue aggregates
type Store struct {
	db *gorm.DB
}

// New creates a tag store on top of the given database
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetGroupsUserCounts returns the distinct-user count per group, optionally
// scoped to an environment. Groups with no user tags are absent from the map.
func (s *Store) GetGroupsUserCounts(projectID uint, groupIDs []uint, environmentID *uint) (map[uint]int, error) {
	if len(groupIDs) == 0 {
		return map[uint]int{}, nil
	}

	type row struct {
		GroupID uint
		Total   int
	}

	q := s.db.Model(&database.GroupTagValue{}).
		Select("group_id, COUNT(*) AS total").
		Where("project_id = ? AND group_id IN ? AND key = ?", projectID, groupIDs, KeyUser)
	q = scopeEnvironment(q, environmentID)

	var rows []row
	if err := q.Group("group_id").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[uint]int, len(rows))
	for _, r := range rows {
		counts[r.GroupID] = r.Total
	}
	return counts, nil
}

// GetGroupListTagValue returns the aggregate row for a specific (key, value)
// pair per group within an environment. Used by the serializer to narrow a
// group's counters to one environment.
func (s *Store) GetGroupListTagValue(projectID uint, groupIDs []uint, environmentID uint, key, value string) (map[uint]database.GroupTagValue, error) {
	if len(groupIDs) == 0 {
		return map[uint]database.GroupTagValue{}, nil
	}

	var rows []database.GroupTagValue
	err := s.db.
		Where("project_id = ? AND group_id IN ? AND environment_id = ? AND key = ? AND value = ?",
			projectID, groupIDs, environmentID, key, value).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[uint]database.GroupTagValue, len(rows))
	for _, r := range rows {
		result[r.GroupID] = r
	}
	return result, nil
}

// RecordTagValue upserts one tag observation: it creates the aggregate row on
// first sight and bumps times_seen/last_seen afterwards.
func (s *Store) RecordTagValue(projectID, groupID uint, environmentID *uint, key, value string, ts time.Time) error {
	q := s.db.
		Where("project_id = ? AND group_id = ? AND key = ? AND value = ?", projectID, groupID, key, value)
	q = scopeEnvironment(q, environmentID)

	var tv database.GroupTagValue
	err := q.First(&tv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		tv = database.GroupTagValue{
			ProjectID:     projectID,
			GroupID:       groupID,
			EnvironmentID: environmentID,
			Key:           key,
			Value:         value,
			TimesSeen:     1,
			FirstSeen:     ts,
			LastSeen:      ts,
		}
		return s.db.Create(&tv).Error
	}
	if err != nil {
		return err
	}

	return s.db.Model(&tv).Updates(map[string]interface{}{
		"times_seen": gorm.Expr("times_seen + 1"),
		"last_seen":  ts,
	}).Error
}

// scopeEnvironment narrows a query to an environment, or to the unscoped
// (NULL environment) aggregate rows.
func scopeEnvironment(q *gorm.DB, environmentID *uint) *gorm.DB {
	if environmentID == nil {
		return q.Where("environment_id IS NULL")
	}
	return q.Where("environment_id = ?", *environmentID)
}
