package database

import "time"

// GroupTagValue is a denormalized per-group tag aggregate, optionally scoped
// to an environment. The tagstore package maintains and queries these rows.
type GroupTagValue struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProjectID     uint      `gorm:"not null;index:idx_tag_values_lookup" json:"project_id"`
	GroupID       uint      `gorm:"not null;index:idx_tag_values_lookup" json:"group_id"`
	EnvironmentID *uint     `gorm:"index" json:"environment_id,omitempty"`
	Key           string    `gorm:"size:64;not null;index:idx_tag_values_lookup" json:"key"`
	Value         string    `gorm:"size:255;not null" json:"value"`
	TimesSeen     int       `gorm:"default:1" json:"times_seen"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
}

func (GroupTagValue) TableName() string {
	return "group_tag_values"
}

// Event is a single stored error occurrence belonging to a group
type Event struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      string    `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	ProjectID uint      `gorm:"not null;index" json:"project_id"`
	GroupID   uint      `gorm:"not null;index" json:"group_id"`
	Message   string    `gorm:"type:text" json:"message"`
	Level     int       `gorm:"default:40" json:"level"`
	Tags      JSONB     `gorm:"type:jsonb" json:"tags"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

func (Event) TableName() string {
	return "events"
}
