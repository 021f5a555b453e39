package database

import (
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// GroupStatus represents the persisted lifecycle status of a group
type GroupStatus int

const (
	GroupStatusUnresolved GroupStatus = iota
	GroupStatusResolved
	GroupStatusIgnored
	GroupStatusPendingDeletion
	GroupStatusDeletionInProgress
	GroupStatusPendingMerge
)

// LogLevels maps numeric event levels to their API labels
var LogLevels = map[int]string{
	0:  "sample",
	10: "debug",
	20: "info",
	30: "warning",
	40: "error",
	50: "fatal",
}

// Group is a deduplicated cluster of similar error occurrences. Counters
// (times_seen, first/last_seen) are denormalized and bumped by ingestion;
// everything here is read-only for the API serializers.
type Group struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	UUID        string      `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	ProjectID   uint        `gorm:"not null;index" json:"project_id"`
	ShortID     uint        `gorm:"not null" json:"short_id"` // per-project counter
	Fingerprint string      `gorm:"size:64;index" json:"fingerprint"`
	Status      GroupStatus `gorm:"not null;default:0" json:"status"`
	Title       string      `gorm:"size:255" json:"title"`
	Culprit     string      `gorm:"size:255" json:"culprit"`
	Logger      string      `gorm:"size:64" json:"logger"`
	Level       int         `gorm:"default:40" json:"level"`
	EventType   string      `gorm:"size:32;default:'error'" json:"event_type"`
	Metadata    JSONB       `gorm:"type:jsonb" json:"metadata"`
	NumComments int         `gorm:"default:0" json:"num_comments"`
	TimesSeen   int         `gorm:"default:1" json:"times_seen"`
	FirstSeen   time.Time   `json:"first_seen"`
	LastSeen    time.Time   `json:"last_seen"`
	ActiveAt    *time.Time  `json:"active_at,omitempty"` // reset on status transitions
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	Project Project `gorm:"foreignKey:ProjectID" json:"-"`
}

func (Group) TableName() string {
	return "groups"
}

// BeforeCreate hook to default the occurrence timestamps
func (g *Group) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if g.FirstSeen.IsZero() {
		g.FirstSeen = now
	}
	if g.LastSeen.IsZero() {
		g.LastSeen = now
	}
	return nil
}

// LevelLabel returns the API label for the group's numeric level
func (g *Group) LevelLabel() string {
	if label, ok := LogLevels[g.Level]; ok {
		return label
	}
	return "unknown"
}

// QualifiedShortID returns the human-facing short identifier, e.g. "BACKEND-4F".
// Requires Project to be loaded.
func (g *Group) QualifiedShortID() string {
	return strings.ToUpper(g.Project.Slug) + "-" +
		strings.ToUpper(strconv.FormatUint(uint64(g.ShortID), 36))
}

// ActiveDate is the group's effective activity timestamp: the last status
// transition if recorded, otherwise the first occurrence.
func (g *Group) ActiveDate() time.Time {
	if g.ActiveAt != nil {
		return *g.ActiveAt
	}
	return g.FirstSeen
}

// IsOverResolveAge reports whether the project's auto-resolve policy has
// elapsed for this group. Requires Project to be loaded.
func (g *Group) IsOverResolveAge(now time.Time) bool {
	resolveAge := g.Project.ResolveAge
	if resolveAge <= 0 {
		return false
	}
	return g.LastSeen.Before(now.Add(-time.Duration(resolveAge) * time.Hour))
}
