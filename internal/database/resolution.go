package database

import "time"

// ResolutionType distinguishes "fixed in the next release" from "fixed in a
// specific release"
type ResolutionType int

const (
	ResolutionInNextRelease ResolutionType = iota
	ResolutionInRelease
)

// GroupResolution marks a group as resolved by a release. Commit-based
// resolutions are modeled separately via GroupLink; when both exist the
// release resolution wins.
type GroupResolution struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	GroupID   uint           `gorm:"not null;uniqueIndex" json:"group_id"`
	Type      ResolutionType `gorm:"default:0" json:"type"`
	ReleaseID *uint          `gorm:"index" json:"release_id,omitempty"`
	ActorID   *uint          `json:"actor_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`

	Release *Release `gorm:"foreignKey:ReleaseID" json:"-"`
}

func (GroupResolution) TableName() string {
	return "group_resolutions"
}
