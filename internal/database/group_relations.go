package database

import "time"

// GroupBookmark marks a group as bookmarked by a user
type GroupBookmark struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;uniqueIndex:idx_bookmarks_group_user" json:"group_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_bookmarks_group_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupSeen records when a user last viewed a group
type GroupSeen struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	GroupID  uint      `gorm:"not null;uniqueIndex:idx_seen_group_user" json:"group_id"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_seen_group_user" json:"user_id"`
	LastSeen time.Time `gorm:"not null" json:"last_seen"`
}

// SubscriptionReason encodes why a user was subscribed to a group
type SubscriptionReason int

const (
	SubscriptionReasonUnknown SubscriptionReason = iota
	SubscriptionReasonComment
	SubscriptionReasonAssigned
	SubscriptionReasonBookmark
	SubscriptionReasonStatusChange
	SubscriptionReasonMentioned
)

// GroupSubscription is a user's explicit opt-in/out for a group's
// notifications. When a record exists its IsActive flag is authoritative.
type GroupSubscription struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	GroupID   uint               `gorm:"not null;uniqueIndex:idx_subscriptions_group_user" json:"group_id"`
	UserID    uint               `gorm:"not null;uniqueIndex:idx_subscriptions_group_user" json:"user_id"`
	IsActive  bool               `gorm:"default:true" json:"is_active"`
	Reason    SubscriptionReason `gorm:"default:0" json:"reason"`
	CreatedAt time.Time          `json:"created_at"`
}

// GroupAssignee assigns a group to exactly one user or team
type GroupAssignee struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;uniqueIndex" json:"group_id"`
	UserID    *uint     `gorm:"index" json:"user_id,omitempty"`
	TeamID    *uint     `gorm:"index" json:"team_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupShare is an opaque public-sharing token for a group. Presence of a
// record makes the group publicly visible.
type GroupShare struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;uniqueIndex" json:"group_id"`
	UUID      string    `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	UserID    *uint     `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupLink linked-entity types
const (
	GroupLinkTypeCommit = 1
	GroupLinkTypeIssue  = 2
)

// GroupLink relationship kinds
const (
	GroupLinkResolves   = 1
	GroupLinkReferences = 2
)

// GroupLink is a generic link table between groups and other entities.
// Commit-based resolutions are GroupLink rows with linked_type=commit and
// relationship=resolves.
type GroupLink struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	GroupID      uint      `gorm:"not null;index" json:"group_id"`
	LinkedType   int       `gorm:"not null" json:"linked_type"`
	LinkedID     uint      `gorm:"not null" json:"linked_id"`
	Relationship int       `gorm:"not null" json:"relationship"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserOption keys and values
const (
	// UserOptionWorkflowKey is the per-user (optionally per-project)
	// workflow notification preference.
	UserOptionWorkflowKey = "workflow:notifications"

	WorkflowAllConversations = "0"
	WorkflowParticipating    = "1"
	WorkflowNoConversations  = "2"
)

// UserOption is a per-user setting, optionally scoped to a project.
// A nil ProjectID is the user's global default.
type UserOption struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	ProjectID *uint     `gorm:"index" json:"project_id,omitempty"`
	Key       string    `gorm:"size:64;not null" json:"key"`
	Value     string    `gorm:"size:255" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (GroupBookmark) TableName() string {
	return "group_bookmarks"
}

func (GroupSeen) TableName() string {
	return "group_seen"
}

func (GroupSubscription) TableName() string {
	return "group_subscriptions"
}

func (GroupAssignee) TableName() string {
	return "group_assignees"
}

func (GroupShare) TableName() string {
	return "group_shares"
}

func (GroupLink) TableName() string {
	return "group_links"
}

func (UserOption) TableName() string {
	return "user_options"
}
