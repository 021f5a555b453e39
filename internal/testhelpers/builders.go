// Package testhelpers provides data builders for the core models
package testhelpers

import (
	"fmt"
	"time"

	"github.com/faultline/faultline/internal/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ========================================
// Fixture Root
// ========================================

// Fixture creates the organization/project/user triple most tests need
type Fixture struct {
	DB           *gorm.DB
	Organization database.Organization
	Project      database.Project
	User         database.User
}

// NewFixture seeds an organization with one project and one member user
func NewFixture(t TestingT, db *gorm.DB) *Fixture {
	t.Helper()

	org := database.Organization{Slug: "acme", Name: "Acme"}
	mustCreate(t, db, &org)

	project := database.Project{
		OrganizationID: org.ID,
		Slug:           "backend",
		Name:           "Backend",
	}
	mustCreate(t, db, &project)

	user := database.User{
		Username: "alice",
		Email:    "alice@example.com",
		Name:     "Alice",
		IsActive: true,
	}
	mustCreate(t, db, &user)
	mustCreate(t, db, &database.OrganizationMember{
		OrganizationID: org.ID,
		UserID:         user.ID,
	})

	return &Fixture{DB: db, Organization: org, Project: project, User: user}
}

// TestingT is the subset of *testing.T the builders need
type TestingT interface {
	Helper()
	Fatalf(format string, args ...interface{})
}

func mustCreate(t TestingT, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("failed to create %T: %v", value, err)
	}
}

// ========================================
// Group Builder
// ========================================

// GroupBuilder builds Group instances for testing
type GroupBuilder struct {
	group database.Group
}

// NewGroupBuilder creates a new group builder with defaults
func NewGroupBuilder(projectID uint) *GroupBuilder {
	now := time.Now()
	return &GroupBuilder{
		group: database.Group{
			UUID:        uuid.New().String(),
			ProjectID:   projectID,
			ShortID:     1,
			Fingerprint: fmt.Sprintf("fp-%s", uuid.New().String()[:8]),
			Status:      database.GroupStatusUnresolved,
			Title:       "NullPointerException",
			Culprit:     "app.views.checkout",
			Level:       40,
			EventType:   "error",
			TimesSeen:   1,
			FirstSeen:   now.Add(-time.Hour),
			LastSeen:    now,
		},
	}
}

// WithShortID sets the per-project short ID
func (b *GroupBuilder) WithShortID(shortID uint) *GroupBuilder {
	b.group.ShortID = shortID
	return b
}

// WithStatus sets the group status
func (b *GroupBuilder) WithStatus(status database.GroupStatus) *GroupBuilder {
	b.group.Status = status
	return b
}

// WithTitle sets the title
func (b *GroupBuilder) WithTitle(title string) *GroupBuilder {
	b.group.Title = title
	return b
}

// WithLevel sets the numeric level
func (b *GroupBuilder) WithLevel(level int) *GroupBuilder {
	b.group.Level = level
	return b
}

// WithLogger sets the logger name
func (b *GroupBuilder) WithLogger(logger string) *GroupBuilder {
	b.group.Logger = logger
	return b
}

// WithTimesSeen sets the occurrence counter
func (b *GroupBuilder) WithTimesSeen(n int) *GroupBuilder {
	b.group.TimesSeen = n
	return b
}

// WithFirstSeen sets the first occurrence timestamp
func (b *GroupBuilder) WithFirstSeen(ts time.Time) *GroupBuilder {
	b.group.FirstSeen = ts
	return b
}

// WithLastSeen sets the last occurrence timestamp
func (b *GroupBuilder) WithLastSeen(ts time.Time) *GroupBuilder {
	b.group.LastSeen = ts
	return b
}

// WithActiveAt sets the last status-transition timestamp
func (b *GroupBuilder) WithActiveAt(ts time.Time) *GroupBuilder {
	b.group.ActiveAt = &ts
	return b
}

// Build returns the constructed group
func (b *GroupBuilder) Build() database.Group {
	return b.group
}

// Create persists the group and returns it
func (b *GroupBuilder) Create(t TestingT, db *gorm.DB) *database.Group {
	t.Helper()
	group := b.group
	mustCreate(t, db, &group)
	return &group
}

// ========================================
// Snooze Builder
// ========================================

// SnoozeBuilder builds GroupSnooze instances for testing
type SnoozeBuilder struct {
	snooze database.GroupSnooze
}

// NewSnoozeBuilder creates a snooze builder with no conditions set
func NewSnoozeBuilder(groupID uint) *SnoozeBuilder {
	return &SnoozeBuilder{
		snooze: database.GroupSnooze{
			GroupID:   groupID,
			CreatedAt: time.Now(),
		},
	}
}

// WithUntil sets the absolute expiry
func (b *SnoozeBuilder) WithUntil(until time.Time) *SnoozeBuilder {
	b.snooze.Until = &until
	return b
}

// WithCount sets the occurrence threshold and its baseline
func (b *SnoozeBuilder) WithCount(count, baseline int) *SnoozeBuilder {
	b.snooze.Count = count
	b.snooze.StateTimesSeen = baseline
	return b
}

// WithWindow sets the occurrence rate window in minutes
func (b *SnoozeBuilder) WithWindow(minutes int) *SnoozeBuilder {
	b.snooze.Window = minutes
	return b
}

// WithUserCount sets the user threshold and its baseline
func (b *SnoozeBuilder) WithUserCount(count, baseline int) *SnoozeBuilder {
	b.snooze.UserCount = count
	b.snooze.StateUsersSeen = baseline
	return b
}

// WithUserWindow sets the user rate window in minutes
func (b *SnoozeBuilder) WithUserWindow(minutes int) *SnoozeBuilder {
	b.snooze.UserWindow = minutes
	return b
}

// WithCreatedAt sets the snooze creation timestamp
func (b *SnoozeBuilder) WithCreatedAt(ts time.Time) *SnoozeBuilder {
	b.snooze.CreatedAt = ts
	return b
}

// WithActor sets the snoozing user
func (b *SnoozeBuilder) WithActor(userID uint) *SnoozeBuilder {
	b.snooze.ActorID = &userID
	return b
}

// Build returns the constructed snooze
func (b *SnoozeBuilder) Build() database.GroupSnooze {
	return b.snooze
}

// Create persists the snooze and returns it
func (b *SnoozeBuilder) Create(t TestingT, db *gorm.DB) *database.GroupSnooze {
	t.Helper()
	snooze := b.snooze
	mustCreate(t, db, &snooze)
	return &snooze
}
