package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Organization is the top-level tenant. Projects, teams and integrations
// belong to an organization.
type Organization struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Slug      string    `gorm:"uniqueIndex;size:64;not null" json:"slug"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrganizationMember links a user to an organization
type OrganizationMember struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID uint      `gorm:"not null;uniqueIndex:idx_org_members_org_user" json:"organization_id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_org_members_org_user" json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Project is a reporting target inside an organization. ResolveAge is the
// auto-resolve policy in hours; 0 disables auto-resolution.
type Project struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID uint      `gorm:"not null;index" json:"organization_id"`
	Slug           string    `gorm:"size:64;not null;index" json:"slug"`
	Name           string    `gorm:"size:128;not null" json:"name"`
	ResolveAge     int       `gorm:"default:0" json:"resolve_age"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Organization Organization `gorm:"foreignKey:OrganizationID" json:"-"`
}

// Team is a group of users that can be assigned to issues
type Team struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID uint      `gorm:"not null;index" json:"organization_id"`
	Slug           string    `gorm:"size:64;not null" json:"slug"`
	Name           string    `gorm:"size:128;not null" json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}

// User is an account that can log in, be assigned issues, and subscribe
// to issue notifications. Deactivated users are excluded from actor lookups.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:128;not null" json:"username"`
	Email        string    `gorm:"size:255" json:"email"`
	Name         string    `gorm:"size:255" json:"name"`
	PasswordHash string    `gorm:"type:text" json:"-"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Environment is a deployment context (production, staging, ...) used to
// scope counts and time series.
type Environment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"not null;index" json:"project_id"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Release is a deployed version of a project
type Release struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProjectID   uint      `gorm:"not null;index" json:"project_id"`
	Version     string    `gorm:"size:255;not null" json:"version"`
	DateCreated time.Time `json:"date_created"`
}

// Commit is a VCS commit known to Faultline, linkable to groups through
// GroupLink records.
type Commit struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Repository string    `gorm:"size:255" json:"repository"`
	Key        string    `gorm:"size:64;not null;index" json:"key"`
	Message    string    `gorm:"type:text" json:"message"`
	DateAdded  time.Time `json:"date_added"`
}

// Integration feature flags. Only integrations carrying an issue feature
// participate in annotation collection.
const (
	IntegrationFeatureIssueBasic = "issue_basic"
	IntegrationFeatureIssueSync  = "issue_sync"
)

// Integration is an org-scoped external service installation (Slack, issue
// trackers, ...). Features is a comma-separated list of feature flags.
type Integration struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID uint      `gorm:"not null;index" json:"organization_id"`
	Provider       string    `gorm:"size:64;not null" json:"provider"`
	Name           string    `gorm:"size:128;not null" json:"name"`
	Settings       JSONB     `gorm:"type:jsonb" json:"settings"`
	Features       string    `gorm:"size:255" json:"features"`
	Enabled        bool      `gorm:"default:true" json:"enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasFeature reports whether the integration carries the given feature flag
func (i *Integration) HasFeature(feature string) bool {
	for _, f := range strings.Split(i.Features, ",") {
		if strings.TrimSpace(f) == feature {
			return true
		}
	}
	return false
}

// TableName overrides for explicit table naming
func (Organization) TableName() string {
	return "organizations"
}

func (OrganizationMember) TableName() string {
	return "organization_members"
}

func (Project) TableName() string {
	return "projects"
}

func (Team) TableName() string {
	return "teams"
}

func (User) TableName() string {
	return "users"
}

func (Environment) TableName() string {
	return "environments"
}

func (Release) TableName() string {
	return "releases"
}

func (Commit) TableName() string {
	return "commits"
}

func (Integration) TableName() string {
	return "integrations"
}
