// Package events ingests raw error events: each event is folded into its
// issue group by fingerprint, and the group's denormalized counters, tag
// values and time series are updated in the same pass.
package events

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/tagstore"
	"github.com/faultline/faultline/internal/tsdb"
)

// NewGroupHook is invoked after a previously unseen fingerprint creates a
// group. It runs on the ingestion path, so implementations must not block.
type NewGroupHook func(group *database.Group)

// Service folds incoming events into issue groups
type Service struct {
	db     *gorm.DB
	tags   *tagstore.Store
	series *tsdb.Store

	// OnNewGroup, when set, fires once per newly created group.
	OnNewGroup NewGroupHook
}

// NewService creates an ingestion service. series may be nil when no
// time-series backend is configured.
func NewService(db *gorm.DB, series *tsdb.Store) *Service {
	return &Service{
		db:     db,
		tags:   tagstore.New(db),
		series: series,
	}
}

// IncomingEvent is a normalized event ready for ingestion
type IncomingEvent struct {
	ProjectID   uint
	Fingerprint string
	Title       string
	Culprit     string
	Logger      string
	Level       int
	Type        string
	Metadata    database.JSONB
	Tags        map[string]string
	User        string
	Environment string
	Timestamp   time.Time
}

// Ingest stores one event and returns its event ID and owning group. The
// group row is created on first sight of a fingerprint and its counters are
// bumped atomically on every subsequent event.
func (s *Service) Ingest(ctx context.Context, in IncomingEvent) (string, *database.Group, error) {
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}

	group, created, err := s.findOrCreateGroup(in)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve group: %w", err)
	}

	var environmentID *uint
	if in.Environment != "" {
		env, err := s.ensureEnvironment(in.ProjectID, in.Environment)
		if err != nil {
			return "", nil, fmt.Errorf("failed to resolve environment: %w", err)
		}
		environmentID = &env.ID

		err = s.tags.RecordTagValue(in.ProjectID, group.ID, environmentID,
			tagstore.KeyEnvironment, in.Environment, in.Timestamp)
		if err != nil {
			return "", nil, err
		}
	}

	if in.User != "" {
		// Unscoped row backs the overall distinct-user count, scoped row
		// the per-environment one.
		err = s.tags.RecordTagValue(in.ProjectID, group.ID, nil,
			tagstore.KeyUser, in.User, in.Timestamp)
		if err != nil {
			return "", nil, err
		}
		if environmentID != nil {
			err = s.tags.RecordTagValue(in.ProjectID, group.ID, environmentID,
				tagstore.KeyUser, in.User, in.Timestamp)
			if err != nil {
				return "", nil, err
			}
		}
	}

	tags := database.JSONB{}
	for key, value := range in.Tags {
		tags[key] = value
	}
	event := database.Event{
		UUID:      uuid.New().String(),
		ProjectID: in.ProjectID,
		GroupID:   group.ID,
		Message:   in.Title,
		Level:     in.Level,
		Tags:      tags,
		Timestamp: in.Timestamp,
	}
	if err := s.db.Create(&event).Error; err != nil {
		return "", nil, fmt.Errorf("failed to store event: %w", err)
	}

	if s.series != nil {
		if err := s.series.Increment(ctx, group.ID, environmentID, in.Timestamp); err != nil {
			// The event is already durable; a failed counter bump only
			// skews the graphs.
			log.Printf("Time-series increment failed for group %d: %v", group.ID, err)
		}
	}

	if created && s.OnNewGroup != nil {
		if err := s.db.First(&group.Project, group.ProjectID).Error; err == nil {
			s.OnNewGroup(group)
		}
	}

	return event.UUID, group, nil
}

// findOrCreateGroup locates the group for a fingerprint or creates it,
// bumping times_seen and last_seen on the existing row.
func (s *Service) findOrCreateGroup(in IncomingEvent) (*database.Group, bool, error) {
	var group database.Group
	err := s.db.Where("project_id = ? AND fingerprint = ?", in.ProjectID, in.Fingerprint).
		First(&group).Error

	if err == nil {
		updates := map[string]interface{}{
			"times_seen": gorm.Expr("times_seen + 1"),
			"last_seen":  in.Timestamp,
		}
		if err := s.db.Model(&group).Updates(updates).Error; err != nil {
			return nil, false, err
		}
		if err := s.db.First(&group, group.ID).Error; err != nil {
			return nil, false, err
		}
		return &group, false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}

	group = database.Group{
		UUID:        uuid.New().String(),
		ProjectID:   in.ProjectID,
		ShortID:     0, // assigned below under the project counter
		Fingerprint: in.Fingerprint,
		Status:      database.GroupStatusUnresolved,
		Title:       in.Title,
		Culprit:     in.Culprit,
		Logger:      in.Logger,
		Level:       in.Level,
		EventType:   in.Type,
		Metadata:    in.Metadata,
		TimesSeen:   1,
		FirstSeen:   in.Timestamp,
		LastSeen:    in.Timestamp,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		shortID, err := nextShortID(tx, in.ProjectID)
		if err != nil {
			return err
		}
		group.ShortID = shortID
		return tx.Create(&group).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create group: %w", err)
	}

	log.Printf("Created group %s (project %d, fingerprint %s)", group.UUID, in.ProjectID, in.Fingerprint)
	return &group, true, nil
}

// nextShortID allocates the next per-project short ID inside tx
func nextShortID(tx *gorm.DB, projectID uint) (uint, error) {
	var current uint
	err := tx.Model(&database.Group{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(MAX(short_id), 0)").
		Scan(&current).Error
	if err != nil {
		return 0, err
	}
	return current + 1, nil
}

// ensureEnvironment finds or creates the named environment for a project
func (s *Service) ensureEnvironment(projectID uint, name string) (*database.Environment, error) {
	var env database.Environment
	err := s.db.Where("project_id = ? AND name = ?", projectID, name).First(&env).Error
	if err == nil {
		return &env, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	env = database.Environment{ProjectID: projectID, Name: name}
	if err := s.db.Create(&env).Error; err != nil {
		return nil, err
	}
	return &env, nil
}
