package jobs

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/tagstore"
)

// SnoozeSweeper persists snooze expiry: groups whose snooze condition no
// longer holds are flipped back to unresolved and the snooze row is removed.
// The API already treats such groups as unresolved on read; the sweeper makes
// the transition durable so list filters and notifications see it too.
type SnoozeSweeper struct {
	db   *gorm.DB
	tags *tagstore.Store
}

// NewSnoozeSweeper creates a new snooze sweeper
func NewSnoozeSweeper(db *gorm.DB) *SnoozeSweeper {
	return &SnoozeSweeper{db: db, tags: tagstore.New(db)}
}

// Sweep scans ignored groups with a snooze and unignores the expired ones.
// Returns the number of groups transitioned.
func (m *SnoozeSweeper) Sweep() (int, error) {
	now := time.Now()

	var snoozes []database.GroupSnooze
	if err := m.db.Find(&snoozes).Error; err != nil {
		return 0, err
	}
	if len(snoozes) == 0 {
		return 0, nil
	}

	groupIDs := make([]uint, len(snoozes))
	for i, s := range snoozes {
		groupIDs[i] = s.GroupID
	}
	var groups []database.Group
	err := m.db.Where("id IN ? AND status = ?", groupIDs, database.GroupStatusIgnored).
		Find(&groups).Error
	if err != nil {
		return 0, err
	}
	byID := make(map[uint]*database.Group, len(groups))
	for i := range groups {
		byID[groups[i].ID] = &groups[i]
	}

	transitioned := 0
	for i := range snoozes {
		snooze := &snoozes[i]
		group, ok := byID[snooze.GroupID]
		if !ok {
			// Orphaned snooze: its group is no longer ignored.
			if err := m.db.Delete(snooze).Error; err != nil {
				log.Printf("Failed to delete orphaned snooze %d: %v", snooze.ID, err)
			}
			continue
		}

		userCount := 0
		if snooze.UserCount > 0 && snooze.UserWindow == 0 {
			counts, err := m.tags.GetGroupsUserCounts(group.ProjectID, []uint{group.ID}, nil)
			if err != nil {
				log.Printf("Failed to count users for group %d: %v", group.ID, err)
				continue
			}
			userCount = counts[group.ID]
		}

		if snooze.IsValid(group, userCount, now) {
			continue
		}

		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(snooze).Error; err != nil {
				return err
			}
			return tx.Model(group).Updates(map[string]interface{}{
				"status":    database.GroupStatusUnresolved,
				"active_at": now,
			}).Error
		})
		if err != nil {
			log.Printf("Failed to unignore group %d: %v", group.ID, err)
			continue
		}
		transitioned++
		log.Printf("Snooze expired, group %s back to unresolved", group.UUID)
	}

	return transitioned, nil
}

// Start begins periodic sweeping
func (m *SnoozeSweeper) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			transitioned, err := m.Sweep()
			if err != nil {
				log.Printf("Snooze sweeper error: %v", err)
			} else if transitioned > 0 {
				log.Printf("Snooze sweeper: unignored %d groups", transitioned)
			}
		case <-stop:
			log.Println("Snooze sweeper stopped")
			return
		}
	}
}
