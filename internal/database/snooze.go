package database

import "time"

// GroupSnooze suppresses a group until a time or count condition is met.
// Count/UserCount are occurrence thresholds relative to the captured baseline;
// Window/UserWindow are rate windows in minutes (a threshold with a window is
// a rate condition and is not consumed against the baseline). Until is an
// absolute expiry.
type GroupSnooze struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	GroupID        uint       `gorm:"not null;uniqueIndex" json:"group_id"`
	Count          int        `gorm:"default:0" json:"count"`
	Window         int        `gorm:"default:0" json:"window"`
	UserCount      int        `gorm:"default:0" json:"user_count"`
	UserWindow     int        `gorm:"default:0" json:"user_window"`
	Until          *time.Time `json:"until,omitempty"`
	StateTimesSeen int        `gorm:"default:0" json:"state_times_seen"`
	StateUsersSeen int        `gorm:"default:0" json:"state_users_seen"`
	ActorID        *uint      `json:"actor_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (GroupSnooze) TableName() string {
	return "group_snoozes"
}

// IsValid reports whether the snooze still holds for the group's current
// counters. userCount is the group's current distinct-user count. A snooze is
// invalid once its absolute expiry passes, a windowless threshold is consumed,
// or a rate window elapses.
func (s *GroupSnooze) IsValid(group *Group, userCount int, now time.Time) bool {
	if s.Until != nil && !now.Before(*s.Until) {
		return false
	}
	if s.Count > 0 {
		if s.Window > 0 {
			if !now.Before(s.CreatedAt.Add(time.Duration(s.Window) * time.Minute)) {
				return false
			}
		} else if group.TimesSeen-s.StateTimesSeen >= s.Count {
			return false
		}
	}
	if s.UserCount > 0 {
		if s.UserWindow > 0 {
			if !now.Before(s.CreatedAt.Add(time.Duration(s.UserWindow) * time.Minute)) {
				return false
			}
		} else if userCount-s.StateUsersSeen >= s.UserCount {
			return false
		}
	}
	return true
}
