package serializers

import (
	"strconv"

	"gorm.io/gorm"

	"github.com/faultline/faultline/internal/database"
)

// ActorKind tags the two assignable entity kinds
type ActorKind string

const (
	ActorUser ActorKind = "user"
	ActorTeam ActorKind = "team"
)

// Actor is a tagged reference to a user or a team, resolved in one batched
// pass per serialization call.
type Actor struct {
	Kind ActorKind
	ID   uint
}

// ActorResponse is the displayable projection of a resolved actor
type ActorResponse struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// assigneeActor converts a GroupAssignee row into its tagged actor reference
func assigneeActor(a database.GroupAssignee) (Actor, bool) {
	if a.UserID != nil {
		return Actor{Kind: ActorUser, ID: *a.UserID}, true
	}
	if a.TeamID != nil {
		return Actor{Kind: ActorTeam, ID: *a.TeamID}, true
	}
	return Actor{}, false
}

// resolveActors resolves a batch of tagged actor references to displayable
// projections using one query per kind. References to deactivated users or
// missing rows resolve to absent.
func resolveActors(db *gorm.DB, actors map[uint]Actor) (map[uint]*ActorResponse, error) {
	var userIDs, teamIDs []uint
	for _, actor := range actors {
		switch actor.Kind {
		case ActorUser:
			userIDs = append(userIDs, actor.ID)
		case ActorTeam:
			teamIDs = append(teamIDs, actor.ID)
		}
	}

	users := make(map[uint]database.User)
	if len(userIDs) > 0 {
		var rows []database.User
		if err := db.Where("id IN ? AND is_active = ?", userIDs, true).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, u := range rows {
			users[u.ID] = u
		}
	}

	teams := make(map[uint]database.Team)
	if len(teamIDs) > 0 {
		var rows []database.Team
		if err := db.Where("id IN ?", teamIDs).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, t := range rows {
			teams[t.ID] = t
		}
	}

	resolved := make(map[uint]*ActorResponse, len(actors))
	for key, actor := range actors {
		switch actor.Kind {
		case ActorUser:
			if u, ok := users[actor.ID]; ok {
				resolved[key] = &ActorResponse{
					Type:  string(ActorUser),
					ID:    strconv.FormatUint(uint64(u.ID), 10),
					Name:  u.Name,
					Email: u.Email,
				}
			}
		case ActorTeam:
			if t, ok := teams[actor.ID]; ok {
				resolved[key] = &ActorResponse{
					Type: string(ActorTeam),
					ID:   strconv.FormatUint(uint64(t.ID), 10),
					Name: t.Name,
				}
			}
		}
	}
	return resolved, nil
}
