package api

import "github.com/faultline/faultline/internal/database"

// ========== Group Types ==========

// ListGroupsQuery holds the parsed query parameters for
// GET /api/projects/:id/groups. StatsPeriod accepts the two fixed presets
// only; anything else is rejected before aggregation runs.
type ListGroupsQuery struct {
	Environment string `json:"environment" validate:"omitempty,max=64"`
	StatsPeriod string `json:"stats_period" validate:"omitempty,oneof=24h 14d"`
	Query       string `json:"query" validate:"omitempty,max=255"`
}

// StoreEventRequest is the request body for POST /api/:projectID/store.
type StoreEventRequest struct {
	Message     string            `json:"message" validate:"required"`
	Level       int               `json:"level" validate:"omitempty,oneof=0 10 20 30 40 50"`
	Logger      string            `json:"logger" validate:"omitempty,max=64"`
	Culprit     string            `json:"culprit" validate:"omitempty,max=255"`
	Fingerprint string            `json:"fingerprint" validate:"omitempty,max=64"`
	Environment string            `json:"environment" validate:"omitempty,max=64"`
	User        string            `json:"user" validate:"omitempty,max=255"`
	Tags        map[string]string `json:"tags"`
}

// ========== Auth Types ==========

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// ========== List Envelopes ==========

// GroupListResponse wraps a page of serialized groups.
type GroupListResponse struct {
	Groups     interface{} `json:"groups"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	Total      int64       `json:"total"`
	TotalPages int         `json:"total_pages"`
}

// ShareResponse is returned when creating a share link for a group.
type ShareResponse struct {
	ShareID string `json:"share_id"`
}

// UserResponse is the compact user representation embedded in responses.
type UserResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// UserToResponse converts a database User to its API representation.
func UserToResponse(u database.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Email:    u.Email,
	}
}
