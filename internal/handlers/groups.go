package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/faultline/faultline/internal/api"
	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/middleware"
	"github.com/faultline/faultline/internal/plugins"
	"github.com/faultline/faultline/internal/serializers"
	"github.com/faultline/faultline/internal/tsdb"
)

// GroupHandler handles issue-group API endpoints
type GroupHandler struct {
	db       *gorm.DB
	registry *plugins.Registry
	series   *tsdb.Store
	baseURL  string
}

// NewGroupHandler creates a new group handler. series may be nil when no
// time-series backend is configured.
func NewGroupHandler(db *gorm.DB, registry *plugins.Registry, series *tsdb.Store, baseURL string) *GroupHandler {
	return &GroupHandler{
		db:       db,
		registry: registry,
		series:   series,
		baseURL:  baseURL,
	}
}

// SetupRoutes sets up all group routes
func (h *GroupHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects/{projectID}/groups", h.handleListGroups)
	mux.HandleFunc("GET /api/groups/{groupID}", h.handleGetGroup)
	mux.HandleFunc("POST /api/groups/{groupID}/share", h.handleCreateShare)
	mux.HandleFunc("DELETE /api/groups/{groupID}/share", h.handleDeleteShare)
	mux.HandleFunc("GET /api/shared/{token}", h.handleGetShared)
}

// serializer builds a base serializer scoped to an optional environment name
func (h *GroupHandler) serializer(projectID uint, environment string) *serializers.GroupSerializer {
	s := serializers.NewGroupSerializer(h.db, h.registry, h.baseURL)
	if environment != "" {
		s.EnvironmentFunc = func() (*database.Environment, error) {
			var env database.Environment
			err := h.db.Where("project_id = ? AND name = ?", projectID, environment).
				First(&env).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, serializers.ErrEnvironmentNotFound
			}
			if err != nil {
				return nil, err
			}
			return &env, nil
		}
	}
	return s
}

// handleListGroups handles GET /api/projects/{projectID}/groups
func (h *GroupHandler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseUintParam(r, "projectID")
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	query := api.ListGroupsQuery{
		Environment: r.URL.Query().Get("environment"),
		StatsPeriod: r.URL.Query().Get("statsPeriod"),
		Query:       r.URL.Query().Get("query"),
	}
	if fieldErrors := api.Validate(query); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	var project database.Project
	if err := h.db.First(&project, projectID).Error; err != nil {
		api.RespondNotFound(w, "Project")
		return
	}

	params := api.ParsePagination(r)

	dbQuery := h.db.Where("project_id = ?", projectID).
		Where("status NOT IN ?", []database.GroupStatus{
			database.GroupStatusPendingDeletion,
			database.GroupStatusDeletionInProgress,
		})
	if query.Query != "" {
		pattern := "%" + query.Query + "%"
		dbQuery = dbQuery.Where("title LIKE ? OR culprit LIKE ?", pattern, pattern)
	}

	var total int64
	if err := dbQuery.Model(&database.Group{}).Count(&total).Error; err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to count groups")
		return
	}

	var groups []*database.Group
	err = dbQuery.Order("last_seen DESC").
		Offset(params.Offset()).Limit(params.PerPage).
		Find(&groups).Error
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get groups")
		return
	}

	base := h.serializer(projectID, query.Environment)
	stream, err := serializers.NewStreamGroupSerializer(base, h.series, query.StatsPeriod)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user := middleware.GetUserFromContext(r.Context())
	attrs, err := stream.GetAttrs(groups, user)
	if err != nil {
		log.Printf("GroupHandler: attribute aggregation failed: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to serialize groups")
		return
	}

	results := make([]serializers.GroupResponse, 0, len(groups))
	for _, group := range groups {
		results = append(results, stream.Serialize(group, attrs[group.ID], user))
	}

	api.RespondJSON(w, http.StatusOK, api.GroupListResponse{
		Groups:     results,
		Page:       params.Page,
		PerPage:    params.PerPage,
		Total:      total,
		TotalPages: params.TotalPages(total),
	})
}

// handleGetGroup handles GET /api/groups/{groupID}
func (h *GroupHandler) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, ok := h.findGroup(w, r)
	if !ok {
		return
	}

	base := h.serializer(group.ProjectID, r.URL.Query().Get("environment"))
	user := middleware.GetUserFromContext(r.Context())
	attrs, err := base.GetAttrs([]*database.Group{group}, user)
	if err != nil {
		log.Printf("GroupHandler: attribute aggregation failed: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to serialize group")
		return
	}

	api.RespondJSON(w, http.StatusOK, base.Serialize(group, attrs[group.ID], user))
}

// handleCreateShare handles POST /api/groups/{groupID}/share. Creating a
// share is idempotent: an existing token is returned as-is.
func (h *GroupHandler) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		api.RespondErrorWithCode(w, http.StatusUnauthorized, api.CodeAuthRequired, "Authentication required")
		return
	}
	group, ok := h.findGroup(w, r)
	if !ok {
		return
	}

	var share database.GroupShare
	err := h.db.Where("group_id = ?", group.ID).First(&share).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		share = database.GroupShare{
			GroupID: group.ID,
			UUID:    uuid.New().String(),
			UserID:  &user.ID,
		}
		err = h.db.Create(&share).Error
	}
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to create share")
		return
	}

	api.RespondJSON(w, http.StatusOK, api.ShareResponse{ShareID: share.UUID})
}

// handleDeleteShare handles DELETE /api/groups/{groupID}/share
func (h *GroupHandler) handleDeleteShare(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		api.RespondErrorWithCode(w, http.StatusUnauthorized, api.CodeAuthRequired, "Authentication required")
		return
	}
	group, ok := h.findGroup(w, r)
	if !ok {
		return
	}

	err := h.db.Where("group_id = ?", group.ID).Delete(&database.GroupShare{}).Error
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to delete share")
		return
	}
	api.RespondNoContent(w)
}

// handleGetShared handles GET /api/shared/{token}. Public: no authentication
// and no plugin annotations in the response.
func (h *GroupHandler) handleGetShared(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	var share database.GroupShare
	if err := h.db.Where("uuid = ?", token).First(&share).Error; err != nil {
		api.RespondNotFound(w, "Share")
		return
	}

	var group database.Group
	if err := h.db.First(&group, share.GroupID).Error; err != nil {
		api.RespondNotFound(w, "Group")
		return
	}

	shared := serializers.NewSharedGroupSerializer(h.serializer(group.ProjectID, ""))
	result, err := shared.Serialize(&group)
	if err != nil {
		log.Printf("GroupHandler: shared serialization failed: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to serialize group")
		return
	}

	api.RespondJSON(w, http.StatusOK, result)
}

// findGroup resolves the {groupID} path parameter, writing the error response
// on failure.
func (h *GroupHandler) findGroup(w http.ResponseWriter, r *http.Request) (*database.Group, bool) {
	groupID, err := parseUintParam(r, "groupID")
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid group ID")
		return nil, false
	}

	var group database.Group
	if err := h.db.First(&group, groupID).Error; err != nil {
		api.RespondNotFound(w, "Group")
		return nil, false
	}
	return &group, true
}

// parseUintParam parses a numeric path parameter
func parseUintParam(r *http.Request, name string) (uint, error) {
	value, err := strconv.ParseUint(r.PathValue(name), 10, 32)
	return uint(value), err
}
