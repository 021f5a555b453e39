// Package serializers transforms issue groups and their related records into
// the flat JSON representation served by the API. Serialization runs in two
// stages: GetAttrs issues a fixed number of batched lookups for a whole group
// list, then Serialize projects each group from its attribute bundle with no
// further I/O.
package serializers

import (
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/faultline/faultline/internal/api"
	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/integrations"
	"github.com/faultline/faultline/internal/plugins"
	"github.com/faultline/faultline/internal/tagstore"
	"github.com/faultline/faultline/internal/utils"
)

// ErrEnvironmentNotFound signals that the requested environment selector does
// not exist. Serialization degrades to zeroed counts instead of failing.
var ErrEnvironmentNotFound = errors.New("environment not found")

// EnvironmentFunc resolves the optional environment context for a
// serialization call. A nil *Environment with nil error means "no specific
// environment": counts come from the groups' own denormalized totals.
type EnvironmentFunc func() (*database.Environment, error)

// GroupSerializer serializes issue groups for authenticated API access
type GroupSerializer struct {
	db       *gorm.DB
	tags     *tagstore.Store
	registry *plugins.Registry
	baseURL  string

	// EnvironmentFunc narrows counts to one environment; nil means none.
	EnvironmentFunc EnvironmentFunc

	// Now is injectable so projection stays a pure function of its inputs.
	Now func() time.Time
}

// NewGroupSerializer creates a serializer over the given database and plugin
// registry. baseURL is used for permalinks.
func NewGroupSerializer(db *gorm.DB, registry *plugins.Registry, baseURL string) *GroupSerializer {
	return &GroupSerializer{
		db:       db,
		tags:     tagstore.New(db),
		registry: registry,
		baseURL:  baseURL,
		Now:      time.Now,
	}
}

// GetAttrs runs the batched lookups for a group list and returns one
// attribute bundle per group ID. The number of queries is fixed, not
// proportional to the group count.
func (s *GroupSerializer) GetAttrs(items []*database.Group, user *database.User) (map[uint]*Attrs, error) {
	result := make(map[uint]*Attrs, len(items))
	if len(items) == 0 {
		return result, nil
	}

	if err := s.attachProjects(items); err != nil {
		return nil, err
	}

	itemIDs := make([]uint, len(items))
	for i, item := range items {
		itemIDs[i] = item.ID
	}

	bookmarks := make(map[uint]bool)
	seenGroups := make(map[uint]time.Time)
	var subscriptions map[uint]SubscriptionState
	memberOrgs := make(map[uint]bool)

	if user != nil {
		var bookmarkIDs []uint
		err := s.db.Model(&database.GroupBookmark{}).
			Where("user_id = ? AND group_id IN ?", user.ID, itemIDs).
			Pluck("group_id", &bookmarkIDs).Error
		if err != nil {
			return nil, err
		}
		for _, id := range bookmarkIDs {
			bookmarks[id] = true
		}

		var seenRows []database.GroupSeen
		err = s.db.Where("user_id = ? AND group_id IN ?", user.ID, itemIDs).Find(&seenRows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range seenRows {
			seenGroups[row.GroupID] = row.LastSeen
		}

		subscriptions, err = s.getSubscriptions(items, user)
		if err != nil {
			return nil, err
		}

		var memberships []database.OrganizationMember
		err = s.db.Where("user_id = ?", user.ID).Find(&memberships).Error
		if err != nil {
			return nil, err
		}
		for _, m := range memberships {
			memberOrgs[m.OrganizationID] = true
		}
	} else {
		subscriptions = make(map[uint]SubscriptionState)
		for _, id := range itemIDs {
			subscriptions[id] = DefaultSubscription(false)
		}
	}

	// Assignment: one batched fetch plus one batched actor resolution over
	// the heterogeneous user-or-team reference.
	var assigneeRows []database.GroupAssignee
	if err := s.db.Where("group_id IN ?", itemIDs).Find(&assigneeRows).Error; err != nil {
		return nil, err
	}
	assigneeActors := make(map[uint]Actor)
	for _, row := range assigneeRows {
		if actor, ok := assigneeActor(row); ok {
			assigneeActors[row.GroupID] = actor
		}
	}
	assignees, err := resolveActors(s.db, assigneeActors)
	if err != nil {
		return nil, err
	}

	// Counts, scoped to the environment context when one resolves. A
	// missing environment degrades every count to zero rather than failing.
	userCounts := make(map[uint]int)
	firstSeen := make(map[uint]time.Time)
	lastSeen := make(map[uint]time.Time)
	timesSeen := make(map[uint]int)

	environment, err := s.environment()
	if err != nil && !errors.Is(err, ErrEnvironmentNotFound) {
		return nil, err
	}
	if err == nil {
		projectID := items[0].ProjectID
		var environmentID *uint
		if environment != nil {
			environmentID = &environment.ID
		}

		userCounts, err = s.tags.GetGroupsUserCounts(projectID, itemIDs, environmentID)
		if err != nil {
			return nil, err
		}

		if environment != nil {
			tagValues, err := s.tags.GetGroupListTagValue(
				projectID, itemIDs, environment.ID, tagstore.KeyEnvironment, environment.Name)
			if err != nil {
				return nil, err
			}
			for id, value := range tagValues {
				firstSeen[id] = value.FirstSeen
				lastSeen[id] = value.LastSeen
				timesSeen[id] = value.TimesSeen
			}
		} else {
			for _, item := range items {
				firstSeen[item.ID] = item.FirstSeen
				lastSeen[item.ID] = item.LastSeen
				timesSeen[item.ID] = item.TimesSeen
			}
		}
	}

	var snoozeRows []database.GroupSnooze
	if err := s.db.Where("group_id IN ?", itemIDs).Find(&snoozeRows).Error; err != nil {
		return nil, err
	}
	snoozes := make(map[uint]*database.GroupSnooze, len(snoozeRows))
	for i := range snoozeRows {
		snoozes[snoozeRows[i].GroupID] = &snoozeRows[i]
	}

	// Resolutions are only fetched for groups persisted as RESOLVED. A
	// release-based record wins over a commit link for the same group.
	var resolvedIDs []uint
	for _, item := range items {
		if item.Status == database.GroupStatusResolved {
			resolvedIDs = append(resolvedIDs, item.ID)
		}
	}

	releaseResolutions := make(map[uint]*database.GroupResolution)
	commitResolutions := make(map[uint]*CommitResponse)
	if len(resolvedIDs) > 0 {
		var resolutionRows []database.GroupResolution
		err := s.db.Preload("Release").Where("group_id IN ?", resolvedIDs).Find(&resolutionRows).Error
		if err != nil {
			return nil, err
		}
		for i := range resolutionRows {
			releaseResolutions[resolutionRows[i].GroupID] = &resolutionRows[i]
		}

		commitResolutions, err = s.getCommitResolutions(resolvedIDs)
		if err != nil {
			return nil, err
		}
	}

	// Union of all actor ids referenced by resolutions and snoozes, one
	// batched fetch restricted to active accounts. Deactivated actors
	// resolve to absent.
	actorIDs := make(map[uint]bool)
	for _, r := range releaseResolutions {
		if r.ActorID != nil {
			actorIDs[*r.ActorID] = true
		}
	}
	for _, sn := range snoozes {
		if sn.ActorID != nil {
			actorIDs[*sn.ActorID] = true
		}
	}
	actors := make(map[uint]*api.UserResponse)
	if len(actorIDs) > 0 {
		ids := make([]uint, 0, len(actorIDs))
		for id := range actorIDs {
			ids = append(ids, id)
		}
		var userRows []database.User
		if err := s.db.Where("id IN ? AND is_active = ?", ids, true).Find(&userRows).Error; err != nil {
			return nil, err
		}
		for _, u := range userRows {
			resp := api.UserToResponse(u)
			actors[u.ID] = &resp
		}
	}

	var shareRows []database.GroupShare
	if err := s.db.Where("group_id IN ?", itemIDs).Find(&shareRows).Error; err != nil {
		return nil, err
	}
	shareIDs := make(map[uint]string, len(shareRows))
	for _, row := range shareRows {
		shareIDs[row.GroupID] = row.UUID
	}

	// Integration annotators are built once per organization touched.
	orgAnnotators := make(map[uint][]plugins.Annotator)

	for _, item := range items {
		var annotations []plugins.Annotation
		for _, annotator := range s.registry.ForProject(item.ProjectID) {
			annotations = append(annotations, plugins.SafeAnnotations(annotator, item)...)
		}

		orgID := item.Project.OrganizationID
		installed, ok := orgAnnotators[orgID]
		if !ok {
			installed, err = integrations.BuildAnnotators(s.db, orgID)
			if err != nil {
				return nil, err
			}
			orgAnnotators[orgID] = installed
		}
		for _, annotator := range installed {
			annotations = append(annotations, plugins.SafeAnnotations(annotator, item)...)
		}
		if annotations == nil {
			annotations = []plugins.Annotation{}
		}

		var resolution *database.GroupResolution
		var resolutionType string
		var resolutionCommit *CommitResponse
		var resolutionActor *api.UserResponse
		if r := releaseResolutions[item.ID]; r != nil {
			resolution = r
			resolutionType = "release"
			if r.ActorID != nil {
				resolutionActor = actors[*r.ActorID]
			}
		} else if c := commitResolutions[item.ID]; c != nil {
			resolutionType = "commit"
			resolutionCommit = c
		}

		snooze := snoozes[item.ID]
		var snoozeActor *api.UserResponse
		if snooze != nil && snooze.ActorID != nil {
			snoozeActor = actors[*snooze.ActorID]
		}

		activeDate := item.ActiveDate()
		hasSeen := false
		if seenAt, ok := seenGroups[item.ID]; ok {
			hasSeen = seenAt.After(activeDate)
		}

		attrs := &Attrs{
			Assignee:         assignees[item.ID],
			IsBookmarked:     bookmarks[item.ID],
			Subscription:     subscriptions[item.ID],
			HasSeen:          hasSeen,
			Annotations:      annotations,
			UserCount:        userCounts[item.ID],
			Snooze:           snooze,
			SnoozeActor:      snoozeActor,
			Resolution:       resolution,
			ResolutionType:   resolutionType,
			ResolutionCommit: resolutionCommit,
			ResolutionActor:  resolutionActor,
			ShareID:          shareIDs[item.ID],
			OrgMember:        memberOrgs[item.Project.OrganizationID],
			TimesSeen:        timesSeen[item.ID],
		}
		if ts, ok := firstSeen[item.ID]; ok {
			attrs.FirstSeen = &ts
		}
		if ts, ok := lastSeen[item.ID]; ok {
			attrs.LastSeen = &ts
		}
		result[item.ID] = attrs
	}

	return result, nil
}

// Serialize projects one group from its attribute bundle. It is a pure
// function of (group, attrs, user) plus the injected clock: no I/O, no
// mutation.
func (s *GroupSerializer) Serialize(group *database.Group, attrs *Attrs, user *database.User) GroupResponse {
	now := s.Now()

	status := group.Status
	details := StatusDetails{}

	if attrs.Snooze != nil {
		snooze := attrs.Snooze
		if snooze.IsValid(group, attrs.UserCount, now) {
			// Counts report the remaining delta when no window is set;
			// windowed thresholds report the raw threshold verbatim.
			if snooze.Count > 0 {
				remaining := snooze.Count
				if snooze.Window == 0 {
					remaining = snooze.Count - (group.TimesSeen - snooze.StateTimesSeen)
				}
				details.IgnoreCount = &remaining
			}
			if snooze.UserCount > 0 {
				remaining := snooze.UserCount
				if snooze.UserWindow == 0 {
					remaining = snooze.UserCount - (attrs.UserCount - snooze.StateUsersSeen)
				}
				details.IgnoreUserCount = &remaining
			}
			details.IgnoreUntil = snooze.Until
			details.IgnoreWindow = intPtr(snooze.Window)
			details.IgnoreUserWindow = intPtr(snooze.UserWindow)
			details.Actor = attrs.SnoozeActor
		} else {
			status = database.GroupStatusUnresolved
		}
	}

	if status == database.GroupStatusUnresolved && group.IsOverResolveAge(now) {
		status = database.GroupStatusResolved
		details.AutoResolved = true
	}

	var statusLabel string
	switch status {
	case database.GroupStatusResolved:
		statusLabel = "resolved"
		switch attrs.ResolutionType {
		case "release":
			if attrs.Resolution.Type == database.ResolutionInRelease && attrs.Resolution.Release != nil {
				details.InRelease = attrs.Resolution.Release.Version
			} else {
				details.InNextRelease = true
			}
			details.Actor = attrs.ResolutionActor
		case "commit":
			details.InCommit = attrs.ResolutionCommit
		}
	case database.GroupStatusIgnored:
		statusLabel = "ignored"
	case database.GroupStatusPendingDeletion, database.GroupStatusDeletionInProgress:
		statusLabel = "pending_deletion"
	case database.GroupStatusPendingMerge:
		statusLabel = "pending_merge"
	default:
		statusLabel = "unresolved"
	}

	// The permalink embeds the organization slug, so it is only returned to
	// authenticated members of the owning organization.
	var permalink *string
	if user != nil && attrs.OrgMember {
		link := utils.GroupPermalink(
			s.baseURL, group.Project.Organization.Slug, group.Project.Slug, group.ID)
		permalink = &link
	}

	isSubscribed := attrs.Subscription.subscribed
	var subscriptionDetails *SubscriptionDetails
	switch attrs.Subscription.kind {
	case subscriptionDisabled:
		isSubscribed = false
		subscriptionDetails = &SubscriptionDetails{Disabled: true}
	case subscriptionExplicit:
		if attrs.Subscription.record.IsActive {
			reason, ok := subscriptionReasonMap[attrs.Subscription.record.Reason]
			if !ok {
				reason = "unknown"
			}
			subscriptionDetails = &SubscriptionDetails{Reason: reason}
		}
	}

	var shareID *string
	if attrs.ShareID != "" {
		shareID = &attrs.ShareID
	}

	var logger *string
	if group.Logger != "" {
		logger = &group.Logger
	}

	return GroupResponse{
		ID:                  strconv.FormatUint(uint64(group.ID), 10),
		ShareID:             shareID,
		ShortID:             group.QualifiedShortID(),
		Count:               strconv.Itoa(attrs.TimesSeen),
		UserCount:           attrs.UserCount,
		Title:               group.Title,
		Culprit:             group.Culprit,
		Permalink:           permalink,
		FirstSeen:           attrs.FirstSeen,
		LastSeen:            attrs.LastSeen,
		Logger:              logger,
		Level:               group.LevelLabel(),
		Status:              statusLabel,
		StatusDetails:       details,
		IsPublic:            attrs.ShareID != "",
		Project: ProjectSummary{
			ID:   strconv.FormatUint(uint64(group.ProjectID), 10),
			Name: group.Project.Name,
			Slug: group.Project.Slug,
		},
		Type:                group.EventType,
		Metadata:            group.Metadata,
		NumComments:         group.NumComments,
		AssignedTo:          attrs.Assignee,
		IsBookmarked:        attrs.IsBookmarked,
		IsSubscribed:        isSubscribed,
		SubscriptionDetails: subscriptionDetails,
		HasSeen:             attrs.HasSeen,
		Annotations:         attrs.Annotations,
	}
}

// getSubscriptions resolves the subscription state per group for one user.
// The workflow preference resolves project setting → global setting → "all
// conversations". A no-conversations preference yields the disabled sentinel
// regardless of any explicit record.
func (s *GroupSerializer) getSubscriptions(items []*database.Group, user *database.User) (map[uint]SubscriptionState, error) {
	results := make(map[uint]SubscriptionState, len(items))
	if len(items) == 0 {
		return results, nil
	}

	projectGroups := make(map[uint][]*database.Group)
	projectIDs := make([]uint, 0)
	for _, item := range items {
		if _, ok := projectGroups[item.ProjectID]; !ok {
			projectIDs = append(projectIDs, item.ProjectID)
		}
		projectGroups[item.ProjectID] = append(projectGroups[item.ProjectID], item)
	}

	// One query covers the touched projects and the user's global default.
	var options []database.UserOption
	err := s.db.
		Where("user_id = ? AND key = ? AND (project_id IN ? OR project_id IS NULL)",
			user.ID, database.UserOptionWorkflowKey, projectIDs).
		Find(&options).Error
	if err != nil {
		return nil, err
	}

	projectOptions := make(map[uint]string)
	globalDefault := database.WorkflowAllConversations
	for _, option := range options {
		if option.ProjectID == nil {
			globalDefault = option.Value
		} else {
			projectOptions[*option.ProjectID] = option.Value
		}
	}

	preference := func(projectID uint) string {
		if value, ok := projectOptions[projectID]; ok {
			return value
		}
		return globalDefault
	}

	// Explicit records are only consulted for groups whose project
	// preference is not fully disabled.
	var candidateIDs []uint
	for projectID, groups := range projectGroups {
		if preference(projectID) == database.WorkflowNoConversations {
			continue
		}
		for _, g := range groups {
			candidateIDs = append(candidateIDs, g.ID)
		}
	}

	explicit := make(map[uint]*database.GroupSubscription)
	if len(candidateIDs) > 0 {
		var rows []database.GroupSubscription
		err := s.db.Where("user_id = ? AND group_id IN ?", user.ID, candidateIDs).Find(&rows).Error
		if err != nil {
			return nil, err
		}
		for i := range rows {
			explicit[rows[i].GroupID] = &rows[i]
		}
	}

	for projectID, groups := range projectGroups {
		pref := preference(projectID)
		for _, g := range groups {
			switch {
			case pref == database.WorkflowNoConversations:
				results[g.ID] = DisabledSubscription()
			case explicit[g.ID] != nil:
				results[g.ID] = ExplicitSubscription(explicit[g.ID])
			default:
				results[g.ID] = DefaultSubscription(pref == database.WorkflowAllConversations)
			}
		}
	}

	return results, nil
}

// getCommitResolutions joins resolved groups to their resolving commits
// through the generic link table.
func (s *GroupSerializer) getCommitResolutions(groupIDs []uint) (map[uint]*CommitResponse, error) {
	var links []database.GroupLink
	err := s.db.
		Where("group_id IN ? AND linked_type = ? AND relationship = ?",
			groupIDs, database.GroupLinkTypeCommit, database.GroupLinkResolves).
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return map[uint]*CommitResponse{}, nil
	}

	commitIDs := make([]uint, 0, len(links))
	for _, link := range links {
		commitIDs = append(commitIDs, link.LinkedID)
	}
	var commits []database.Commit
	if err := s.db.Where("id IN ?", commitIDs).Find(&commits).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]database.Commit, len(commits))
	for _, c := range commits {
		byID[c.ID] = c
	}

	result := make(map[uint]*CommitResponse)
	for _, link := range links {
		commit, ok := byID[link.LinkedID]
		if !ok {
			continue
		}
		dateAdded := commit.DateAdded
		result[link.GroupID] = &CommitResponse{
			ID:         commit.Key,
			Repository: commit.Repository,
			Message:    commit.Message,
			DateAdded:  &dateAdded,
		}
	}
	return result, nil
}

// attachProjects batch-loads the owning project (with organization) for any
// group that was fetched without it, avoiding per-item lazy lookups.
func (s *GroupSerializer) attachProjects(items []*database.Group) error {
	var missing []uint
	for _, item := range items {
		if item.Project.ID == 0 {
			missing = append(missing, item.ProjectID)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var projects []database.Project
	err := s.db.Preload("Organization").Where("id IN ?", missing).Find(&projects).Error
	if err != nil {
		return err
	}
	byID := make(map[uint]database.Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}
	for _, item := range items {
		if item.Project.ID == 0 {
			item.Project = byID[item.ProjectID]
		}
	}
	return nil
}

// environment invokes the configured environment resolver
func (s *GroupSerializer) environment() (*database.Environment, error) {
	if s.EnvironmentFunc == nil {
		return nil, nil
	}
	return s.EnvironmentFunc()
}

// intPtr returns a pointer for non-zero values, nil otherwise. Zero means
// "not set" for snooze windows.
func intPtr(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
