package serializers

import (
	"time"

	"github.com/faultline/faultline/internal/api"
	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/plugins"
	"github.com/faultline/faultline/internal/tsdb"
)

// subscriptionKind tags the three subscription states. A disabled project
// preference is distinct from a defaulted "not subscribed".
type subscriptionKind int

const (
	subscriptionDefault subscriptionKind = iota
	subscriptionExplicit
	subscriptionDisabled
)

// SubscriptionState is the resolved subscription for one (group, requester)
// pair: Disabled (workflow notifications off for the project), Explicit (a
// subscription record whose IsActive flag is authoritative), or Default (no
// record; subscribed follows the project preference).
type SubscriptionState struct {
	kind       subscriptionKind
	subscribed bool
	record     *database.GroupSubscription
}

// DefaultSubscription returns the no-record state
func DefaultSubscription(subscribed bool) SubscriptionState {
	return SubscriptionState{kind: subscriptionDefault, subscribed: subscribed}
}

// ExplicitSubscription wraps an explicit subscription record
func ExplicitSubscription(record *database.GroupSubscription) SubscriptionState {
	return SubscriptionState{kind: subscriptionExplicit, subscribed: record.IsActive, record: record}
}

// DisabledSubscription returns the disabled sentinel state
func DisabledSubscription() SubscriptionState {
	return SubscriptionState{kind: subscriptionDisabled}
}

// Attrs is the per-group attribute bundle the aggregation pass produces.
// Serialize consumes it without further I/O.
type Attrs struct {
	Assignee     *ActorResponse
	IsBookmarked bool
	Subscription SubscriptionState
	HasSeen      bool
	Annotations  []plugins.Annotation
	UserCount    int

	Snooze      *database.GroupSnooze
	SnoozeActor *api.UserResponse

	Resolution       *database.GroupResolution
	ResolutionType   string // "release", "commit" or ""
	ResolutionCommit *CommitResponse
	ResolutionActor  *api.UserResponse

	ShareID   string
	OrgMember bool

	TimesSeen int
	FirstSeen *time.Time
	LastSeen  *time.Time

	Stats []tsdb.Point // stream serializer only
}

// CommitResponse is the serialized commit reference used for commit-based
// resolutions.
type CommitResponse struct {
	ID         string     `json:"id"`
	Repository string     `json:"repository,omitempty"`
	Message    string     `json:"message,omitempty"`
	DateAdded  *time.Time `json:"dateAdded,omitempty"`
}

// ProjectSummary is the embedded project reference
type ProjectSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// SubscriptionDetails explains the subscription state when one applies
type SubscriptionDetails struct {
	Reason   string `json:"reason,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// StatusDetails is the structured payload accompanying the status label.
// All fields are optional; an empty value marshals as {}.
type StatusDetails struct {
	IgnoreCount      *int              `json:"ignoreCount,omitempty"`
	IgnoreUntil      *time.Time        `json:"ignoreUntil,omitempty"`
	IgnoreUserCount  *int              `json:"ignoreUserCount,omitempty"`
	IgnoreUserWindow *int              `json:"ignoreUserWindow,omitempty"`
	IgnoreWindow     *int              `json:"ignoreWindow,omitempty"`
	Actor            *api.UserResponse `json:"actor,omitempty"`
	AutoResolved     bool              `json:"autoResolved,omitempty"`
	InNextRelease    bool              `json:"inNextRelease,omitempty"`
	InRelease        string            `json:"inRelease,omitempty"`
	InCommit         *CommitResponse   `json:"inCommit,omitempty"`
}

// GroupResponse is the flat serialized representation of one issue group.
// Field names are part of the public API.
type GroupResponse struct {
	ID                  string                 `json:"id"`
	ShareID             *string                `json:"shareId"`
	ShortID             string                 `json:"shortId"`
	Count               string                 `json:"count"`
	UserCount           int                    `json:"userCount"`
	Title               string                 `json:"title"`
	Culprit             string                 `json:"culprit"`
	Permalink           *string                `json:"permalink"`
	FirstSeen           *time.Time             `json:"firstSeen"`
	LastSeen            *time.Time             `json:"lastSeen"`
	Logger              *string                `json:"logger"`
	Level               string                 `json:"level"`
	Status              string                 `json:"status"`
	StatusDetails       StatusDetails          `json:"statusDetails"`
	IsPublic            bool                   `json:"isPublic"`
	Project             ProjectSummary         `json:"project"`
	Type                string                 `json:"type"`
	Metadata            database.JSONB         `json:"metadata"`
	NumComments         int                    `json:"numComments"`
	AssignedTo          *ActorResponse         `json:"assignedTo"`
	IsBookmarked        bool                   `json:"isBookmarked"`
	IsSubscribed        bool                   `json:"isSubscribed"`
	SubscriptionDetails *SubscriptionDetails   `json:"subscriptionDetails"`
	HasSeen             bool                   `json:"hasSeen"`
	Annotations         []plugins.Annotation   `json:"annotations"`
	Stats               map[string][]tsdb.Point `json:"stats,omitempty"`

	MatchingEventID          string `json:"matchingEventId,omitempty"`
	MatchingEventEnvironment string `json:"matchingEventEnvironment,omitempty"`

	TagLastSeen  *time.Time `json:"tagLastSeen,omitempty"`
	TagFirstSeen *time.Time `json:"tagFirstSeen,omitempty"`
}

// SharedGroupResponse is the public share-page projection: identical to the
// base response with the annotations key suppressed so plugin internals do
// not leak.
type SharedGroupResponse struct {
	GroupResponse
	Annotations interface{} `json:"annotations,omitempty"`
}

// subscriptionReasonMap maps reason codes to their API labels
var subscriptionReasonMap = map[database.SubscriptionReason]string{
	database.SubscriptionReasonComment:      "commented",
	database.SubscriptionReasonAssigned:     "assigned",
	database.SubscriptionReasonBookmark:     "bookmarked",
	database.SubscriptionReasonStatusChange: "changed_status",
	database.SubscriptionReasonMentioned:    "mentioned",
}
