package serializers

import "github.com/faultline/faultline/internal/database"

// SharedGroupSerializer serves the public share page: the group is projected
// as for an anonymous requester and plugin annotations are suppressed.
type SharedGroupSerializer struct {
	base *GroupSerializer
}

// NewSharedGroupSerializer wraps a base serializer for public share access
func NewSharedGroupSerializer(base *GroupSerializer) *SharedGroupSerializer {
	return &SharedGroupSerializer{base: base}
}

// Serialize projects a shared group for an unauthenticated viewer
func (s *SharedGroupSerializer) Serialize(group *database.Group) (SharedGroupResponse, error) {
	attrs, err := s.base.GetAttrs([]*database.Group{group}, nil)
	if err != nil {
		return SharedGroupResponse{}, err
	}
	inner := s.base.Serialize(group, attrs[group.ID], nil)
	inner.Annotations = nil
	return SharedGroupResponse{GroupResponse: inner}, nil
}
