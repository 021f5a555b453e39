package utils

import (
	"fmt"
	"strings"
)

// AbsoluteURI joins the configured base URL with a path, normalizing slashes.
func AbsoluteURI(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// GroupPermalink returns the canonical issue URL for a group. The URL embeds
// the organization slug, so callers must only hand it to org members.
func GroupPermalink(base, orgSlug, projectSlug string, groupID uint) string {
	return AbsoluteURI(base, fmt.Sprintf("%s/%s/issues/%d/", orgSlug, projectSlug, groupID))
}
