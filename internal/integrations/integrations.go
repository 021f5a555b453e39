// Package integrations turns org-scoped Integration records into annotation
// producers. Only integrations carrying an issue feature participate, and
// each installation runs inside the same fault boundary as plugins.
package integrations

import (
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/plugins"
)

// Installation is a configured integration able to annotate groups
type Installation struct {
	integration database.Integration
}

// Name identifies the installation in logs, e.g. "jira:ACME Jira"
func (i *Installation) Name() string {
	return i.integration.Provider + ":" + i.integration.Name
}

// Annotations renders the integration's configured link template for the
// group. Integrations without a link_template are skipped.
func (i *Installation) Annotations(group *database.Group) ([]plugins.Annotation, error) {
	template, _ := i.integration.Settings["link_template"].(string)
	if template == "" {
		return nil, nil
	}

	label, _ := i.integration.Settings["label"].(string)
	if label == "" {
		label = i.integration.Name
	}

	return []plugins.Annotation{{
		Label: label,
		URL:   expand(template, group),
	}}, nil
}

// BuildAnnotators returns one annotator per enabled integration of the
// organization that carries an issue feature, in creation order.
func BuildAnnotators(db *gorm.DB, organizationID uint) ([]plugins.Annotator, error) {
	var integrations []database.Integration
	err := db.
		Where("organization_id = ? AND enabled = ?", organizationID, true).
		Order("id asc").
		Find(&integrations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load integrations: %w", err)
	}

	var annotators []plugins.Annotator
	for _, integration := range integrations {
		if !integration.HasFeature(database.IntegrationFeatureIssueBasic) &&
			!integration.HasFeature(database.IntegrationFeatureIssueSync) {
			continue
		}
		annotators = append(annotators, &Installation{integration: integration})
	}
	return annotators, nil
}

func expand(template string, group *database.Group) string {
	r := strings.NewReplacer(
		"{id}", strconv.FormatUint(uint64(group.ID), 10),
		"{uuid}", group.UUID,
		"{fingerprint}", group.Fingerprint,
	)
	return r.Replace(template)
}
