package integrations

import (
	"testing"

	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/testhelpers"
)

func TestBuildAnnotators_FeatureGating(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	fx := testhelpers.NewFixture(t, db)

	create := func(name, features string, enabled bool) {
		t.Helper()
		err := db.Create(&database.Integration{
			OrganizationID: fx.Organization.ID,
			Provider:       "jira",
			Name:           name,
			Enabled:        enabled,
			Features:       features,
			Settings:       database.JSONB{"link_template": "https://jira.example.com/{uuid}"},
		}).Error
		if err != nil {
			t.Fatal(err)
		}
	}

	create("with-issues", database.IntegrationFeatureIssueBasic, true)
	create("with-sync", database.IntegrationFeatureIssueSync, true)
	create("chat-only", "chat", true)
	create("disabled", database.IntegrationFeatureIssueBasic, false)

	annotators, err := BuildAnnotators(db, fx.Organization.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(annotators) != 2 {
		t.Fatalf("annotators = %d, want 2 (issue-featured, enabled only)", len(annotators))
	}
}

func TestInstallation_RendersLinkTemplate(t *testing.T) {
	install := &Installation{integration: database.Integration{
		Provider: "jira",
		Name:     "ACME Jira",
		Settings: database.JSONB{
			"link_template": "https://jira.example.com/browse/{id}",
			"label":         "JIRA",
		},
	}}

	annotations, err := install.Annotations(&database.Group{ID: 9})
	if err != nil {
		t.Fatal(err)
	}
	if len(annotations) != 1 {
		t.Fatalf("annotations = %d, want 1", len(annotations))
	}
	if annotations[0].Label != "JIRA" {
		t.Errorf("label = %q", annotations[0].Label)
	}
	if annotations[0].URL != "https://jira.example.com/browse/9" {
		t.Errorf("url = %q", annotations[0].URL)
	}
}

func TestInstallation_NoTemplateNoAnnotations(t *testing.T) {
	install := &Installation{integration: database.Integration{
		Name:     "bare",
		Settings: database.JSONB{},
	}}

	annotations, err := install.Annotations(&database.Group{})
	if err != nil {
		t.Fatal(err)
	}
	if annotations != nil {
		t.Errorf("no template should yield no annotations, got %+v", annotations)
	}
}
