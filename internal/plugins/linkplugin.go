package plugins

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/faultline/faultline/internal/database"
)

// LinkPluginDef is one entry in the plugins YAML file. URL supports the
// placeholders {id}, {uuid}, {fingerprint} and {project}.
type LinkPluginDef struct {
	Name     string `yaml:"name"`
	Label    string `yaml:"label"`
	URL      string `yaml:"url"`
	Projects []uint `yaml:"projects,omitempty"` // empty = all projects
}

type pluginsFile struct {
	Plugins []LinkPluginDef `yaml:"plugins"`
}

// LinkPlugin is a configured annotator that renders a templated external link
// for every group.
type LinkPlugin struct {
	def LinkPluginDef
}

// NewLinkPlugin creates a link plugin from its definition
func NewLinkPlugin(def LinkPluginDef) *LinkPlugin {
	return &LinkPlugin{def: def}
}

func (p *LinkPlugin) Name() string {
	return p.def.Name
}

func (p *LinkPlugin) Annotations(group *database.Group) ([]Annotation, error) {
	if p.def.Label == "" {
		return nil, fmt.Errorf("link plugin %s has no label", p.def.Name)
	}
	return []Annotation{{
		Label: p.expand(p.def.Label, group),
		URL:   p.expand(p.def.URL, group),
	}}, nil
}

// expand substitutes group placeholders into a template string
func (p *LinkPlugin) expand(template string, group *database.Group) string {
	r := strings.NewReplacer(
		"{id}", strconv.FormatUint(uint64(group.ID), 10),
		"{uuid}", group.UUID,
		"{fingerprint}", group.Fingerprint,
		"{project}", strconv.FormatUint(uint64(group.ProjectID), 10),
	)
	return r.Replace(template)
}

// LoadFile parses a plugins YAML file
func LoadFile(path string) ([]LinkPluginDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f pluginsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse plugins file: %w", err)
	}
	return f.Plugins, nil
}

// RegisterFromFile loads link-plugin definitions and registers them. A
// missing file is not an error; it just means no link plugins.
func RegisterFromFile(registry *Registry, path string) error {
	defs, err := LoadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, def := range defs {
		plugin := NewLinkPlugin(def)
		if len(def.Projects) == 0 {
			registry.Register(plugin)
			continue
		}
		for _, projectID := range def.Projects {
			registry.RegisterForProject(projectID, plugin)
		}
	}
	return nil
}
