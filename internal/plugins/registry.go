// Package plugins provides the annotation plugin registry. Plugins decorate
// serialized groups with label/link pairs; a misbehaving plugin is contained
// and contributes nothing.
package plugins

import (
	"fmt"
	"log"
	"sync"

	"github.com/faultline/faultline/internal/database"
)

// Annotation is an opaque label/link pair attached to a serialized group
type Annotation struct {
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}

// Annotator produces annotations for a group. Implementations must not
// assume any particular project; the registry handles scoping.
type Annotator interface {
	Name() string
	Annotations(group *database.Group) ([]Annotation, error)
}

// Registry holds registered annotators, globally or per project. Iteration
// order is registration order, global annotators first.
type Registry struct {
	mu        sync.RWMutex
	global    []Annotator
	byProject map[uint][]Annotator
}

// NewRegistry creates an empty plugin registry
func NewRegistry() *Registry {
	return &Registry{
		byProject: make(map[uint][]Annotator),
	}
}

// Register adds an annotator active for all projects
func (r *Registry) Register(a Annotator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.global = append(r.global, a)
}

// RegisterForProject adds an annotator scoped to a single project
func (r *Registry) RegisterForProject(projectID uint, a Annotator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byProject[projectID] = append(r.byProject[projectID], a)
}

// ForProject returns the annotators applicable to a project
func (r *Registry) ForProject(projectID uint) []Annotator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	annotators := make([]Annotator, 0, len(r.global)+len(r.byProject[projectID]))
	annotators = append(annotators, r.global...)
	annotators = append(annotators, r.byProject[projectID]...)
	return annotators
}

// SafeAnnotations invokes an annotator inside a fault boundary. Errors and
// panics are logged and yield no annotations, so one broken plugin cannot
// abort serialization for other plugins or groups.
func SafeAnnotations(a Annotator, group *database.Group) (annotations []Annotation) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Plugin %s panicked annotating group %d: %v", a.Name(), group.ID, r)
			annotations = nil
		}
	}()

	annotations, err := a.Annotations(group)
	if err != nil {
		log.Printf("Plugin %s failed annotating group %d: %v", a.Name(), group.ID, err)
		return nil
	}
	return annotations
}

// FuncAnnotator adapts a plain function into an Annotator
type FuncAnnotator struct {
	PluginName string
	Func       func(group *database.Group) ([]Annotation, error)
}

func (f FuncAnnotator) Name() string {
	return f.PluginName
}

func (f FuncAnnotator) Annotations(group *database.Group) ([]Annotation, error) {
	if f.Func == nil {
		return nil, fmt.Errorf("annotator %s has no function", f.PluginName)
	}
	return f.Func(group)
}
