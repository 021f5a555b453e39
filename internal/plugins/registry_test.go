package plugins

import (
	"errors"
	"testing"

	"github.com/faultline/faultline/internal/database"
)

func TestRegistry_GlobalAndProjectScoping(t *testing.T) {
	r := NewRegistry()
	global := FuncAnnotator{PluginName: "global", Func: func(g *database.Group) ([]Annotation, error) {
		return []Annotation{{Label: "g"}}, nil
	}}
	scoped := FuncAnnotator{PluginName: "scoped", Func: func(g *database.Group) ([]Annotation, error) {
		return []Annotation{{Label: "s"}}, nil
	}}

	r.Register(global)
	r.RegisterForProject(7, scoped)

	if got := r.ForProject(7); len(got) != 2 {
		t.Errorf("project 7 annotators = %d, want 2 (global + scoped)", len(got))
	}
	if got := r.ForProject(8); len(got) != 1 {
		t.Errorf("project 8 annotators = %d, want 1 (global only)", len(got))
	}
}

func TestRegistry_GlobalsRunFirst(t *testing.T) {
	r := NewRegistry()
	r.RegisterForProject(1, FuncAnnotator{PluginName: "scoped"})
	r.Register(FuncAnnotator{PluginName: "global"})

	got := r.ForProject(1)
	if len(got) != 2 {
		t.Fatalf("annotators = %d, want 2", len(got))
	}
	if got[0].Name() != "global" || got[1].Name() != "scoped" {
		t.Errorf("order = [%s, %s], want [global, scoped]", got[0].Name(), got[1].Name())
	}
}

func TestSafeAnnotations_RecoverFromPanic(t *testing.T) {
	panicky := FuncAnnotator{PluginName: "panicky", Func: func(g *database.Group) ([]Annotation, error) {
		panic("boom")
	}}

	got := SafeAnnotations(panicky, &database.Group{})
	if got != nil {
		t.Errorf("panicking annotator should contribute nothing, got %+v", got)
	}
}

func TestSafeAnnotations_SwallowsErrors(t *testing.T) {
	failing := FuncAnnotator{PluginName: "failing", Func: func(g *database.Group) ([]Annotation, error) {
		return nil, errors.New("upstream down")
	}}

	if got := SafeAnnotations(failing, &database.Group{}); got != nil {
		t.Errorf("failing annotator should contribute nothing, got %+v", got)
	}
}

func TestSafeAnnotations_PassesThrough(t *testing.T) {
	ok := FuncAnnotator{PluginName: "ok", Func: func(g *database.Group) ([]Annotation, error) {
		return []Annotation{{Label: "L", URL: "U"}}, nil
	}}

	got := SafeAnnotations(ok, &database.Group{})
	if len(got) != 1 || got[0].Label != "L" {
		t.Errorf("annotations = %+v", got)
	}
}
