// Package workflowdef loads workflow definitions from YAML, validates their
// dependency graph, and checks that every phase's executor is present in
// the Phase Registry — failing fast on a cyclic or unregistered workflow at
// startup rather than at first job.
//
// Grounded on the teacher's internal/jobs/pipeline/learning_build.spec.go:
// the same embed.FS + env-path-override + yaml.Unmarshal + sync.Once cache
// shape, generalized from one hardcoded pipeline to a directory of
// independently loadable workflow definitions, and from that file's
// hand-rolled order/dependency validation to internal/graph.New.
package workflowdef

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/graph"
	"github.com/wifientist/rtools2-sub002/internal/registry"
)

//go:embed definitions/*.yaml
var builtinFS embed.FS

// DefinitionsDirEnv, when set, points to a directory of *.yaml files to load
// instead of the embedded built-ins — useful for operators who want to add
// or override workflows without a rebuild.
const DefinitionsDirEnv = "WORKFLOWDEF_DIR"

// Set is a validated collection of workflow definitions keyed by name.
type Set struct {
	mu          sync.RWMutex
	definitions map[string]*domain.WorkflowDefinition
	graphs      map[string]*graph.Graph
}

// Load reads every *.yaml definition (embedded, or from WORKFLOWDEF_DIR if
// set), parses it, and validates its dependency graph. It does not check
// executor registration — call ValidateAgainst for that, once the Phase
// Registry has its executors registered.
func Load() (*Set, error) {
	files, err := definitionSources()
	if err != nil {
		return nil, err
	}

	set := &Set{
		definitions: make(map[string]*domain.WorkflowDefinition),
		graphs:      make(map[string]*graph.Graph),
	}

	for _, f := range files {
		data, err := f.read()
		if err != nil {
			return nil, fmt.Errorf("workflowdef: read %s: %w", f.name, err)
		}
		var def domain.WorkflowDefinition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("workflowdef: parse %s: %w", f.name, err)
		}
		if strings.TrimSpace(def.Name) == "" {
			return nil, fmt.Errorf("workflowdef: %s: missing name", f.name)
		}
		if _, dup := set.definitions[def.Name]; dup {
			return nil, fmt.Errorf("workflowdef: duplicate workflow name %q (from %s)", def.Name, f.name)
		}

		g, errs := graph.New(def.Phases)
		if len(errs) > 0 {
			return nil, fmt.Errorf("workflowdef: %s: invalid dependency graph: %w", def.Name, joinErrors(errs))
		}

		defCopy := def
		set.definitions[def.Name] = &defCopy
		set.graphs[def.Name] = g
	}

	if len(set.definitions) == 0 {
		return nil, fmt.Errorf("workflowdef: no workflow definitions found")
	}
	return set, nil
}

// ValidateAgainst checks that every phase's Executor id has a registered
// PhaseExecutor, returning one error per missing binding.
func (s *Set) ValidateAgainst(reg *registry.Registry) []error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var errs []error
	for name, def := range s.definitions {
		for _, p := range def.Phases {
			if _, ok := reg.Get(p.Executor); !ok {
				errs = append(errs, fmt.Errorf("workflowdef: %s: phase %s: no executor registered for %q", name, p.ID, p.Executor))
			}
		}
	}
	return errs
}

// Get returns a loaded workflow definition and its validated dependency
// graph by name.
func (s *Set) Get(name string) (*domain.WorkflowDefinition, *graph.Graph, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.definitions[name]
	if !ok {
		return nil, nil, false
	}
	return def, s.graphs[name], true
}

// Names returns every loaded workflow name, sorted.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.definitions))
	for name := range s.definitions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type source struct {
	name string
	read func() ([]byte, error)
}

func definitionSources() ([]source, error) {
	if dir := strings.TrimSpace(os.Getenv(DefinitionsDirEnv)); dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("workflowdef: read dir %s: %w", dir, err)
		}
		var out []source
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			out = append(out, source{name: path, read: func() ([]byte, error) { return os.ReadFile(path) }})
		}
		return out, nil
	}

	entries, err := builtinFS.ReadDir("definitions")
	if err != nil {
		return nil, err
	}
	var out []source
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		name := e.Name()
		out = append(out, source{name: name, read: func() ([]byte, error) { return builtinFS.ReadFile("definitions/" + name) }})
	}
	return out, nil
}

func joinErrors(errs []error) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
