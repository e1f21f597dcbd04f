package flow

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Hook runs flow-kind specific side effects when a flow is stopped or fails.
type Hook func(ctx context.Context, sc *StepContext, cause error) error

// Definition is the ordered step list of one flow kind plus its lifecycle hooks.
type Definition struct {
	Name  string
	Steps []Step
	// OnComplete decides what happens to the persisted state once every step has run.
	OnComplete Statehandler
	OnStop     Hook
	OnFailure  Hook
	// FreeTextKey, when set, stores non-command text under this data key and continues the
	// flow instead of rejecting it as an invalid command.
	FreeTextKey string
	UsageHint   string
}

func (d *Definition) Validate() error {
	if len(d.Name) == 0 {
		return fmt.Errorf("flow definition without name")
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFlow, d.Name)
	}
	for i, s := range d.Steps {
		if s == nil {
			return fmt.Errorf("flow %s: step %d is nil", d.Name, i)
		}
	}
	return ValidateStateHandler(string(d.OnComplete))
}

type Registry struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
}

func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]*Definition),
	}
}

func (r *Registry) Register(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.definitions[def.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFlow, def.Name)
	}
	r.definitions[def.Name] = def
	return nil
}

func (r *Registry) Get(kind string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, kind)
	}
	return def, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
