package operation

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/abelbrown/opstream/internal/clock"
	"github.com/abelbrown/opstream/internal/otel"
	"github.com/abelbrown/opstream/internal/phase"
	"github.com/abelbrown/opstream/internal/reveal"
)

var (
	// ErrNotFound is returned for an unknown instance ID.
	ErrNotFound = errors.New("operation not found")
	// ErrExists is returned when beginning an instance whose ID is taken.
	ErrExists = errors.New("operation already exists")
)

// Registry tracks independent instances in the order they began.
// Instances never share logs, timers or reveal state.
type Registry struct {
	mu        sync.Mutex
	settings  Settings
	instances map[string]*Instance
	order     []string

	onSettled []func(id string)
	onPhase   []func(id string, p phase.Phase)
}

// NewRegistry creates a Registry whose instances use s.
func NewRegistry(s Settings) *Registry {
	if s.Clock == nil {
		s.Clock = clock.Real()
	}
	if s.Reveal == (reveal.Controller{}) {
		s.Reveal = DefaultSettings().Reveal
	}
	return &Registry{
		settings:  s,
		instances: make(map[string]*Instance),
	}
}

// OnSettled registers the completion consumer. fn runs once per instance,
// when its display timer reaches Settled.
func (r *Registry) OnSettled(fn func(id string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSettled = append(r.onSettled, fn)
}

// OnPhase registers fn for every visible phase change of any instance.
func (r *Registry) OnPhase(fn func(id string, p phase.Phase)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPhase = append(r.onPhase, fn)
}

// Begin creates an instance with a fresh ID.
func (r *Registry) Begin(label string) *Instance {
	inst, _ := r.BeginID(uuid.NewString(), label)
	return inst
}

// BeginID creates an instance with a caller-chosen ID, e.g. one read back
// from the journal.
func (r *Registry) BeginID(id, label string) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[id]; ok {
		return nil, fmt.Errorf("begin %s: %w", id, ErrExists)
	}

	inst := newInstance(id, label, r.settings,
		func(p phase.Phase) { r.phaseChanged(id, p) },
		func() { r.settled(id) },
	)
	r.instances[id] = inst
	r.order = append(r.order, id)

	r.settings.Logger.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindOpBegin, Comp: "registry", OpID: id, Msg: label})
	return inst, nil
}

// Supersede closes oldID and begins a replacement. The old instance fires no
// further callbacks. An unknown oldID just begins a new instance.
func (r *Registry) Supersede(oldID, label string) *Instance {
	_ = r.Close(oldID)
	return r.Begin(label)
}

// Get returns the instance with id.
func (r *Registry) Get(id string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	return inst, ok
}

// Close tears down and forgets the instance with id.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	inst, ok := r.instances[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("close %s: %w", id, ErrNotFound)
	}
	delete(r.instances, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	r.mu.Unlock()

	inst.Close()
	return nil
}

// CloseAll tears down every instance.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Instance, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, r.instances[id])
	}
	r.instances = make(map[string]*Instance)
	r.order = nil
	r.mu.Unlock()

	for _, inst := range all {
		inst.Close()
	}
}

// Len returns the number of live instances.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Views returns the render state of every instance in begin order.
func (r *Registry) Views() []View {
	r.mu.Lock()
	all := make([]*Instance, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, r.instances[id])
	}
	r.mu.Unlock()

	views := make([]View, 0, len(all))
	for _, inst := range all {
		views = append(views, inst.View())
	}
	return views
}

func (r *Registry) phaseChanged(id string, p phase.Phase) {
	r.mu.Lock()
	fns := slices.Clone(r.onPhase)
	r.mu.Unlock()
	for _, fn := range fns {
		fn(id, p)
	}
}

func (r *Registry) settled(id string) {
	r.mu.Lock()
	fns := slices.Clone(r.onSettled)
	r.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}
