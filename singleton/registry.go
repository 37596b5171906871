package singleton

import (
	"errors"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/hashicorp/go-metrics"

	"github.com/jeremyforan/go-design-patterns/internal/xmetrics"
)

var (
	// ErrNilConstructor is returned when a type is not yet enrolled and no
	// constructor was supplied to create it.
	ErrNilConstructor = errors.New("singleton: nil constructor")
	// ErrNilRegistry is returned by the Get functions when called with a nil Registry.
	ErrNilRegistry = errors.New("singleton: nil registry")
)

// Registry maps a type to its single instance. It is safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	instances map[reflect.Type]any

	logger  *slog.Logger
	metrics xmetrics.Sink
}

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Registry.
type Option func(*options)

// WithLogger sets the structured logger used for construction events.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithMetrics binds the registry counters to m instead of the go-metrics global instance.
func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// New creates an empty registry.
func New(opts ...Option) *Registry {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		instances: make(map[reflect.Type]any),
		logger:    o.logger,
		metrics:   xmetrics.NewSink(o.metrics),
	}
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the process-wide registry, creating it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// Get returns the instance of T held by r, calling ctor to create it if T is
// not enrolled yet. Once T is enrolled ctor is never called again.
func Get[T any](r *Registry, ctor func() (T, error)) (T, error) {
	var wrapped func(struct{}) (T, error)
	if ctor != nil {
		wrapped = func(struct{}) (T, error) { return ctor() }
	}
	return GetWith(r, struct{}{}, wrapped)
}

// GetWith is Get for constructors that take arguments. args are only used by
// the call that enrolls T; later calls get the first instance whatever args
// they pass.
//
// The registry lock is held for the whole check, construct and store
// sequence. An error from ctor is returned unchanged and leaves T unenrolled.
func GetWith[T, A any](r *Registry, args A, ctor func(A) (T, error)) (T, error) {
	var zero T
	if r == nil {
		return zero, ErrNilRegistry
	}

	t := reflect.TypeFor[T]()

	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[t]; ok {
		r.metrics.SingletonHit(t.String())
		v, _ := inst.(T)
		return v, nil
	}

	if ctor == nil {
		return zero, ErrNilConstructor
	}

	v, err := ctor(args)
	if err != nil {
		r.logger.Warn("singleton construction failed", "type", t.String(), "err", err)
		r.metrics.SingletonConstructFailed(t.String())
		return zero, err
	}

	r.instances[t] = v
	r.logger.Debug("singleton constructed", "type", t.String())
	r.metrics.SingletonConstructed(t.String())
	return v, nil
}

// MustGet is Get that panics on error.
func MustGet[T any](r *Registry, ctor func() (T, error)) T {
	v, err := Get(r, ctor)
	if err != nil {
		panic(err)
	}
	return v
}

// MustGetWith is GetWith that panics on error.
func MustGetWith[T, A any](r *Registry, args A, ctor func(A) (T, error)) T {
	v, err := GetWith(r, args, ctor)
	if err != nil {
		panic(err)
	}
	return v
}

// Instance is Get against the Default registry.
func Instance[T any](ctor func() (T, error)) (T, error) {
	return Get(Default(), ctor)
}

// InstanceWith is GetWith against the Default registry.
func InstanceWith[T, A any](args A, ctor func(A) (T, error)) (T, error) {
	return GetWith(Default(), args, ctor)
}

// IsEnrolled reports whether r already holds an instance of T.
func IsEnrolled[T any](r *Registry) bool {
	return r.Enrolled(reflect.TypeFor[T]())
}

// Enrolled reports whether r already holds an instance of t.
func (r *Registry) Enrolled(t reflect.Type) bool {
	if r == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.instances[t]
	return ok
}

// Len returns the number of enrolled types.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// Types returns the enrolled types ordered by their string form.
func (r *Registry) Types() []reflect.Type {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	types := make([]reflect.Type, 0, len(r.instances))
	for t := range r.instances {
		types = append(types, t)
	}
	r.mu.Unlock()

	sort.Slice(types, func(i, j int) bool { return types[i].String() < types[j].String() })
	return types
}

// SetLogger sets the structured logger for the registry. A nil logger
// discards everything.
func (r *Registry) SetLogger(logger *slog.Logger) {
	if r == nil {
		return
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger = logger
}

// Logger returns the structured logger for the registry.
func (r *Registry) Logger() *slog.Logger {
	if r == nil {
		return slog.New(slog.DiscardHandler)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.logger
}
