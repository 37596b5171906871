package observer

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/hashicorp/go-metrics"
	"github.com/tidwall/btree"

	"github.com/jeremyforan/go-design-patterns/internal/xmetrics"
)

var (
	ErrNilObserver          = errors.New("observer: nil observer")
	ErrUncomparableObserver = errors.New("observer: observer type is not comparable")
	// ErrObserverPanicked wraps a value recovered from Update when fault
	// isolation is enabled.
	ErrObserverPanicked = errors.New("observer: observer panicked")
)

// DeliveryError reports a failed delivery to the observer at Position
// (zero based, in attachment order at the time of the Notify call).
type DeliveryError struct {
	Position int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("observer: delivery to observer %d failed: %v", e.Position, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Observable keeps an ordered set of observers and broadcasts messages to
// them. It is safe for concurrent use.
type Observable[T any] struct {

	// mutex to protect the observer set.
	mu sync.RWMutex

	// observers in attachment order, keyed by attach sequence.
	order *btree.Map[uint64, Observer[T]]

	// identity index into order.
	index map[Observer[T]]uint64

	// next attach sequence number.
	seq uint64

	// isolate continues delivery past failing observers.
	isolate bool

	logger  *slog.Logger
	metrics xmetrics.Sink
}

type options struct {
	isolate bool
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Observable.
type Option func(*options)

// WithFaultIsolation makes Notify deliver to every observer even when some
// fail or panic. Notify then returns every failure joined, each as a
// *DeliveryError. Without it the first failure stops the broadcast.
func WithFaultIsolation() Option { return func(o *options) { o.isolate = true } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithMetrics binds the observable counters to m instead of the go-metrics global instance.
func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// NewObservable creates an Observable with no observers.
func NewObservable[T any](opts ...Option) *Observable[T] {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return &Observable[T]{
		order:   btree.NewMap[uint64, Observer[T]](32),
		index:   make(map[Observer[T]]uint64),
		isolate: o.isolate,
		logger:  o.logger,
		metrics: xmetrics.NewSink(o.metrics),
	}
}

// Attach adds obs after the observers already attached. Attaching an
// observer that is already present does nothing.
func (o *Observable[T]) Attach(obs Observer[T]) error {
	if obs == nil {
		return ErrNilObserver
	}
	if !identifiable(obs) {
		return ErrUncomparableObserver
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.index[obs]; exists {
		return nil
	}

	o.seq++
	o.order.Set(o.seq, obs)
	o.index[obs] = o.seq

	o.logger.Debug("attached observer", "seq", o.seq, "count", len(o.index))
	o.metrics.ObserverAttached()
	return nil
}

// identifiable reports whether obs can be used as a map key. Interface
// fields are checked by their dynamic values, not just their static types.
func identifiable[T any](obs Observer[T]) bool {
	return reflect.ValueOf(obs).Comparable()
}

// Detach removes obs. If obs is not attached, it does nothing.
func (o *Observable[T]) Detach(obs Observer[T]) {
	if obs == nil || !identifiable(obs) {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	seq, exists := o.index[obs]
	if !exists {
		return
	}
	o.order.Delete(seq)
	delete(o.index, obs)

	o.logger.Debug("detached observer", "seq", seq, "count", len(o.index))
	o.metrics.ObserverDetached()
}

// Has reports whether obs is attached.
func (o *Observable[T]) Has(obs Observer[T]) bool {
	if obs == nil || !identifiable(obs) {
		return false
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	_, exists := o.index[obs]
	return exists
}

// Len returns the number of attached observers.
func (o *Observable[T]) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.index)
}

// Observers returns the attached observers in attachment order.
func (o *Observable[T]) Observers() []Observer[T] {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.observersLocked()
}

func (o *Observable[T]) observersLocked() []Observer[T] {
	observers := make([]Observer[T], 0, len(o.index))
	o.order.Scan(func(_ uint64, obs Observer[T]) bool {
		observers = append(observers, obs)
		return true
	})
	return observers
}

// Clear detaches every observer.
func (o *Observable[T]) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()

	removed := len(o.index)
	o.order = btree.NewMap[uint64, Observer[T]](32)
	o.index = make(map[Observer[T]]uint64)

	o.logger.Debug("cleared observers", "removed", removed)
	for i := 0; i < removed; i++ {
		o.metrics.ObserverDetached()
	}
}

// Notify calls Update(message) on every attached observer in attachment
// order, on the calling goroutine.
//
// Observers see the set as it was when Notify started; attaching or
// detaching from inside Update takes effect on the next Notify.
func (o *Observable[T]) Notify(message T) error {
	o.mu.RLock()
	observers := o.observersLocked()
	logger := o.logger
	o.mu.RUnlock()

	o.metrics.Notified()

	if o.isolate {
		return o.notifyIsolated(logger, message, observers)
	}

	for _, obs := range observers {
		if err := obs.Update(message); err != nil {
			o.metrics.DeliveryFailed()
			return err
		}
		o.metrics.Delivered()
	}
	return nil
}

func (o *Observable[T]) notifyIsolated(logger *slog.Logger, message T, observers []Observer[T]) error {
	var errs []error
	for i, obs := range observers {
		if err := deliver(obs, message); err != nil {
			logger.Warn("observer update failed", "position", i, "err", err)
			o.metrics.DeliveryFailed()
			errs = append(errs, &DeliveryError{Position: i, Err: err})
			continue
		}
		o.metrics.Delivered()
	}
	return errors.Join(errs...)
}

func deliver[T any](obs Observer[T], message T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrObserverPanicked, r)
		}
	}()
	return obs.Update(message)
}

// SetLogger sets the structured logger for the observable. A nil logger
// discards everything.
func (o *Observable[T]) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.logger = logger
}

// Logger returns the structured logger for the observable.
func (o *Observable[T]) Logger() *slog.Logger {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.logger
}
