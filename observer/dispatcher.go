package observer

import (
	"log/slog"
	"sync"
)

// ErrorHandler receives the error Notify returned for event.
type ErrorHandler[T any] func(event T, err error)

// Dispatcher drains a channel of events into an Observable, one event at a
// time, so delivery keeps the Observable's ordering and failure semantics.
type Dispatcher[T any] struct {

	// mutex to protect the logger.
	mu sync.RWMutex

	observable *Observable[T]

	// eventChan receives events from callers; the loop started by Start
	// hands each one to observable.Notify.
	eventChan chan T

	// halt is closed by Halt to stop the loop without draining eventChan.
	halt chan struct{}

	// WaitGroup used to wait for the loop to exit. Used in DrainThenStop and Halt.
	shutdownWg sync.WaitGroup

	startOnce sync.Once
	closeOnce sync.Once
	haltOnce  sync.Once

	onError ErrorHandler[T]

	// structured logger for logging events and errors.
	logger *slog.Logger
}

type dispatcherOptions[T any] struct {
	buffer  int
	onError ErrorHandler[T]
	logger  *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption[T any] func(*dispatcherOptions[T])

// WithBuffer sets the capacity of the event channel. The default is unbuffered.
func WithBuffer[T any](size int) DispatcherOption[T] {
	return func(o *dispatcherOptions[T]) { o.buffer = size }
}

// WithErrorHandler replaces the default handler, which logs the error at warn level.
func WithErrorHandler[T any](fn ErrorHandler[T]) DispatcherOption[T] {
	return func(o *dispatcherOptions[T]) { o.onError = fn }
}

// WithDispatcherLogger sets the structured logger for the dispatcher.
func WithDispatcherLogger[T any](l *slog.Logger) DispatcherOption[T] {
	return func(o *dispatcherOptions[T]) { o.logger = l }
}

// NewDispatcher creates a Dispatcher that notifies observable.
func NewDispatcher[T any](observable *Observable[T], opts ...DispatcherOption[T]) *Dispatcher[T] {
	var o dispatcherOptions[T]
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.buffer < 0 {
		o.buffer = 0
	}

	d := &Dispatcher[T]{
		observable: observable,
		eventChan:  make(chan T, o.buffer),
		halt:       make(chan struct{}),
		onError:    o.onError,
		logger:     o.logger,
	}
	if d.onError == nil {
		d.onError = func(event T, err error) {
			d.Logger().Warn("notify failed", "event", event, "err", err)
		}
	}
	return d
}

// Start returns a *send-only* channel so callers can publish but not read.
// The loop runs until the channel is closed by DrainThenStop or Halt.
// Calling Start again returns the same channel.
//
// Sending on the channel after DrainThenStop or Halt panics.
func (d *Dispatcher[T]) Start() chan<- T {
	d.startOnce.Do(func() {
		d.shutdownWg.Go(d.loop)
	})

	// implicitly converts to send-only
	return d.eventChan
}

func (d *Dispatcher[T]) loop() {
	for {
		select {
		case <-d.halt:
			return
		case event, ok := <-d.eventChan:
			if !ok {
				return
			}

			// Halt wins over events that were already queued.
			select {
			case <-d.halt:
				return
			default:
			}

			if err := d.observable.Notify(event); err != nil {
				d.onError(event, err)
			}
		}
	}
}

// DrainThenStop closes the event channel and waits until every event
// already sent has been delivered. If Start was never called, the loop is
// started here so buffered events are not lost.
func (d *Dispatcher[T]) DrainThenStop() {
	d.Start()
	d.closeOnce.Do(func() { close(d.eventChan) })
	d.shutdownWg.Wait()
}

// Halt closes the event channel and returns once the event being delivered,
// if any, has finished. Queued events are dropped.
func (d *Dispatcher[T]) Halt() {
	d.haltOnce.Do(func() { close(d.halt) })
	d.closeOnce.Do(func() { close(d.eventChan) })
	d.shutdownWg.Wait()
}

// SetLogger sets the structured logger for the dispatcher. A nil logger
// discards everything.
func (d *Dispatcher[T]) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger = logger
}

// Logger returns the structured logger for the dispatcher.
func (d *Dispatcher[T]) Logger() *slog.Logger {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.logger
}
