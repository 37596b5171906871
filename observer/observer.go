package observer

// Observer receives the messages broadcast by an Observable.
//
// Observers are tracked by identity, so the dynamic type must be
// comparable. Pointer receivers are the usual choice.
type Observer[T any] interface {
	Update(message T) error
}

// Func adapts a plain function to the Observer interface. Use NewFunc;
// each call returns a distinct observer even for the same function.
type Func[T any] struct {
	fn func(T) error
}

// NewFunc wraps fn in a new Observer.
func NewFunc[T any](fn func(T) error) *Func[T] {
	return &Func[T]{fn: fn}
}

// Update calls the wrapped function.
func (f *Func[T]) Update(message T) error {
	return f.fn(message)
}
