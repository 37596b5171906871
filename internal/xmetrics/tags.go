package xmetrics

import "github.com/hashicorp/go-metrics"

func typeLabel(typeName string) metrics.Label {
	return metrics.Label{Name: "type", Value: typeName}
}

// singleton metrics

func (s Sink) SingletonConstructed(typeName string) {
	s.incr([]string{"singleton", "construct"}, typeLabel(typeName))
}

func (s Sink) SingletonConstructFailed(typeName string) {
	s.incr([]string{"singleton", "construct_failed"}, typeLabel(typeName))
}

// SingletonHit counts lookups answered from an already enrolled type.
func (s Sink) SingletonHit(typeName string) {
	s.incr([]string{"singleton", "hit"}, typeLabel(typeName))
}

// observer metrics

func (s Sink) ObserverAttached() {
	s.incr([]string{"observer", "attach"})
}

func (s Sink) ObserverDetached() {
	s.incr([]string{"observer", "detach"})
}

func (s Sink) Notified() {
	s.incr([]string{"observer", "notify"})
}

func (s Sink) Delivered() {
	s.incr([]string{"observer", "delivery"})
}

func (s Sink) DeliveryFailed() {
	s.incr([]string{"observer", "delivery_failed"})
}
