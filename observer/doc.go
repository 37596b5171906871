// Package observer is a generic implementation of the observer pattern,
// based on the description here:
// https://refactoring.guru/design-patterns/observer
//
// An Observable keeps its observers in attachment order and delivers each
// message to them one at a time on the caller's goroutine. Delivery is
// fail-fast: the first observer error stops the broadcast and is returned to
// the caller of Notify. WithFaultIsolation switches to delivering to every
// observer and reporting all failures together.
//
// A Dispatcher feeds an Observable from a channel for callers that would
// rather send events than call Notify.
package observer
