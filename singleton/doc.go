// Package singleton provides a lazily populated registry that holds at most
// one instance per Go type.
//
// The first Get for a type runs the supplied constructor and records the
// result. Every later Get for that type returns the recorded instance and
// ignores the constructor and arguments it was given, so a singleton cannot
// be reconfigured once created. A failed construction records nothing and
// may be retried.
//
// A Registry serialises every check-and-create on one mutex, across all
// types. A constructor that calls back into the same Registry deadlocks.
//
// Typical usage:
//
//	reg := singleton.New()
//	cfg, err := singleton.GetWith(reg, "app.yaml", loadConfig)
//
// Code that wants a process-wide registry uses Default, or the Instance
// helpers that wrap it.
package singleton
