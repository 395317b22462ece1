package gc

import "errors"

var (
	// ErrNilStore is returned when a collector is built without a store.
	ErrNilStore = errors.New("gc: nil path-edge store")

	// ErrNilKeyFunc is returned when a collector is built without a key function.
	ErrNilKeyFunc = errors.New("gc: nil key function")

	// ErrNilProvider is returned when a collector is built without a reference provider.
	ErrNilProvider = errors.New("gc: nil reference provider")

	// ErrSchedulerStopped is returned when starting a scheduler that has stopped.
	ErrSchedulerStopped = errors.New("gc: scheduler stopped")

	// ErrEdgeResurrected is returned by edge validation when the solver
	// derives an edge the collector has already removed.
	ErrEdgeResurrected = errors.New("gc: collected path edge derived again")

	// ErrNegativeRefCount is returned when a reference is released more
	// often than it was acquired.
	ErrNegativeRefCount = errors.New("gc: reference count below zero")

	// ErrUnknownTrigger is returned when parsing an unknown trigger name.
	ErrUnknownTrigger = errors.New("gc: unknown trigger")
)
