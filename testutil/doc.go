// Package testutil provides testing utilities for vecqueue.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded random source, a generator for reproducible push
// workloads and a reference model that predicts the outcome of drains and
// range scans.
//
// # Workloads
//
//	rng := testutil.NewRNG(seed)
//	ops := rng.Workload(testutil.WorkloadConfig{Ops: 500, IDs: 50, MaxTS: 1000, Dim: 8})
//
// # Reference Model
//
//	m := testutil.NewModel(ops)
//	want := m.Drain(now) // one outcome per id
//	live := m.Live()     // what a range scan yields
package testutil
