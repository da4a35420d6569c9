// Package simulation runs rounds over a population of agents and wires the
// engine components into a Lab.
//
// A round evaluates and evolves every agent in population order, records a
// snapshot per evaluation, lets agents share knowledge, and every few rounds
// builds a system report. One agent failing never aborts the round: each
// agent step runs behind panic recovery and its own circuit breaker.
//
// A Lab is the explicit run context: it owns the population, the runner,
// the feedback integrator, the analyzer and the store. There are no
// process-wide singletons.
//
// Usage:
//
//	lab, err := simulation.NewLab(simulation.LabOptions{Config: cfg, Store: st})
//	if err != nil {
//	    return err
//	}
//	if err := lab.Load(ctx); err != nil {
//	    return err
//	}
//	result, err := lab.Simulate(ctx, 20)
package simulation
