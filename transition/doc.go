// Package transition records how long work waits when it hops between pools.
//
// An Instrumenter puts a start mark before a hop and a finish mark after it.
// Each finished handoff becomes a Record keyed by the (from, to) execution
// kinds and is added to a Registry. The Service registry keeps every sample in
// a Statistics table, which answers count, mean, standard deviation and
// percentile queries per key. Unknown keys are errors, never zero values.
//
// Recording is off unless the Service is built with InstrumentationEnabled; a
// disabled Instrumenter inserts nothing into the pipeline.
package transition
