// Package pipeline is the per-item processing capability dispatch strategies build on.
//
// A Processor wraps the next Handler in the chain. Items are *Event values and
// travel together with a context.Context, which is how segments pass values
// downstream (WithValue) and how a segment learns which pool kind it runs on.
//
//	p := pipeline.Chain(
//		pipeline.Map(parse),
//		pipeline.RunOn(ioPool),
//		pipeline.Map(store),
//	)
//	handler := pipeline.Apply(p, done)
//	handler(ctx, pipeline.NewEvent(payload))
//
// Failures do not stop an event: Map records the first error on Event.Err and
// later Map stages skip the event, leaving the terminal Handler to decide.
package pipeline
