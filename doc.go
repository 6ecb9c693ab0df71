// Package workqueue runs event pipelines on pools of worker goroutines and
// measures how long events wait when they hop from one pool to another.
//
// The root package holds the execution engine: GoroutineThreadPool, a set of
// workers of one ExecutionKind pulling tasks from a FIFO queue, and
// PoolProvider, which builds and tracks pools on request.
//
// # Packages
//
//   - core: tasks, queues, the scheduler, the ThreadPool contract and the
//     logging, panic and rejection hooks.
//   - pipeline: events, processors and the hop that moves an event onto a pool.
//   - transition: hop latency records, the statistics table and the
//     instrumenter that feeds it.
//   - strategy: the work-queue processing strategy and its factory.
//   - observability/prometheus: exporters for pool and hop metrics.
//
// # Example
//
//	provider := workqueue.NewPoolProvider(workqueue.WithDefaultWorkers(8))
//	defer provider.Shutdown()
//
//	stats := transition.NewStatistics()
//	registry := transition.NewService(transition.InstrumentationEnabled, stats)
//
//	s := strategy.NewWorkQueueFactory(provider, registry).Create("orders")
//	if err := s.Start(); err != nil {
//		return err
//	}
//	defer s.Stop()
//
//	sink := s.CreateSink(strategy.BuildPipeline(s, parse, store), nil)
//	sink.Accept(ctx, pipeline.NewEvent(order))
package workqueue
