// Package main hosts the workqueue CLI.
//
// bench pushes a batch of events through an instrumented work-queue pipeline
// and prints the hop latency report. serve keeps a steady load running and
// exposes pool and hop metrics for Prometheus. config prints or checks the
// effective configuration.
package main
