/*
Package stresstest schedules scenario iterations and aggregates their results.

# Overview

A run is a set of ScenarioPlans executed concurrently by a Driver:
  - ramping-arrival-rate: iterations start at precomputed offsets on a
    fixed pool of VUs; an iteration due while every VU is busy is dropped
  - shared-iterations: VUs pull iteration indexes from a shared counter
    until the count is reached or maxDuration elapses

# Architecture

 1. Config (config.go): plans built from the profile and X_LOAD, run records
 2. Pacer (pacer.go): start offsets of a piecewise-linear arrival rate
 3. Driver (executor.go): VU pools and cancellation
 4. Collector (collector.go): per-name, per-scenario and check aggregation
 5. Thresholds (thresholds.go): pass/fail criteria over the collected data
 6. Manager (manager.go): SQLite persistence of runs, samples and checks

# Thresholds

Keys name a metric with an optional tag filter, expressions an aggregation:

	http_req_duration{name:/issues}: ["p(90)<1000", "avg<300"]
	http_req_failed: ["rate<0.01"]
	checks: ["rate>0.99"]
	dropped_iterations{scenario:create_issue}: ["count<5"]

# Database Schema

SQLite database stores:
  - load_runs: one row per run with final totals
  - load_samples: individual timing samples
  - load_checks: individual check results

# Example Usage

	manager, err := NewManager("trackload.db")
	if err != nil {
		return err
	}
	defer manager.Close()

	collector := NewCollector(manager, run.ID, log)
	driver := NewDriver(log, collector)
	results, err := driver.Run(ctx, plans, flows)
	collector.Close()

# Thread Safety

Collector and Driver are safe for concurrent use. Manager relies on a
single SQLite connection.
*/
package stresstest
