/*
Package types defines core data structures shared across trackload.

# Overview

The types package provides shared type definitions for:
  - Tracker API calls and their results
  - Named timing samples and check results
  - The Recorder sink fed by the executor and the scenario flows

# Request Types

HttpRequest:
  - One call against the tracker API
  - Carries the sample name tag used by thresholds
  - Carries the bearer token, which is never serialized

RequestResult:
  - Status, headers, body
  - Duration and size metrics
  - Transport error and k6-style error code
  - The traceparent sent with the request

# Recording

Every HTTP call produces a Sample. Every verified step produces a
CheckResult. Both go through a Recorder; MultiRecorder fans them out to
Prometheus, the run collector and SQLite.

Scenario names travel on the context (WithScenario / ScenarioFrom) so the
executor can tag samples without knowing which flow issued the call.
*/
package types
