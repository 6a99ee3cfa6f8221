package stresstest

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Metric names usable in threshold keys
const (
	MetricReqDuration       = "http_req_duration"
	MetricReqFailed         = "http_req_failed"
	MetricChecks            = "checks"
	MetricIterations        = "iterations"
	MetricDroppedIterations = "dropped_iterations"
)

var exprPattern = regexp.MustCompile(`^\s*(avg|min|max|med|p\(\s*\d+(?:\.\d+)?\s*\)|rate|count)\s*(<=|>=|==|!=|<|>)\s*(-?[0-9]+(?:\.[0-9]+)?)\s*$`)

var allowedAggs = map[string]map[string]bool{
	MetricReqDuration:       {"avg": true, "min": true, "max": true, "med": true, "p": true, "count": true},
	MetricReqFailed:         {"rate": true},
	MetricChecks:            {"rate": true},
	MetricIterations:        {"count": true},
	MetricDroppedIterations: {"count": true},
}

// Threshold is one parsed pass/fail criterion, such as
// "http_req_duration{name:/issues}" with "p(90)<1000"
type Threshold struct {
	Key        string
	Metric     string
	TagKey     string // "" when the key has no tag filter
	TagValue   string
	Expression string
	Agg        string  // avg, min, max, med, p, rate, count
	Percentile float64 // for Agg "p"
	Op         string
	Value      float64
}

// ThresholdResult is the verdict of one threshold
type ThresholdResult struct {
	Key        string  `json:"key" yaml:"key"`
	Expression string  `json:"expression" yaml:"expression"`
	Observed   float64 `json:"observed" yaml:"observed"`
	NoData     bool    `json:"noData,omitempty" yaml:"noData,omitempty"`
	Passed     bool    `json:"passed" yaml:"passed"`
}

// MetricSource exposes the aggregated run data thresholds are judged on
type MetricSource interface {
	SampleStats(tagKey, tagValue string) *Stats
	CheckCounts(tagKey, tagValue string) (passed, failed int)
	IterationCounts(scenario string) (started, dropped int)
}

// ParseThresholds parses a profile threshold table. Results are ordered by
// key, then by expression order.
func ParseThresholds(table map[string][]string) ([]Threshold, error) {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Threshold
	for _, key := range keys {
		metric, tagKey, tagValue, err := parseThresholdKey(key)
		if err != nil {
			return nil, err
		}
		for _, expr := range table[key] {
			th, err := parseThresholdExpr(expr)
			if err != nil {
				return nil, fmt.Errorf("threshold %s: %w", key, err)
			}
			if !allowedAggs[metric][th.Agg] {
				return nil, fmt.Errorf("threshold %s: %q is not supported for %s", key, expr, metric)
			}
			th.Key = key
			th.Metric = metric
			th.TagKey = tagKey
			th.TagValue = tagValue
			out = append(out, th)
		}
	}
	return out, nil
}

// parseThresholdKey splits "metric{tag:value}". Values may contain braces,
// as in "http_req_duration{name:/issues/{id}}".
func parseThresholdKey(key string) (metric, tagKey, tagValue string, err error) {
	key = strings.TrimSpace(key)
	open := strings.Index(key, "{")
	if open < 0 {
		metric = key
	} else {
		if !strings.HasSuffix(key, "}") {
			return "", "", "", fmt.Errorf("threshold key %q: unterminated tag filter", key)
		}
		metric = key[:open]
		inner := key[open+1 : len(key)-1]
		k, v, ok := strings.Cut(inner, ":")
		if !ok || strings.TrimSpace(k) == "" {
			return "", "", "", fmt.Errorf("threshold key %q: tag filter must be {key:value}", key)
		}
		tagKey, tagValue = strings.TrimSpace(k), strings.TrimSpace(v)
	}

	if _, ok := allowedAggs[metric]; !ok {
		return "", "", "", fmt.Errorf("threshold key %q: unknown metric %q", key, metric)
	}
	return metric, tagKey, tagValue, nil
}

func parseThresholdExpr(expr string) (Threshold, error) {
	m := exprPattern.FindStringSubmatch(expr)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid expression %q", expr)
	}

	th := Threshold{Expression: strings.TrimSpace(expr), Agg: m[1], Op: m[2]}
	if strings.HasPrefix(th.Agg, "p(") {
		p, err := strconv.ParseFloat(strings.TrimSpace(th.Agg[2:len(th.Agg)-1]), 64)
		if err != nil || p < 0 || p > 100 {
			return Threshold{}, fmt.Errorf("invalid percentile in %q", expr)
		}
		th.Agg = "p"
		th.Percentile = p
	}

	v, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid value in %q: %w", expr, err)
	}
	th.Value = v
	return th, nil
}

// EvaluateThresholds judges every threshold against src. A threshold over a
// metric with no samples passes and is flagged NoData.
func EvaluateThresholds(thresholds []Threshold, src MetricSource) ([]ThresholdResult, bool) {
	results := make([]ThresholdResult, 0, len(thresholds))
	allPassed := true
	for _, th := range thresholds {
		observed, ok := observe(th, src)
		res := ThresholdResult{
			Key:        th.Key,
			Expression: th.Expression,
			Observed:   observed,
			NoData:     !ok,
			Passed:     !ok || compare(observed, th.Op, th.Value),
		}
		if !res.Passed {
			allPassed = false
		}
		results = append(results, res)
	}
	return results, allPassed
}

func observe(th Threshold, src MetricSource) (float64, bool) {
	switch th.Metric {
	case MetricReqDuration:
		stats := src.SampleStats(th.TagKey, th.TagValue)
		if stats == nil || stats.CompletedRequests == 0 {
			return 0, false
		}
		switch th.Agg {
		case "avg":
			return stats.AvgDurationMs(), true
		case "min":
			return float64(stats.Min()), true
		case "max":
			return float64(stats.Max()), true
		case "med":
			return float64(stats.P50()), true
		case "count":
			return float64(stats.CompletedRequests), true
		case "p":
			return float64(stats.Percentile(th.Percentile)), true
		}
	case MetricReqFailed:
		stats := src.SampleStats(th.TagKey, th.TagValue)
		if stats == nil || stats.CompletedRequests == 0 {
			return 0, false
		}
		return stats.ErrorRate(), true
	case MetricChecks:
		passed, failed := src.CheckCounts(th.TagKey, th.TagValue)
		if passed+failed == 0 {
			return 0, false
		}
		return float64(passed) / float64(passed+failed), true
	case MetricIterations, MetricDroppedIterations:
		scenario := ""
		if th.TagKey == "scenario" {
			scenario = th.TagValue
		}
		started, dropped := src.IterationCounts(scenario)
		if th.Metric == MetricIterations {
			return float64(started), true
		}
		return float64(dropped), true
	}
	return 0, false
}

func compare(observed float64, op string, value float64) bool {
	switch op {
	case "<":
		return observed < value
	case "<=":
		return observed <= value
	case ">":
		return observed > value
	case ">=":
		return observed >= value
	case "==":
		return observed == value
	case "!=":
		return observed != value
	}
	return false
}
