package mock

import "time"

// Config represents the tracker double configuration
type Config struct {
	Port         int     `json:"port" yaml:"port"`                 // Server port (default: 8080)
	Host         string  `json:"host" yaml:"host"`                 // Server host (default: localhost)
	Logging      bool    `json:"logging" yaml:"logging"`           // Keep a log of served requests
	Delay        int     `json:"delay" yaml:"delay"`               // Base response delay in milliseconds
	FailRate     float64 `json:"failRate" yaml:"failRate"`         // Fraction of calls answered with 503
	ProjectShort string  `json:"projectShort" yaml:"projectShort"` // Prefix of readable issue ids (default: DEMO)
	SeedIssues   int     `json:"seedIssues" yaml:"seedIssues"`     // Issues created at startup
}

// RequestLog represents a logged request
type RequestLog struct {
	Timestamp time.Time     `json:"timestamp"`
	Method    string        `json:"method"`
	Path      string        `json:"path"`
	Route     string        `json:"route"`
	Status    int           `json:"status"`
	Duration  time.Duration `json:"duration"`
}

// Issue is a stored issue
type Issue struct {
	ID          string   `json:"id"`
	IDReadable  string   `json:"idReadable"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	ProjectID   string   `json:"projectId"`
	State       string   `json:"state"`
	Assignee    string   `json:"assignee,omitempty"`
	Comments    []string `json:"comments,omitempty"`
}

// User is a stored account
type User struct {
	ID     string   `json:"id"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Tokens []string `json:"tokens,omitempty"`
}
