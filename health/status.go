package health

import (
	"regexp"
	"strings"
	"time"
)

// State is the coarse health of a node or a whole run.
type State string

const (
	Healthy   State = "healthy"
	Degraded  State = "degraded"
	Unhealthy State = "unhealthy"
)

var (
	urlRegex        = regexp.MustCompile(`(?:https?|nats|wss?|tls)://[^\s]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status is the health of one node, or of a run with one sub-status per node.
type Status struct {
	Name        string    `json:"name"`
	State       State     `json:"state"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Chunks      int64     `json:"chunks,omitempty"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// IsHealthy returns true if the state is healthy
func (s Status) IsHealthy() bool { return s.State == Healthy }

// IsDegraded returns true if the state is degraded
func (s Status) IsDegraded() bool { return s.State == Degraded }

// IsUnhealthy returns true if the state is unhealthy
func (s Status) IsUnhealthy() bool { return s.State == Unhealthy }

// Aggregate combines sub-statuses: unhealthy if any is unhealthy, degraded
// if any is degraded, healthy otherwise (including when there are none).
func Aggregate(name string, subs []Status) Status {
	state := Healthy
	msg := "all nodes healthy"
	for _, s := range subs {
		switch {
		case s.IsUnhealthy():
			state, msg = Unhealthy, "one or more nodes failed"
		case s.IsDegraded() && state == Healthy:
			state, msg = Degraded, "one or more nodes degraded"
		}
	}
	if len(subs) == 0 {
		msg = "no nodes reported"
	}
	out := Status{Name: name, State: state, Message: msg, Timestamp: time.Now()}
	if len(subs) > 0 {
		out.SubStatuses = append([]Status(nil), subs...)
	}
	return out
}

// Sanitize strips broker URLs, IP addresses and credentials from an error
// message before it is exposed on the health endpoint.
func Sanitize(msg string) string {
	if msg == "" {
		return ""
	}
	msg = urlRegex.ReplaceAllString(msg, "[URL]")
	msg = ipAddrRegex.ReplaceAllString(msg, "[IP]")
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "password") || strings.Contains(lower, "token") ||
		strings.Contains(lower, "secret") || strings.Contains(lower, "credential") {
		msg = credentialRegex.ReplaceAllString(msg, "[REDACTED]")
	}
	return msg
}
