// Package protocol defines the servinel wire format: one JSON object per
// line, newline-terminated, UTF-8, exchanged over a UNIX-domain socket.
// Request envelopes are `{"Variant": {...}}` (or a bare string for
// no-field variants); response envelopes follow the same shape.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/servinel/daemon/internal/logbuf"
	"github.com/servinel/daemon/internal/state"
)

// ServiceSelector mirrors state.Selector on the wire: "All" |
// {"Service": name} | {"Services": [name,...]} | {"Profile": name}.
type ServiceSelector struct {
	All      bool
	Service  string
	Services []string
	Profile  string
}

// ToState converts the wire selector into the internal selector type.
func (s ServiceSelector) ToState() state.Selector {
	switch {
	case s.Service != "":
		return state.Selector{Kind: state.SelectService, Name: s.Service}
	case len(s.Services) > 0:
		return state.Selector{Kind: state.SelectServices, Names: s.Services}
	case s.Profile != "":
		return state.Selector{Kind: state.SelectProfile, Name: s.Profile}
	default:
		return state.Selector{Kind: state.SelectAll}
	}
}

// MarshalJSON renders the selector in its tagged-variant wire shape.
func (s ServiceSelector) MarshalJSON() ([]byte, error) {
	switch {
	case s.Service != "":
		return json.Marshal(map[string]string{"Service": s.Service})
	case len(s.Services) > 0:
		return json.Marshal(map[string][]string{"Services": s.Services})
	case s.Profile != "":
		return json.Marshal(map[string]string{"Profile": s.Profile})
	default:
		return json.Marshal("All")
	}
}

// UnmarshalJSON parses either the bare "All" string or a single-key object.
func (s *ServiceSelector) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		if bare != "All" {
			return fmt.Errorf("unknown selector %q", bare)
		}
		*s = ServiceSelector{All: true}
		return nil
	}

	var obj struct {
		Service  *string  `json:"Service"`
		Services []string `json:"Services"`
		Profile  *string  `json:"Profile"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("parsing selector: %w", err)
	}
	switch {
	case obj.Service != nil:
		*s = ServiceSelector{Service: *obj.Service}
	case obj.Services != nil:
		*s = ServiceSelector{Services: obj.Services}
	case obj.Profile != nil:
		*s = ServiceSelector{Profile: *obj.Profile}
	default:
		return fmt.Errorf("empty selector")
	}
	return nil
}

// LogEntryWire is the wire shape of a LogEntry.
type LogEntryWire struct {
	Timestamp int64  `json:"timestamp"`
	Stream    string `json:"stream"`
	Line      string `json:"line"`
}

// FromLogEntry converts an internal log entry to its wire shape.
func FromLogEntry(e logbuf.LogEntry) LogEntryWire {
	return LogEntryWire{Timestamp: e.Timestamp, Stream: e.Stream.String(), Line: e.Line}
}

// ServiceSnapshot is one service's status as reported over the wire.
type ServiceSnapshot struct {
	Name       string               `json:"name"`
	Status     string               `json:"status"`
	PID        *uint32              `json:"pid,omitempty"`
	UptimeSecs *int64               `json:"uptime_secs,omitempty"`
	ExitCode   *int32               `json:"exit_code,omitempty"`
	Metrics    state.ServiceMetrics `json:"metrics"`
}

// AppSnapshot is one app's services as reported over the wire.
type AppSnapshot struct {
	AppName  string            `json:"app_name"`
	Services []ServiceSnapshot `json:"services"`
}

// StatusSnapshot is the full daemon status response.
type StatusSnapshot struct {
	Apps              []AppSnapshot `json:"apps"`
	SystemCPU         float32       `json:"system_cpu"`
	SystemMemoryUsed  uint64        `json:"system_memory_used"`
	SystemMemoryTotal uint64        `json:"system_memory_total"`
}

// LogChunk carries one log entry, attributed to its app/service, for
// history replay and live follow streams.
type LogChunk struct {
	App     string       `json:"app"`
	Service string       `json:"service"`
	Entry   LogEntryWire `json:"entry"`
}
