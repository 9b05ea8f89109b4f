package protocol

import (
	"encoding/json"
	"fmt"
)

// Request is one client->daemon message. Exactly one field is set,
// mirroring the tagged-union wire shape `{"Variant": {...}}`; the one
// variant with no fields (DashAttach, the liveness probe) is the bare
// string `"DashAttach"`.
type Request struct {
	Up         *UpRequest
	Start      *StartRequest
	Stop       *SelectorRequest
	Restart    *SelectorRequest
	Status     *StatusRequest
	Profiles   *ProfilesRequest
	Logs       *LogsRequest
	Down       *DownRequest
	DashAttach bool
}

// UpRequest starts (or attaches to) an app from a manifest.
type UpRequest struct {
	ComposePath string `json:"compose_path"`
	Profile     string `json:"profile,omitempty"`
}

// StartRequest optionally loads and registers a manifest first, then
// starts the selected services of the target app. The selection applies
// either way: a file load narrows to the same selector, it does not
// replace it.
type StartRequest struct {
	File     string          `json:"file,omitempty"`
	App      string          `json:"app,omitempty"`
	Selector ServiceSelector `json:"selector"`
}

// SelectorRequest names an optional target app (falling back to the only
// running app) and the services within it to act on. It is the shared
// shape of Stop/Restart.
type SelectorRequest struct {
	App      string          `json:"app,omitempty"`
	Selector ServiceSelector `json:"selector"`
}

// StatusRequest asks for a status snapshot, optionally scoped to one app.
// When App is empty, Selector must be All: a service selector without an
// app to resolve it against is ambiguous.
type StatusRequest struct {
	App      string          `json:"app,omitempty"`
	Selector ServiceSelector `json:"selector"`
}

// ProfilesRequest asks for the declared profile names of an app.
type ProfilesRequest struct {
	App string `json:"app,omitempty"`
}

// LogsRequest asks for buffered history and/or a live follow stream.
// Merged selects how history from more than one selected service is
// ordered: true interleaves every selected service's entries by
// timestamp; false (the less common case) emits each service's history
// as one contiguous, chronologically-ordered block, in selector order.
type LogsRequest struct {
	App      string          `json:"app,omitempty"`
	Selector ServiceSelector `json:"selector"`
	Tail     *int            `json:"tail,omitempty"`
	Follow   bool            `json:"follow"`
	Merged   bool            `json:"merged"`
}

// DownRequest stops and forgets one or more apps.
type DownRequest struct {
	App string `json:"app,omitempty"`
}

type requestWire struct {
	Up       *UpRequest       `json:"Up,omitempty"`
	Start    *StartRequest    `json:"Start,omitempty"`
	Stop     *SelectorRequest `json:"Stop,omitempty"`
	Restart  *SelectorRequest `json:"Restart,omitempty"`
	Status   *StatusRequest   `json:"Status,omitempty"`
	Profiles *ProfilesRequest `json:"Profiles,omitempty"`
	Logs     *LogsRequest     `json:"Logs,omitempty"`
	Down     *DownRequest     `json:"Down,omitempty"`
}

// MarshalJSON renders whichever variant is set. DashAttach, having no
// fields, goes on the wire as the bare string "DashAttach".
func (r Request) MarshalJSON() ([]byte, error) {
	if r.DashAttach {
		return json.Marshal("DashAttach")
	}
	var w requestWire
	switch {
	case r.Up != nil:
		w.Up = r.Up
	case r.Start != nil:
		w.Start = r.Start
	case r.Stop != nil:
		w.Stop = r.Stop
	case r.Restart != nil:
		w.Restart = r.Restart
	case r.Status != nil:
		w.Status = r.Status
	case r.Profiles != nil:
		w.Profiles = r.Profiles
	case r.Logs != nil:
		w.Logs = r.Logs
	case r.Down != nil:
		w.Down = r.Down
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses either the bare "DashAttach" string or a
// single-key request object.
func (r *Request) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		if bare != "DashAttach" {
			return fmt.Errorf("unknown request %q", bare)
		}
		*r = Request{DashAttach: true}
		return nil
	}

	var w requestWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Request{
		Up:       w.Up,
		Start:    w.Start,
		Stop:     w.Stop,
		Restart:  w.Restart,
		Status:   w.Status,
		Profiles: w.Profiles,
		Logs:     w.Logs,
		Down:     w.Down,
	}
	return nil
}

// Response is one daemon->client message: the bare string "Ack",
// {"StatusSnapshot":{...}}, {"ProfilesList":[...]}, {"LogChunk":{...}},
// {"Error":"<message>"}, or the bare string "DaemonShutdown".
type Response struct {
	Ok       bool
	Status   *StatusSnapshot
	Profiles *ProfilesResponse
	LogChunk *LogChunk
	Error    *ErrorResponse
	Shutdown bool
}

// ProfilesResponse lists the declared profile names of an app. It has no
// wire shape of its own: on the wire it is the bare "ProfilesList" array.
type ProfilesResponse struct {
	Profiles []string
}

// ErrorKind classifies errors for the daemon's own logging and branching.
// It is internal only: the wire carries a bare message string, so Kind
// does not round-trip through a client.
type ErrorKind string

const (
	ErrKindInput             ErrorKind = "Input"
	ErrKindNotFound          ErrorKind = "NotFound"
	ErrKindDaemonUnreachable ErrorKind = "DaemonUnreachable"
	ErrKindTransport         ErrorKind = "Transport"
	ErrKindChildIO           ErrorKind = "ChildIO"
	ErrKindPersistence       ErrorKind = "Persistence"
)

// ErrorResponse carries a taxonomy kind plus a human-readable message.
// Only Message crosses the wire.
type ErrorResponse struct {
	Kind    ErrorKind
	Message string
}

// ProfilesList is a pointer so an app with zero declared profiles still
// marshals as {"ProfilesList":[]} rather than collapsing to {}.
type responseObjWire struct {
	StatusSnapshot *StatusSnapshot `json:"StatusSnapshot,omitempty"`
	ProfilesList   *[]string       `json:"ProfilesList,omitempty"`
	LogChunk       *LogChunk       `json:"LogChunk,omitempty"`
	Error          *string         `json:"Error,omitempty"`
}

// MarshalJSON renders whichever variant is set.
func (r Response) MarshalJSON() ([]byte, error) {
	switch {
	case r.Status != nil:
		return json.Marshal(responseObjWire{StatusSnapshot: r.Status})
	case r.Profiles != nil:
		names := r.Profiles.Profiles
		if names == nil {
			names = []string{}
		}
		return json.Marshal(responseObjWire{ProfilesList: &names})
	case r.LogChunk != nil:
		return json.Marshal(responseObjWire{LogChunk: r.LogChunk})
	case r.Error != nil:
		return json.Marshal(responseObjWire{Error: &r.Error.Message})
	case r.Shutdown:
		return json.Marshal("DaemonShutdown")
	default:
		return json.Marshal("Ack")
	}
}

// UnmarshalJSON parses either the bare "Ack"/"DaemonShutdown" string or a
// single-key response object.
func (r *Response) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		switch bare {
		case "Ack":
			*r = Response{Ok: true}
		case "DaemonShutdown":
			*r = Response{Shutdown: true}
		default:
			return fmt.Errorf("unknown response %q", bare)
		}
		return nil
	}

	var w responseObjWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	switch {
	case w.StatusSnapshot != nil:
		*r = Response{Status: w.StatusSnapshot}
	case w.ProfilesList != nil:
		*r = Response{Profiles: &ProfilesResponse{Profiles: *w.ProfilesList}}
	case w.LogChunk != nil:
		*r = Response{LogChunk: w.LogChunk}
	case w.Error != nil:
		*r = Response{Error: &ErrorResponse{Message: *w.Error}}
	default:
		return fmt.Errorf("empty response")
	}
	return nil
}

// OK builds a bare success acknowledgement ("Ack" on the wire).
func OK() Response { return Response{Ok: true} }

// Err builds an error response of the given kind. Kind is an internal
// classification the server can log or branch on; only Message is sent.
func Err(kind ErrorKind, format string, args ...any) Response {
	return Response{Error: &ErrorResponse{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}
