package protocol

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"testing/iotest"

	"github.com/servinel/daemon/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceSelectorRoundTrip(t *testing.T) {
	cases := []ServiceSelector{
		{All: true},
		{Service: "web"},
		{Services: []string{"web", "worker"}},
		{Profile: "dev"},
	}
	for _, sel := range cases {
		data, err := sel.MarshalJSON()
		require.NoError(t, err)

		var out ServiceSelector
		require.NoError(t, out.UnmarshalJSON(data))
		assert.Equal(t, sel, out)
	}
}

func TestServiceSelectorToState(t *testing.T) {
	assert.Equal(t, state.Selector{Kind: state.SelectAll}, ServiceSelector{All: true}.ToState())
	assert.Equal(t, state.Selector{Kind: state.SelectService, Name: "web"}, ServiceSelector{Service: "web"}.ToState())
	assert.Equal(t, state.Selector{Kind: state.SelectProfile, Name: "dev"}, ServiceSelector{Profile: "dev"}.ToState())
}

func TestRequestRoundTrip(t *testing.T) {
	cases := []Request{
		{Up: &UpRequest{ComposePath: "servinel-compose.yaml"}},
		{Start: &StartRequest{File: "servinel-compose.yaml", App: "myapp", Selector: ServiceSelector{Service: "web"}}},
		{Stop: &SelectorRequest{App: "myapp", Selector: ServiceSelector{All: true}}},
		{Status: &StatusRequest{App: "myapp"}},
		{Logs: &LogsRequest{App: "myapp", Selector: ServiceSelector{Service: "web"}, Follow: true}},
		{DashAttach: true},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, req := range cases {
		require.NoError(t, w.WriteRequest(req))
	}

	r := NewReader(&buf)
	for _, want := range cases {
		got, err := r.ReadRequest()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := r.ReadRequest()
	assert.ErrorIs(t, err, io.EOF)
}

func TestResponseRoundTrip(t *testing.T) {
	// Error.Kind is internal-only (the wire carries a bare message
	// string), so the round-tripped value is compared with Kind zeroed
	// rather than against the exact value passed to Err().
	cases := []Response{
		OK(),
		{Status: &StatusSnapshot{SystemCPU: 12.5}},
		{Profiles: &ProfilesResponse{Profiles: []string{"dev", "prod"}}},
		{LogChunk: &LogChunk{App: "myapp", Service: "web", Entry: LogEntryWire{Line: "hi"}}},
		{Error: &ErrorResponse{Message: `service "web" not found`}},
		{Shutdown: true},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, resp := range cases {
		require.NoError(t, w.WriteResponse(resp))
	}

	r := NewReader(&buf)
	for _, want := range cases {
		got, err := r.ReadResponse()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDashAttachWireShapeIsBareString(t *testing.T) {
	data, err := json.Marshal(Request{DashAttach: true})
	require.NoError(t, err)
	assert.Equal(t, `"DashAttach"`, string(data))

	var req Request
	require.NoError(t, json.Unmarshal([]byte(`"DashAttach"`), &req))
	assert.True(t, req.DashAttach)
}

func TestEmptyProfilesListRoundTrips(t *testing.T) {
	resp := Response{Profiles: &ProfilesResponse{Profiles: []string{}}}
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"ProfilesList":[]}`, string(data))

	var got Response
	require.NoError(t, json.Unmarshal(data, &got))
	require.NotNil(t, got.Profiles)
	assert.Empty(t, got.Profiles.Profiles)
}

func TestFramingSurvivesFragmentedReads(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteRequest(Request{Status: &StatusRequest{App: "web"}}))
	require.NoError(t, w.WriteRequest(Request{DashAttach: true}))

	// One byte at a time: frame boundaries must still hold.
	r := NewReader(iotest.OneByteReader(&buf))
	first, err := r.ReadRequest()
	require.NoError(t, err)
	require.NotNil(t, first.Status)
	assert.Equal(t, "web", first.Status.App)

	second, err := r.ReadRequest()
	require.NoError(t, err)
	assert.True(t, second.DashAttach)
}

func TestErrHelperFormatsMessage(t *testing.T) {
	resp := Err(ErrKindInput, "bad selector: %s", "oops")
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrKindInput, resp.Error.Kind)
	assert.Equal(t, "bad selector: oops", resp.Error.Message)
}

func TestErrWireDropsKind(t *testing.T) {
	resp := Err(ErrKindNotFound, "service %q not found", "web")

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteResponse(resp))

	got, err := NewReader(&buf).ReadResponse()
	require.NoError(t, err)
	require.NotNil(t, got.Error)
	assert.Equal(t, ErrorKind(""), got.Error.Kind)
	assert.Equal(t, `service "web" not found`, got.Error.Message)
}
