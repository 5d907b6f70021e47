package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chazu/intcode/wire"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
// ---------------------------------------------------------------------------

// echoProgram reads one value and writes it back.
const echoProgram = "3,0,4,0,99"

// newTestServer starts a MachineServer behind httptest. Both are shut down
// when the test ends.
func newTestServer(t *testing.T, opts ...ServerOption) (*MachineServer, *httptest.Server) {
	t.Helper()
	s := New(opts...)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return s, ts
}

// call sends req encoded with codec and decodes the response into resp,
// returning the status code.
func call(t *testing.T, codec wire.Codec, method, url string, req, resp any) int {
	t.Helper()

	var body bytes.Buffer
	if req != nil {
		data, err := codec.Marshal(req)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		body.Write(data)
	}

	httpReq, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	httpReq.Header.Set("Content-Type", codec.ContentType())

	httpResp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer httpResp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(httpResp.Body); err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp != nil && buf.Len() > 0 {
		if got := httpResp.Header.Get("Content-Type"); got != codec.ContentType() {
			t.Errorf("response Content-Type = %q, want %q", got, codec.ContentType())
		}
		if err := codec.Unmarshal(buf.Bytes(), resp); err != nil {
			t.Fatalf("unmarshal response: %v (body %q)", err, buf.String())
		}
	}
	return httpResp.StatusCode
}

// createMachine creates a session for program and returns its ID.
func createMachine(t *testing.T, ts *httptest.Server, program string) string {
	t.Helper()
	var info wire.MachineInfo
	status := call(t, wire.JSON, http.MethodPost, ts.URL+"/machines",
		&wire.CreateMachineRequest{Program: program}, &info)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", status, http.StatusCreated)
	}
	if info.ID == "" {
		t.Fatal("create returned empty ID")
	}
	return info.ID
}
