package inventory_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	. "github.com/onsi/ginkgo/v2"

	"github.com/erazemk/idear/internal/client"
)

// staticToken is a TokenSource with a fixed credential.
type staticToken string

func (s staticToken) Token() (string, bool) { return string(s), s != "" }

// recordingServer answers every request with reply and remembers what it
// received.
type recordingServer struct {
	*httptest.Server

	mu       sync.Mutex
	paths    []string
	queries  []url.Values
	bodies   []map[string]any
	status   int
	response any
}

func newRecordingServer(response any) *recordingServer {
	rs := &recordingServer{status: http.StatusOK, response: response}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&body)
		}

		rs.mu.Lock()
		rs.paths = append(rs.paths, r.URL.Path)
		rs.queries = append(rs.queries, r.URL.Query())
		rs.bodies = append(rs.bodies, body)
		status, response := rs.status, rs.response
		rs.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(response)
	}))
	DeferCleanup(rs.Close)
	return rs
}

func (rs *recordingServer) reply(status int, response any) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.status, rs.response = status, response
}

func (rs *recordingServer) lastPath() string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.paths) == 0 {
		return ""
	}
	return rs.paths[len(rs.paths)-1]
}

func (rs *recordingServer) lastQuery() url.Values {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.queries) == 0 {
		return nil
	}
	return rs.queries[len(rs.queries)-1]
}

func (rs *recordingServer) lastBody() map[string]any {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.bodies) == 0 {
		return nil
	}
	return rs.bodies[len(rs.bodies)-1]
}

func (rs *recordingServer) requests() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.paths)
}

func newClient(baseURL string, tokens client.TokenSource) *client.Client {
	return client.New(client.Config{BaseURL: baseURL}, tokens, nil)
}

var bg = context.Background()
