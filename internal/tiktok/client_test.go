// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tiktok

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdiddy/tiktok-metadata/internal/httputil"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

// fakeAPI serves the token and video query endpoints. Query handling is
// delegated to onQuery; the token endpoint issues tokens tok-1, tok-2, ...
type fakeAPI struct {
	mu          sync.Mutex
	tokenCalls  int
	queryCalls  int
	queries     []VideoQuery
	authHeaders []string
	fields      []string
	tokenStatus int
	tokenBody   string
	expiresIn   int64

	onQuery func(n int, q VideoQuery, w http.ResponseWriter)
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{expiresIn: 7200}
	ts := httptest.NewServer(f)
	t.Cleanup(ts.Close)
	return f, ts
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case tokenPath:
		f.tokenCalls++
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			fmt.Fprint(w, f.tokenBody)
			return
		}
		if r.PostForm.Get("grant_type") != "client_credentials" || r.PostForm.Get("client_key") != "key" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_request","error_description":"bad form","log_id":"L0"}`)
			return
		}
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":%d,"token_type":"Bearer"}`, f.tokenCalls, f.expiresIn)

	case videoQueryPath:
		f.queryCalls++
		f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
		f.fields = append(f.fields, r.URL.Query().Get("fields"))
		data, _ := io.ReadAll(r.Body)
		var q VideoQuery
		if err := json.Unmarshal(data, &q); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.queries = append(f.queries, q)
		if f.onQuery == nil {
			writeVideos(w, nil, false, 0, "")
			return
		}
		f.onQuery(f.queryCalls, q, w)

	default:
		http.NotFound(w, r)
	}
}

// writeVideos writes a successful query response. Each video is given as raw
// JSON so tests can exercise the exact wire form of ids.
func writeVideos(w http.ResponseWriter, videos []string, hasMore bool, cursor int64, searchID string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"data":{"videos":[%s],"cursor":%d,"has_more":%t,"search_id":%q},"error":{"code":"ok","message":"","log_id":"L1"}}`,
		strings.Join(videos, ","), cursor, hasMore, searchID)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"data":{},"error":{"code":%q,"message":%q,"log_id":"L-err"}}`, code, message)
}

func video(id string, username string) string {
	return fmt.Sprintf(`{"id":%s,"username":%q,"create_time":1682942400,"view_count":10,"like_count":2,"hashtag_names":["a","b"],"music_id":7227000000000000001}`, id, username)
}

func newTestClient(ts *httptest.Server, opts ...Option) *Client {
	base := []Option{WithBaseURL(ts.URL), WithHTTPClient(ts.Client()), WithMaxRetries(2)}
	return NewClient("key", "secret", append(base, opts...)...)
}

type fakeStats struct {
	tokenCalls  int
	queryCalls  int
	queries     []VideoQuery
	authHeaders []string
	fields      []string
}

func (f *fakeAPI) stats() fakeStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeStats{
		tokenCalls:  f.tokenCalls,
		queryCalls:  f.queryCalls,
		queries:     append([]VideoQuery(nil), f.queries...),
		authHeaders: append([]string(nil), f.authHeaders...),
		fields:      append([]string(nil), f.fields...),
	}
}
