// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tiktok

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/tiktok-metadata/internal/identifiers"
	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

var window = identifiers.Batch{
	StartDate: time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC),
	EndDate:   time.Date(2023, time.May, 2, 0, 0, 0, 0, time.UTC),
}

func TestTokenIsCached(t *testing.T) {
	f, ts := newFakeAPI(t)
	c := newTestClient(ts)

	for i := 0; i < 3; i++ {
		_, err := c.QueryVideos(context.Background(), NewVideoQuery(Query{}, window.StartDate, window.EndDate))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.stats().tokenCalls)
	assert.Equal(t, []string{"Bearer tok-1", "Bearer tok-1", "Bearer tok-1"}, f.stats().authHeaders)
}

func TestTokenRenewedNearExpiry(t *testing.T) {
	f, ts := newFakeAPI(t)
	f.expiresIn = 30 // inside the renewal slack
	c := newTestClient(ts)

	for i := 0; i < 2; i++ {
		_, err := c.QueryVideos(context.Background(), NewVideoQuery(Query{}, window.StartDate, window.EndDate))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.stats().tokenCalls)
}

func TestTokenErrors(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		f, ts := newFakeAPI(t)
		c := NewClient("", "", WithBaseURL(ts.URL), WithHTTPClient(ts.Client()))

		_, err := c.Token(context.Background())
		assert.ErrorIs(t, err, ErrAuth)
		assert.Equal(t, 0, f.stats().tokenCalls)
	})

	t.Run("invalid client", func(t *testing.T) {
		f, ts := newFakeAPI(t)
		f.tokenStatus = http.StatusBadRequest
		f.tokenBody = `{"error":"invalid_client","error_description":"Client key or secret is incorrect.","log_id":"L42"}`
		c := newTestClient(ts)

		_, err := c.QueryVideos(context.Background(), NewVideoQuery(Query{}, window.StartDate, window.EndDate))
		require.ErrorIs(t, err, ErrAuth)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "invalid_client", apiErr.Code)
		assert.Equal(t, "L42", apiErr.LogID)
		assert.Equal(t, 1, f.stats().tokenCalls)
		assert.Equal(t, 0, f.stats().queryCalls)
	})

	t.Run("unparseable error body is still an auth failure", func(t *testing.T) {
		f, ts := newFakeAPI(t)
		f.tokenStatus = http.StatusTeapot
		f.tokenBody = `nope`
		c := newTestClient(ts)

		_, err := c.Token(context.Background())
		assert.ErrorIs(t, err, ErrAuth)
	})
}

func TestQueryReauthenticatesOnce(t *testing.T) {
	f, ts := newFakeAPI(t)
	f.onQuery = func(n int, _ VideoQuery, w http.ResponseWriter) {
		if n == 1 {
			writeError(w, http.StatusUnauthorized, "access_token_invalid", "The access token is invalid or not found in the request.")
			return
		}
		writeVideos(w, []string{video("7227000000000000001", "alice")}, false, 0, "")
	}
	c := newTestClient(ts)

	page, err := c.QueryVideos(context.Background(), NewVideoQuery(Query{}, window.StartDate, window.EndDate))
	require.NoError(t, err)
	require.Len(t, page.Videos, 1)
	assert.Equal(t, 2, f.stats().tokenCalls)
	assert.Equal(t, []string{"Bearer tok-1", "Bearer tok-2"}, f.stats().authHeaders)
}

func TestQueryErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		code      string
		wantErr   error
		wantCalls int
	}{
		{"persistent auth failure", http.StatusUnauthorized, "access_token_invalid", ErrAuth, 2},
		{"rate limited after retries", http.StatusTooManyRequests, "rate_limit_exceeded", ErrRateLimited, 3},
		{"invalid params", http.StatusBadRequest, "invalid_params", ErrInvalidParams, 1},
		{"internal error", http.StatusInternalServerError, "internal_error", ErrServer, 1},
		{"bare 500", http.StatusInternalServerError, "", ErrServer, 1},
		{"error code with 200", http.StatusOK, "invalid_params", ErrInvalidParams, 1},
		{"scope missing", http.StatusForbidden, "scope_not_authorized", ErrAuth, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ts := newFakeAPI(t)
			f.onQuery = func(_ int, _ VideoQuery, w http.ResponseWriter) {
				writeError(w, tt.status, tt.code, "failed")
			}
			c := newTestClient(ts)

			_, err := c.QueryVideos(context.Background(), NewVideoQuery(Query{}, window.StartDate, window.EndDate))
			require.ErrorIs(t, err, tt.wantErr)
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, "L-err", apiErr.LogID)
			assert.Contains(t, apiErr.Error(), "failed")
			assert.Equal(t, tt.wantCalls, f.stats().queryCalls)
		})
	}
}

func TestQueryMalformedResponse(t *testing.T) {
	f, ts := newFakeAPI(t)
	f.onQuery = func(_ int, _ VideoQuery, w http.ResponseWriter) {
		w.Write([]byte(`{"data":`))
	}
	c := newTestClient(ts)

	_, err := c.QueryVideos(context.Background(), NewVideoQuery(Query{}, window.StartDate, window.EndDate))
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "parsing query response")
}

func TestQueryAllFollowsCursor(t *testing.T) {
	f, ts := newFakeAPI(t)
	f.onQuery = func(n int, q VideoQuery, w http.ResponseWriter) {
		switch n {
		case 1:
			writeVideos(w, []string{video("7227000000000000001", "a")}, true, 100, "search-1")
		case 2:
			writeVideos(w, []string{video("7227000000000000002", "b")}, true, 200, "search-1")
		default:
			writeVideos(w, []string{video("7227000000000000003", "c")}, false, 300, "search-1")
		}
	}
	c := newTestClient(ts)

	var got []types.VideoID
	err := c.QueryAll(context.Background(), NewVideoQuery(KeywordQuery([]string{"cats"}), window.StartDate, window.EndDate), func(p Page) error {
		for _, v := range p.Videos {
			got = append(got, v.ID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []types.VideoID{"7227000000000000001", "7227000000000000002", "7227000000000000003"}, got)

	require.Len(t, f.stats().queries, 3)
	assert.Zero(t, f.stats().queries[0].Cursor)
	assert.Empty(t, f.stats().queries[0].SearchID)
	assert.Equal(t, int64(100), f.stats().queries[1].Cursor)
	assert.Equal(t, "search-1", f.stats().queries[1].SearchID)
	assert.Equal(t, int64(200), f.stats().queries[2].Cursor)
}

func TestQueryAllStopsOnCallbackError(t *testing.T) {
	f, ts := newFakeAPI(t)
	f.onQuery = func(_ int, _ VideoQuery, w http.ResponseWriter) {
		writeVideos(w, nil, true, 100, "s")
	}
	c := newTestClient(ts)

	stop := errors.New("stop")
	err := c.QueryAll(context.Background(), NewVideoQuery(Query{}, window.StartDate, window.EndDate), func(Page) error { return stop })
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, f.stats().queryCalls)
}

func TestLookupIDs(t *testing.T) {
	f, ts := newFakeAPI(t)
	f.onQuery = func(_ int, _ VideoQuery, w http.ResponseWriter) {
		writeVideos(w, []string{
			video("7227000000000000001", "alice"),
			video(`"7227000000000000002"`, "bob"),
			video("7227000000000000001", "alice"), // repeated
			video("7000000000000000009", "stranger"),
		}, false, 0, "")
	}
	c := newTestClient(ts, WithFields([]string{"id", "username", "create_time"}), WithUserAgent("tiktok-metadata-test/0.1"))

	batch := window
	batch.IDs = []types.VideoID{"7227000000000000001", "7227000000000000002", "7227000000000000003"}

	records, err := c.LookupIDs(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, types.VideoID("7227000000000000001"), records[0].ID)
	assert.Equal(t, "alice", records[0].Username)
	assert.Equal(t, types.NumericString("7227000000000000001"), records[0].MusicID)
	assert.Equal(t, []string{"a", "b"}, records[0].HashtagNames)
	assert.Equal(t, types.VideoID("7227000000000000002"), records[1].ID)

	require.Len(t, f.stats().queries, 1)
	q := f.stats().queries[0]
	assert.Equal(t, "20230501", q.StartDate)
	assert.Equal(t, "20230502", q.EndDate)
	assert.Equal(t, identifiers.MaxBatchSize, q.MaxCount)
	require.Len(t, q.Query.And, 1)
	assert.Equal(t, "IN", q.Query.And[0].Operation)
	assert.Equal(t, "video_id", q.Query.And[0].FieldName)
	assert.Equal(t, []string{"7227000000000000001", "7227000000000000002", "7227000000000000003"}, q.Query.And[0].FieldValues)
	assert.Equal(t, []string{"id,username,create_time"}, f.stats().fields)
}

func TestLookupIDsEmptyBatch(t *testing.T) {
	f, ts := newFakeAPI(t)
	c := newTestClient(ts)

	records, err := c.LookupIDs(context.Background(), identifiers.Batch{})
	require.NoError(t, err)
	assert.Nil(t, records)
	assert.Equal(t, 0, f.stats().tokenCalls)
}

func TestKeywordQuery(t *testing.T) {
	q := KeywordQuery([]string{"cats", "#dogs"})
	require.Len(t, q.Or, 2)
	assert.Equal(t, "keyword", q.Or[0].FieldName)
	assert.Equal(t, []string{"cats", "#dogs"}, q.Or[0].FieldValues)
	assert.Equal(t, "hashtag_name", q.Or[1].FieldName)
	assert.Equal(t, []string{"cats", "dogs"}, q.Or[1].FieldValues)
}

func TestAPIErrorUnwrap(t *testing.T) {
	tests := []struct {
		err  *APIError
		want error
	}{
		{&APIError{Status: 200, Code: "rate_limit_exceeded"}, ErrRateLimited},
		{&APIError{Status: 429}, ErrRateLimited},
		{&APIError{Status: 401}, ErrAuth},
		{&APIError{Status: 400, Code: "invalid_request"}, ErrInvalidParams},
		{&APIError{Status: 503}, ErrServer},
		{&APIError{Status: 404}, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Unwrap(), tt.err.Error())
	}
}
