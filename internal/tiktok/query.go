// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pdiddy/tiktok-metadata/internal/httputil"
	"github.com/pdiddy/tiktok-metadata/internal/identifiers"
	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

// DateLayout is the YYYYMMDD format the query endpoint expects.
const DateLayout = "20060102"

// Condition is one clause of a query boolean group.
type Condition struct {
	Operation   string   `json:"operation"`
	FieldName   string   `json:"field_name"`
	FieldValues []string `json:"field_values"`
}

// Query combines conditions with and/or/not groups.
type Query struct {
	And []Condition `json:"and,omitempty"`
	Or  []Condition `json:"or,omitempty"`
	Not []Condition `json:"not,omitempty"`
}

// VideoQuery is the request body of the video query endpoint.
type VideoQuery struct {
	Query     Query  `json:"query"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	MaxCount  int    `json:"max_count,omitempty"`
	Cursor    int64  `json:"cursor,omitempty"`
	SearchID  string `json:"search_id,omitempty"`
}

// Page is one page of query results.
type Page struct {
	Videos   []types.MetadataRecord `json:"videos"`
	Cursor   int64                  `json:"cursor"`
	HasMore  bool                   `json:"has_more"`
	SearchID string                 `json:"search_id"`
}

type queryResponse struct {
	Data  Page     `json:"data"`
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

// NewVideoQuery builds a query for the window [start, end] (both days).
func NewVideoQuery(q Query, start, end time.Time) VideoQuery {
	return VideoQuery{
		Query:     q,
		StartDate: start.UTC().Format(DateLayout),
		EndDate:   end.UTC().Format(DateLayout),
		MaxCount:  identifiers.MaxBatchSize,
	}
}

// QueryVideos fetches a single page. An authentication failure drops the
// cached token and retries the request once with a fresh one.
func (c *Client) QueryVideos(ctx context.Context, q VideoQuery) (Page, error) {
	page, err := c.queryOnce(ctx, q)
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Code == "access_token_invalid" || apiErr.Status == http.StatusUnauthorized) {
		log.WithField("log_id", apiErr.LogID).Info("access token rejected, re-authenticating")
		c.invalidate()
		page, err = c.queryOnce(ctx, q)
	}
	return page, err
}

func (c *Client) queryOnce(ctx context.Context, q VideoQuery) (Page, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return Page{}, err
	}
	tok, err := c.Token(ctx)
	if err != nil {
		return Page{}, err
	}

	body, err := json.Marshal(q)
	if err != nil {
		return Page{}, fmt.Errorf("encoding query: %w", err)
	}

	reqURL := c.baseURL + videoQueryPath + "?" + url.Values{"fields": {strings.Join(c.fields, ",")}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("creating query request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	c.setUserAgent(req)

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return Page{}, fmt.Errorf("video query request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, fmt.Errorf("reading query response: %w", err)
	}

	var qr queryResponse
	decodeErr := json.Unmarshal(data, &qr)

	if resp.StatusCode != http.StatusOK || (qr.Error.Code != "" && qr.Error.Code != "ok") {
		return Page{}, &APIError{
			Status:  resp.StatusCode,
			Code:    qr.Error.Code,
			Message: qr.Error.Message,
			LogID:   qr.Error.LogID,
		}
	}
	if decodeErr != nil {
		return Page{}, fmt.Errorf("parsing query response: %w", decodeErr)
	}
	return qr.Data, nil
}

// QueryAll follows the cursor until the result set is exhausted, calling fn
// for every page in order. An error from fn stops the iteration.
func (c *Client) QueryAll(ctx context.Context, q VideoQuery, fn func(Page) error) error {
	for {
		page, err := c.QueryVideos(ctx, q)
		if err != nil {
			return err
		}
		if err := fn(page); err != nil {
			return err
		}
		if !page.HasMore {
			return nil
		}
		q.Cursor = page.Cursor
		q.SearchID = page.SearchID
	}
}

// LookupIDs resolves a batch of ids. The result holds at most one record per
// requested id; ids the API did not return are absent.
func (c *Client) LookupIDs(ctx context.Context, b identifiers.Batch) ([]types.MetadataRecord, error) {
	if len(b.IDs) == 0 {
		return nil, nil
	}

	wanted := make(map[types.VideoID]bool, len(b.IDs))
	values := make([]string, len(b.IDs))
	for i, id := range b.IDs {
		wanted[id] = false
		values[i] = id.String()
	}

	q := NewVideoQuery(Query{And: []Condition{{
		Operation:   "IN",
		FieldName:   "video_id",
		FieldValues: values,
	}}}, b.StartDate, b.EndDate)

	var records []types.MetadataRecord
	err := c.QueryAll(ctx, q, func(p Page) error {
		for _, v := range p.Videos {
			seen, ok := wanted[v.ID]
			if !ok || seen {
				continue
			}
			wanted[v.ID] = true
			records = append(records, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// KeywordQuery matches videos whose description contains any keyword or that
// carry any of the keywords as a hashtag.
func KeywordQuery(keywords []string) Query {
	hashtags := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		hashtags = append(hashtags, strings.TrimPrefix(kw, "#"))
	}
	return Query{Or: []Condition{
		{Operation: "IN", FieldName: "keyword", FieldValues: keywords},
		{Operation: "IN", FieldName: "hashtag_name", FieldValues: hashtags},
	}}
}
