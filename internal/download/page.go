// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	rehydrationSelector = "script#__UNIVERSAL_DATA_FOR_REHYDRATION__"
	videoDetailKey      = "webapp.video-detail"
)

// ErrNoPageData means the page did not carry the rehydration script, which
// usually indicates a captcha or an interstitial rather than a missing video.
var ErrNoPageData = errors.New("video page has no rehydration data")

// PageInfo is what the public video page reveals about a video.
type PageInfo struct {
	// Available is false when the page has no video detail, e.g. the video
	// was deleted or the account is gone.
	Available bool
	Private   bool
	PlayAddr  string
}

// Public reports whether the video can be watched without logging in.
func (p PageInfo) Public() bool {
	return p.Available && !p.Private
}

type rehydration struct {
	DefaultScope map[string]json.RawMessage `json:"__DEFAULT_SCOPE__"`
}

type videoDetail struct {
	StatusCode int `json:"statusCode"`
	ItemInfo   struct {
		ItemStruct struct {
			ID          string `json:"id"`
			PrivateItem bool   `json:"privateItem"`
			Video       struct {
				PlayAddr     string `json:"playAddr"`
				DownloadAddr string `json:"downloadAddr"`
			} `json:"video"`
		} `json:"itemStruct"`
	} `json:"itemInfo"`
}

// ParsePage extracts PageInfo from a video page's HTML.
func ParsePage(html []byte) (PageInfo, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return PageInfo{}, fmt.Errorf("parsing video page: %w", err)
	}

	script := strings.TrimSpace(doc.Find(rehydrationSelector).First().Text())
	if script == "" {
		return PageInfo{}, ErrNoPageData
	}

	var data rehydration
	if err := json.Unmarshal([]byte(script), &data); err != nil {
		return PageInfo{}, fmt.Errorf("decoding rehydration data: %w", err)
	}

	raw, ok := data.DefaultScope[videoDetailKey]
	if !ok {
		return PageInfo{}, nil
	}
	var detail videoDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return PageInfo{}, fmt.Errorf("decoding %s: %w", videoDetailKey, err)
	}
	item := detail.ItemInfo.ItemStruct
	if item.ID == "" && detail.StatusCode != 0 {
		return PageInfo{}, nil
	}

	addr := item.Video.PlayAddr
	if addr == "" {
		addr = item.Video.DownloadAddr
	}
	return PageInfo{
		Available: true,
		Private:   item.PrivateItem,
		PlayAddr:  addr,
	}, nil
}
