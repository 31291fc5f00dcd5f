// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// VideoID is the decimal form of a TikTok video identifier. The API returns
// ids as JSON numbers larger than 2^53, so VideoID decodes them from the raw
// token instead of going through float64.
type VideoID string

// String returns the decimal id.
func (id VideoID) String() string { return string(id) }

// Uint64 returns the numeric value of the id.
func (id VideoID) Uint64() (uint64, error) {
	return strconv.ParseUint(string(id), 10, 64)
}

// UnmarshalJSON accepts a JSON number or a JSON string.
func (id *VideoID) UnmarshalJSON(data []byte) error {
	s, err := decodeNumericToken(data)
	if err != nil {
		return fmt.Errorf("video id: %w", err)
	}
	*id = VideoID(s)
	return nil
}

// NumericString holds an id-like field (music_id, playlist_id) that the API
// may send as a number or a string.
type NumericString string

// UnmarshalJSON accepts a JSON number or a JSON string.
func (n *NumericString) UnmarshalJSON(data []byte) error {
	s, err := decodeNumericToken(data)
	if err != nil {
		return err
	}
	*n = NumericString(s)
	return nil
}

func decodeNumericToken(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return "", err
	}
	return num.String(), nil
}

// MetadataRecord is one video as returned by the Research API video query.
// Field names and JSON tags follow the vendor schema.
type MetadataRecord struct {
	ID               VideoID         `json:"id" yaml:"id"`
	Username         string          `json:"username" yaml:"username"`
	VideoDescription string          `json:"video_description" yaml:"video_description"`
	CreateTime       int64           `json:"create_time" yaml:"create_time"`
	RegionCode       string          `json:"region_code" yaml:"region_code"`
	ViewCount        int64           `json:"view_count" yaml:"view_count"`
	LikeCount        int64           `json:"like_count" yaml:"like_count"`
	CommentCount     int64           `json:"comment_count" yaml:"comment_count"`
	ShareCount       int64           `json:"share_count" yaml:"share_count"`
	FavoritesCount   int64           `json:"favorites_count" yaml:"favorites_count"`
	MusicID          NumericString   `json:"music_id" yaml:"music_id"`
	HashtagNames     []string        `json:"hashtag_names" yaml:"hashtag_names"`
	EffectIDs        []NumericString `json:"effect_ids" yaml:"effect_ids"`
	PlaylistID       NumericString   `json:"playlist_id" yaml:"playlist_id"`
	VoiceToText      string          `json:"voice_to_text" yaml:"voice_to_text"`
	VideoDuration    int64           `json:"video_duration" yaml:"video_duration"`
}

// Created returns create_time as a UTC timestamp.
func (r MetadataRecord) Created() time.Time {
	return time.Unix(r.CreateTime, 0).UTC()
}

// URL returns the public web URL of the video.
func (r MetadataRecord) URL() string {
	return VideoURL(r.Username, r.ID)
}

// VideoURL builds https://www.tiktok.com/@<username>/video/<id>.
func VideoURL(username string, id VideoID) string {
	return fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", username, id)
}
