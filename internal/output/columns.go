// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package output

import (
	"encoding/json"
	"strconv"

	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

// IDColumn is the column every output file is keyed on.
const IDColumn = "id"

// Columns is the canonical CSV header: the vendor fields followed by the
// derived URL and UTC breakdown of create_time.
var Columns = []string{
	IDColumn,
	"username",
	"video_description",
	"create_time",
	"region_code",
	"view_count",
	"like_count",
	"comment_count",
	"share_count",
	"favorites_count",
	"music_id",
	"hashtag_names",
	"effect_ids",
	"playlist_id",
	"voice_to_text",
	"video_duration",
	"tiktokurl",
	"utc_year",
	"utc_month",
	"utc_day",
	"utc_hour",
	"utc_minute",
	"utc_second",
	"utc_date_string",
	"utc_time_string",
}

// Fields returns every column value of r keyed by column name.
func Fields(r types.MetadataRecord) map[string]string {
	created := r.Created()
	itoa := func(v int64) string { return strconv.FormatInt(v, 10) }
	return map[string]string{
		IDColumn:            r.ID.String(),
		"username":          r.Username,
		"video_description": r.VideoDescription,
		"create_time":       itoa(r.CreateTime),
		"region_code":       r.RegionCode,
		"view_count":        itoa(r.ViewCount),
		"like_count":        itoa(r.LikeCount),
		"comment_count":     itoa(r.CommentCount),
		"share_count":       itoa(r.ShareCount),
		"favorites_count":   itoa(r.FavoritesCount),
		"music_id":          string(r.MusicID),
		"hashtag_names":     jsonList(r.HashtagNames),
		"effect_ids":        jsonList(r.EffectIDs),
		"playlist_id":       string(r.PlaylistID),
		"voice_to_text":     r.VoiceToText,
		"video_duration":    itoa(r.VideoDuration),
		"tiktokurl":         r.URL(),
		"utc_year":          strconv.Itoa(created.Year()),
		"utc_month":         strconv.Itoa(int(created.Month())),
		"utc_day":           strconv.Itoa(created.Day()),
		"utc_hour":          strconv.Itoa(created.Hour()),
		"utc_minute":        strconv.Itoa(created.Minute()),
		"utc_second":        strconv.Itoa(created.Second()),
		"utc_date_string":   DateString(r),
		"utc_time_string":   created.Format("15:04:05"),
	}
}

// Row lays out r in the order of header. Unknown columns are left empty.
func Row(r types.MetadataRecord, header []string) []string {
	fields := Fields(r)
	row := make([]string, len(header))
	for i, col := range header {
		row[i] = fields[col]
	}
	return row
}

// DateString is the UTC creation date (YYYY-MM-DD) used to name per-date files.
func DateString(r types.MetadataRecord) string {
	return r.Created().Format("2006-01-02")
}

// jsonList encodes a list as a compact JSON array so it survives the CSV
// round trip; empty lists become an empty cell.
func jsonList[T any](items []T) string {
	if len(items) == 0 {
		return ""
	}
	data, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return string(data)
}
