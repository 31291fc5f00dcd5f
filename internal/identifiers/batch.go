// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package identifiers

import (
	"sort"
	"time"

	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

// MaxWindowDays is the longest query window the Research API accepts.
const MaxWindowDays = 30

// MaxBatchSize is the largest max_count the video query accepts.
const MaxBatchSize = 100

// Batch is a group of ids that can be resolved by a single windowed query.
// StartDate is the oldest creation day and EndDate the day after the newest,
// so EndDate-StartDate never exceeds the window.
type Batch struct {
	IDs       []types.VideoID
	StartDate time.Time
	EndDate   time.Time
}

// Batches sorts ids by creation time and packs them greedily into batches of
// at most maxSize ids whose creation days span at most windowDays days.
// Out-of-range arguments fall back to the API limits.
func Batches(ids []types.VideoID, maxSize, windowDays int) []Batch {
	if maxSize <= 0 || maxSize > MaxBatchSize {
		maxSize = MaxBatchSize
	}
	if windowDays <= 0 || windowDays > MaxWindowDays {
		windowDays = MaxWindowDays
	}
	if len(ids) == 0 {
		return nil
	}

	type dated struct {
		id  types.VideoID
		day time.Time
	}
	sorted := make([]dated, len(ids))
	for i, id := range ids {
		sorted[i] = dated{id: id, day: Day(CreatedAt(id))}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].day.Before(sorted[j].day)
	})

	var batches []Batch
	var cur *Batch
	for _, d := range sorted {
		if cur != nil {
			// The window runs from StartDate through the new day inclusive.
			span := int(d.day.Sub(cur.StartDate).Hours()/24) + 1
			if len(cur.IDs) >= maxSize || span > windowDays {
				cur = nil
			}
		}
		if cur == nil {
			batches = append(batches, Batch{StartDate: d.day})
			cur = &batches[len(batches)-1]
		}
		cur.IDs = append(cur.IDs, d.id)
		cur.EndDate = d.day.AddDate(0, 0, 1)
	}
	return batches
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
