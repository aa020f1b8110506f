// Package searchentry turns subtitle cues into indexable records keyed by
// {episodeId}_{startTimeMs}.
package searchentry
