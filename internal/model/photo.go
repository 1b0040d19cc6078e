// Package model holds the domain types shared by the stores, the orchestrator
// and the presentation boundary.
package model

import (
	"strings"
	"time"
)

// Photo is a remote photo as returned by the search API. Immutable once fetched.
type Photo struct {
	ID                   string `json:"id"`
	FullImageURL         string `json:"full_image_url"`
	Width                int    `json:"width"`
	Height               int    `json:"height"`
	PhotographerName     string `json:"photographer_name"`
	PhotographerUsername string `json:"photographer_username"`
	SourcePageURL        string `json:"source_page_url,omitempty"`
	ArtistProfileURL     string `json:"artist_profile_url,omitempty"`
	ProfileImageURL      string `json:"profile_image_url,omitempty"`

	Color            string `json:"color,omitempty"`
	BlurHash         string `json:"blur_hash,omitempty"`
	Description      string `json:"description,omitempty"`
	DownloadLocation string `json:"download_location,omitempty"`
}

// IsLandscape reports whether the photo is strictly wider than tall.
func (p Photo) IsLandscape() bool {
	return p.Width > p.Height
}

// HistoryRecord is one entry of the shown-photos log.
type HistoryRecord struct {
	Photo      Photo     `json:"photo"`
	ShownAt    time.Time `json:"shown_at"`
	IsFavorite bool      `json:"is_favorite"`
	TimesShown int       `json:"times_shown"`
}

// CacheKey normalizes a search query into the cache partition key.
func CacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// FilterLandscape returns the landscape photos of photos, preserving order.
func FilterLandscape(photos []Photo) []Photo {
	out := make([]Photo, 0, len(photos))
	for _, p := range photos {
		if p.IsLandscape() {
			out = append(out, p)
		}
	}
	return out
}
