// Package unsplash provides a client for the Unsplash photo search API.
package unsplash

import (
	"time"

	"github.com/iscle/haven-go/internal/model"
)

// searchResponse is the wire format of a search request.
type searchResponse struct {
	Total      int        `json:"total"`
	TotalPages int        `json:"total_pages"`
	Results    []apiPhoto `json:"results"`
}

type apiPhoto struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug,omitempty"`
	CreatedAt   string   `json:"created_at"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	Color       string   `json:"color"`
	BlurHash    string   `json:"blur_hash,omitempty"`
	Description string   `json:"description,omitempty"`
	AltDesc     string   `json:"alt_description,omitempty"`
	URLs        apiURLs  `json:"urls"`
	Links       apiLinks `json:"links"`
	User        apiUser  `json:"user"`
}

type apiURLs struct {
	Raw     string `json:"raw"`
	Full    string `json:"full"`
	Regular string `json:"regular"`
	Small   string `json:"small"`
	Thumb   string `json:"thumb"`
}

type apiLinks struct {
	Self             string `json:"self,omitempty"`
	HTML             string `json:"html"`
	Download         string `json:"download,omitempty"`
	DownloadLocation string `json:"download_location,omitempty"`
}

type apiUser struct {
	ID           string           `json:"id"`
	Username     string           `json:"username"`
	Name         string           `json:"name"`
	ProfileImage *apiProfileImage `json:"profile_image,omitempty"`
	Links        apiUserLinks     `json:"links"`
}

type apiProfileImage struct {
	Small  string `json:"small,omitempty"`
	Medium string `json:"medium,omitempty"`
	Large  string `json:"large,omitempty"`
}

type apiUserLinks struct {
	HTML string `json:"html"`
}

// SearchResult is one page of search results.
type SearchResult struct {
	Total      int
	TotalPages int
	Results    []model.Photo
}

// Config holds configuration for the Unsplash client
type Config struct {
	BaseURL    string        // e.g. https://unsplash.com/
	SearchPath string        // path of the search endpoint relative to BaseURL
	AccessKey  string        // optional; sent as "Authorization: Client-ID <key>"
	RateLimit  int           // max requests per minute, 0 disables limiting
	Timeout    time.Duration // per-attempt timeout
}

// DefaultConfig returns the public web search endpoint without an access key.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "https://unsplash.com/",
		SearchPath: "napi/search/photos",
		RateLimit:  50,
		Timeout:    15 * time.Second,
	}
}
