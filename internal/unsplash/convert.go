package unsplash

import (
	"github.com/iscle/haven-go/internal/model"
)

// toPhoto maps an API photo onto the domain photo.
func (p *apiPhoto) toPhoto() model.Photo {
	photo := model.Photo{
		ID:                   p.ID,
		FullImageURL:         p.URLs.Full,
		Width:                p.Width,
		Height:               p.Height,
		PhotographerName:     p.User.Name,
		PhotographerUsername: p.User.Username,
		SourcePageURL:        p.Links.HTML,
		ArtistProfileURL:     p.User.Links.HTML,
		Color:                p.Color,
		BlurHash:             p.BlurHash,
		Description:          p.Description,
		DownloadLocation:     p.Links.DownloadLocation,
	}
	if photo.Description == "" {
		photo.Description = p.AltDesc
	}
	if img := p.User.ProfileImage; img != nil {
		photo.ProfileImageURL = firstNonEmpty(img.Medium, img.Large, img.Small)
	}
	return photo
}

func (r *searchResponse) toResult() *SearchResult {
	result := &SearchResult{
		Total:      r.Total,
		TotalPages: r.TotalPages,
		Results:    make([]model.Photo, 0, len(r.Results)),
	}
	for i := range r.Results {
		// Entries without an id or image cannot be cached or shown
		if r.Results[i].ID == "" || r.Results[i].URLs.Full == "" {
			continue
		}
		result.Results = append(result.Results, r.Results[i].toPhoto())
	}
	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
