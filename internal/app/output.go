package app

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/iscle/haven-go/internal/model"
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WritePhoto writes the fields a user needs to set and credit a wallpaper.
func WritePhoto(w io.Writer, p *model.Photo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", p.ID)
	fmt.Fprintf(tw, "url:\t%s\n", p.FullImageURL)
	fmt.Fprintf(tw, "size:\t%dx%d\n", p.Width, p.Height)
	fmt.Fprintf(tw, "photographer:\t%s (@%s)\n", p.PhotographerName, p.PhotographerUsername)
	if p.SourcePageURL != "" {
		fmt.Fprintf(tw, "source:\t%s\n", p.SourcePageURL)
	}
	return tw.Flush()
}

// WriteHistory writes one line per record, most recent first.
func WriteHistory(w io.Writer, records []model.HistoryRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSHOWN\tTIMES\tFAVORITE\tPHOTOGRAPHER")
	for _, r := range records {
		fav := ""
		if r.IsFavorite {
			fav = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			r.Photo.ID, r.ShownAt.Local().Format(time.DateTime), r.TimesShown, fav, r.Photo.PhotographerName)
	}
	return tw.Flush()
}

// WritePhotos writes one line per photo.
func WritePhotos(w io.Writer, photos []model.Photo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSIZE\tPHOTOGRAPHER\tURL")
	for _, p := range photos {
		fmt.Fprintf(tw, "%s\t%dx%d\t%s\t%s\n", p.ID, p.Width, p.Height, p.PhotographerName, p.FullImageURL)
	}
	return tw.Flush()
}
