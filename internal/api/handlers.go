package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iscle/haven-go/internal/model"
)

// FavoriteResponse reports the favorite flag of one photo.
type FavoriteResponse struct {
	ID       string `json:"id"`
	Favorite bool   `json:"favorite"`
}

// boolParam parses an optional boolean query parameter.
func boolParam(c echo.Context, name string) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, echo.NewHTTPError(http.StatusBadRequest, "invalid boolean for "+name)
	}
	return v, nil
}

// randomPhoto handles GET /api/v1/photos/random?query=&favorites=&record=
func (s *Server) randomPhoto(c echo.Context) error {
	favorites, err := boolParam(c, "favorites")
	if err != nil {
		return err
	}
	record, err := boolParam(c, "record")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	photo, err := s.service.GetRandomPhoto(ctx, c.QueryParam("query"), favorites)
	if err != nil {
		return s.HandleError(c, err)
	}
	if record {
		if err := s.service.RecordShown(ctx, photo); err != nil {
			return s.HandleError(c, err)
		}
	}
	return c.JSON(http.StatusOK, photo)
}

// recordShown handles POST /api/v1/history with a photo body.
func (s *Server) recordShown(c echo.Context) error {
	var photo model.Photo
	if err := c.Bind(&photo); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid photo body")
	}
	if err := s.service.RecordShown(c.Request().Context(), &photo); err != nil {
		return s.HandleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listHistory(c echo.Context) error {
	records, err := s.service.History(c.Request().Context())
	if err != nil {
		return s.HandleError(c, err)
	}
	if records == nil {
		records = []model.HistoryRecord{}
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) clearHistory(c echo.Context) error {
	if err := s.service.ClearHistory(c.Request().Context()); err != nil {
		return s.HandleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listFavorites(c echo.Context) error {
	photos, err := s.service.GetFavorites(c.Request().Context())
	if err != nil {
		return s.HandleError(c, err)
	}
	if photos == nil {
		photos = []model.Photo{}
	}
	return c.JSON(http.StatusOK, photos)
}

func (s *Server) favoriteStatus(c echo.Context) error {
	id := c.Param("id")
	favorite, err := s.service.IsFavorite(c.Request().Context(), id)
	if err != nil {
		return s.HandleError(c, err)
	}
	return c.JSON(http.StatusOK, FavoriteResponse{ID: id, Favorite: favorite})
}

// toggleFavorite handles POST /api/v1/favorites/:id/toggle. Photos that were
// never shown are 404.
func (s *Server) toggleFavorite(c echo.Context) error {
	id := c.Param("id")
	favorite, err := s.service.ToggleFavorite(c.Request().Context(), id)
	if err != nil {
		return s.HandleError(c, err)
	}
	return c.JSON(http.StatusOK, FavoriteResponse{ID: id, Favorite: favorite})
}

func (s *Server) clearCache(c echo.Context) error {
	if err := s.service.ClearPhotoCache(c.Request().Context()); err != nil {
		return s.HandleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) cacheStats(c echo.Context) error {
	stats, err := s.service.CacheStats(c.Request().Context(), c.QueryParam("query"))
	if err != nil {
		return s.HandleError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
