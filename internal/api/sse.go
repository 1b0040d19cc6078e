package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iscle/haven-go/internal/logger"
	"github.com/iscle/haven-go/internal/model"
	"github.com/iscle/haven-go/internal/observability/metrics"
)

const historyEvent = "history"

func (s *Server) httpMetrics() *metrics.HTTPMetrics {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.HTTP
}

func setSSEHeaders(c echo.Context) {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set(echo.HeaderCacheControl, "no-cache")
	h.Set(echo.HeaderConnection, "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// streamHistory handles GET /api/v1/history/stream. The first event is the
// current history; later events are sent after every change. A slow client
// skips intermediate snapshots and receives the latest one.
func (s *Server) streamHistory(c echo.Context) error {
	ctx := c.Request().Context()
	snapshots, err := s.service.ObserveHistory(ctx)
	if err != nil {
		return s.HandleError(c, err)
	}

	setSSEHeaders(c)
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	hm := s.httpMetrics()
	hm.SSEConnectionStarted()
	closeEvent := metrics.SSEEventClosed
	defer func() { hm.SSEConnectionClosed(closeEvent) }()

	log := s.log.WithContext(ctx).With(logger.String("ip", c.RealIP()))
	log.Debug("history stream opened")
	defer log.Debug("history stream closed")

	ticker := time.NewTicker(s.config.Heartbeat)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case records, ok := <-snapshots:
			if !ok {
				return nil
			}
			seq++
			if err := writeHistoryEvent(c, seq, records); err != nil {
				closeEvent = metrics.SSEEventError
				log.Debug("history stream write failed", logger.Error(err))
				return nil
			}
			hm.RecordSSEMessageSent(historyEvent)

		case <-ticker.C:
			if _, err := fmt.Fprint(c.Response(), ": heartbeat\n\n"); err != nil {
				closeEvent = metrics.SSEEventError
				return nil
			}
			c.Response().Flush()
			hm.RecordSSEMessageSent("heartbeat")

		case <-ctx.Done():
			return nil
		}
	}
}

func writeHistoryEvent(c echo.Context, seq uint64, records []model.HistoryRecord) error {
	if records == nil {
		records = []model.HistoryRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response(), "id: %d\nevent: %s\ndata: %s\n\n", seq, historyEvent, data); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}
