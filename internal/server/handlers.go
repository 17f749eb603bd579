package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"price-trend-engine/internal/forecast"
	"price-trend-engine/internal/history"
	"price-trend-engine/internal/storage"
)

type eventResponse struct {
	ID            int64            `json:"id"`
	ProductID     string           `json:"productId"`
	Price         decimal.Decimal  `json:"price"`
	PreviousPrice *decimal.Decimal `json:"previousPrice,omitempty"`
	ChangeKind    string           `json:"changeKind"`
	RecordedAt    time.Time        `json:"recordedAt"`
}

type seriesPointResponse struct {
	Month     string           `json:"month"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Predicted *decimal.Decimal `json:"predicted,omitempty"`
	Upper     *decimal.Decimal `json:"upper,omitempty"`
	Lower     *decimal.Decimal `json:"lower,omitempty"`
}

type statsResponse struct {
	Highest        decimal.Decimal `json:"highest"`
	Lowest         decimal.Decimal `json:"lowest"`
	Average        decimal.Decimal `json:"average"`
	CurrentTrend   decimal.Decimal `json:"currentTrend"`
	PredictedNext  decimal.Decimal `json:"predictedNext"`
	PredictedDelta decimal.Decimal `json:"predictedDelta"`
}

type mutationRequest struct {
	Operation   string       `json:"operation" binding:"required"`
	Doc         mutationDoc  `json:"doc" binding:"required"`
	PreviousDoc *mutationDoc `json:"previousDoc"`
}

type mutationDoc struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getHistory(c *gin.Context) {
	events, err := s.history.GetHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, eventResponse{
			ID:            event.ID,
			ProductID:     event.ProductID,
			Price:         event.Price,
			PreviousPrice: event.PreviousPrice,
			ChangeKind:    event.ChangeKind,
			RecordedAt:    event.RecordedAt.UTC(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func (s *Server) getSeries(c *gin.Context) {
	series, err := s.history.GetSeries(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}

	if series.Sparse {
		c.JSON(http.StatusOK, gin.H{"sparse": true})
		return
	}

	points := make([]seriesPointResponse, 0, len(series.Points))
	for _, point := range series.Points {
		points = append(points, seriesPointResponse{
			Month:     point.Label,
			Price:     point.Price,
			Predicted: point.Predicted,
			Upper:     point.Upper,
			Lower:     point.Lower,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"points": points,
		"stats":  toStatsResponse(series.Stats),
	})
}

func (s *Server) postPriceEvent(c *gin.Context) {
	var req mutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Doc.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "doc.id is required"})
		return
	}
	if req.Operation != history.OpCreate && req.Operation != history.OpUpdate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "operation must be create or update"})
		return
	}

	mutation := history.Mutation{
		Operation: req.Operation,
		Doc: history.MutationDoc{
			ID:    req.Doc.ID,
			Name:  req.Doc.Name,
			Price: req.Doc.Price,
		},
	}
	if req.PreviousDoc != nil {
		mutation.PreviousDoc = &history.MutationDoc{
			ID:    req.PreviousDoc.ID,
			Name:  req.PreviousDoc.Name,
			Price: req.PreviousDoc.Price,
		}
	}

	event, err := s.history.RecordIfChanged(c.Request.Context(), mutation)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"recorded": event != nil})
}

func (s *Server) renderError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrProductNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	s.logger.Error().Err(err).
		Str("request_id", c.GetString("request_id")).
		Str("path", c.Request.URL.Path).
		Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func toStatsResponse(stats forecast.Stats) statsResponse {
	return statsResponse{
		Highest:        stats.Highest,
		Lowest:         stats.Lowest,
		Average:        stats.Average,
		CurrentTrend:   stats.CurrentTrend,
		PredictedNext:  stats.PredictedNext,
		PredictedDelta: stats.PredictedDelta,
	}
}
