package handler

import (
	"net/http"

	"github.com/abdusco/affiliated/internal/repo"
	"github.com/labstack/echo/v4"
)

type AnalyticsHandler struct {
	store *repo.Store
}

func NewAnalyticsHandler(store *repo.Store) *AnalyticsHandler {
	return &AnalyticsHandler{store: store}
}

type PartnerOverviewResponse struct {
	Partner PartnerResponse      `json:"partner"`
	Stats   PartnerStatsResponse `json:"stats"`
}

func (h *AnalyticsHandler) Overview(c echo.Context) error {
	overview, err := h.store.Overview(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newOverviewResponse(overview))
}

func (h *AnalyticsHandler) PartnerOverview(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	partner, err := h.store.GetPartner(ctx, id)
	if err != nil {
		return err
	}
	stats, err := h.store.PartnerStats(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, PartnerOverviewResponse{
		Partner: newPartnerResponse(partner),
		Stats:   newPartnerStatsResponse(stats),
	})
}
