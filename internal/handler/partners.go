package handler

import (
	"net/http"

	"github.com/abdusco/affiliated/internal"
	"github.com/abdusco/affiliated/internal/repo"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

type PartnerHandler struct {
	store *repo.Store
}

func NewPartnerHandler(store *repo.Store) *PartnerHandler {
	return &PartnerHandler{store: store}
}

type PartnerEnvelope struct {
	Partner PartnerResponse `json:"partner"`
}

func (h *PartnerHandler) ListPartners(c echo.Context) error {
	partners, err := h.store.ListPartners(c.Request().Context())
	if err != nil {
		return err
	}

	resp := lo.Map(partners, func(p *internal.Partner, _ int) PartnerResponse {
		return newPartnerResponse(p)
	})
	return c.JSON(http.StatusOK, resp)
}

func (h *PartnerHandler) GetPartner(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	partner, err := h.store.GetPartner(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PartnerEnvelope{Partner: newPartnerResponse(partner)})
}

func (h *PartnerHandler) CreatePartner(c echo.Context) error {
	var req repo.PartnerInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	partner, err := h.store.CreatePartner(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, PartnerEnvelope{Partner: newPartnerResponse(partner)})
}

func (h *PartnerHandler) UpdatePartner(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req repo.PartnerUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	partner, err := h.store.UpdatePartner(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PartnerEnvelope{Partner: newPartnerResponse(partner)})
}

func (h *PartnerHandler) DeletePartner(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.store.DeletePartner(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}
