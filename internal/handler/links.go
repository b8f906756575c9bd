package handler

import (
	"net"
	"net/http"
	"strings"

	"github.com/abdusco/affiliated/internal"
	"github.com/abdusco/affiliated/internal/repo"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const maxIPLength = 45

type LinkHandler struct {
	store *repo.Store
}

func NewLinkHandler(store *repo.Store) *LinkHandler {
	return &LinkHandler{store: store}
}

type LinkEnvelope struct {
	Link LinkResponse `json:"link"`
}

type ListClicksResponse struct {
	Clicks []ClickResponse `json:"clicks"`
}

type RecordClickResponse struct {
	Click       ClickResponse `json:"click"`
	RedirectURL string        `json:"redirect_url"`
}

func (h *LinkHandler) ListLinks(c echo.Context) error {
	partnerID, err := queryID(c, "partner_id")
	if err != nil {
		return err
	}
	status, err := queryStatus(c, internal.LinkActive, internal.LinkInactive, internal.LinkExpired)
	if err != nil {
		return err
	}
	filter := repo.LinkFilter{PartnerID: partnerID, Status: status}

	links, err := h.store.ListLinks(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	resp := lo.Map(links, func(link *internal.Link, _ int) LinkResponse {
		return newLinkResponse(link)
	})
	return c.JSON(http.StatusOK, resp)
}

func (h *LinkHandler) GetLink(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	link, err := h.store.GetLink(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, LinkEnvelope{Link: newLinkResponse(link)})
}

func (h *LinkHandler) CreateLink(c echo.Context) error {
	var req repo.LinkInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	link, err := h.store.CreateLink(c.Request().Context(), req)
	if err != nil {
		zerolog.Ctx(c.Request().Context()).Warn().Err(err).Int64("partner_id", req.PartnerID).Msg("failed to create link")
		return err
	}
	return c.JSON(http.StatusCreated, LinkEnvelope{Link: newLinkResponse(link)})
}

func (h *LinkHandler) UpdateLink(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req repo.LinkUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	link, err := h.store.UpdateLink(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, LinkEnvelope{Link: newLinkResponse(link)})
}

func (h *LinkHandler) DeleteLink(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.store.DeleteLink(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *LinkHandler) ListClicks(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	clicks, err := h.store.ListClicks(c.Request().Context(), id)
	if err != nil {
		return err
	}

	resp := lo.Map(clicks, func(click *internal.ClickEvent, _ int) ClickResponse {
		return newClickResponse(click)
	})
	return c.JSON(http.StatusOK, ListClicksResponse{Clicks: resp})
}

// RecordClick stores a click and returns the redirect target as JSON, for
// callers that perform the redirect themselves.
func (h *LinkHandler) RecordClick(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	click, target, err := h.store.RecordClick(c.Request().Context(), id, clickInput(c.Request()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, RecordClickResponse{
		Click:       newClickResponse(click),
		RedirectURL: target,
	})
}

func (h *LinkHandler) Redirect(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	in := clickInput(c.Request())
	click, target, err := h.store.RecordClick(ctx, id, in)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("link_id", id).Msg("failed to record click")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Int64("link_id", id).
		Int64("click_id", click.ID).
		Str("ip", lo.FromPtr(in.IPAddress)).
		Msg("redirecting link")

	return c.Redirect(http.StatusFound, target)
}

func clickInput(r *http.Request) repo.ClickInput {
	return repo.ClickInput{
		IPAddress: lo.EmptyableToPtr(getClientIP(r)),
		UserAgent: lo.EmptyableToPtr(r.UserAgent()),
		Referrer:  lo.EmptyableToPtr(r.Referer()),
	}
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// Try X-Forwarded-For header first (for proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if ip := net.ParseIP(first); ip != nil {
			return first
		}
	}

	// Try X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return xri
		}
	}

	// Fall back to RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}

	if len(r.RemoteAddr) > maxIPLength {
		return ""
	}
	return r.RemoteAddr
}
