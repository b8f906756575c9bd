package handler

import (
	"net/http"

	"github.com/abdusco/affiliated/internal/repo"
	"github.com/labstack/echo/v4"
)

func Register(e *echo.Echo, store *repo.Store) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")

	partners := NewPartnerHandler(store)
	api.GET("/partners", partners.ListPartners)
	api.POST("/partners", partners.CreatePartner)
	api.GET("/partners/:id", partners.GetPartner)
	api.PUT("/partners/:id", partners.UpdatePartner)
	api.DELETE("/partners/:id", partners.DeletePartner)

	links := NewLinkHandler(store)
	api.GET("/links", links.ListLinks)
	api.POST("/links", links.CreateLink)
	api.GET("/links/:id", links.GetLink)
	api.PUT("/links/:id", links.UpdateLink)
	api.DELETE("/links/:id", links.DeleteLink)
	api.GET("/links/:id/clicks", links.ListClicks)
	api.POST("/links/:id/click", links.RecordClick)

	transactions := NewTransactionHandler(store)
	api.GET("/transactions", transactions.ListTransactions)
	api.POST("/transactions", transactions.CreateTransaction)
	api.GET("/transactions/:id", transactions.GetTransaction)
	api.PUT("/transactions/:id", transactions.UpdateTransaction)

	analytics := NewAnalyticsHandler(store)
	api.GET("/analytics/overview", analytics.Overview)
	api.GET("/analytics/partner/:id", analytics.PartnerOverview)
	api.GET("/analytics/partners/:id", analytics.PartnerOverview)

	e.GET("/go/:id", links.Redirect)
}
