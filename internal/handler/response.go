package handler

import (
	"math"
	"time"

	"github.com/abdusco/affiliated/internal"
	"github.com/samber/lo"
)

// round2 is applied to money and rates only when building responses.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type PartnerResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Platform    string    `json:"platform"`
	Username    *string   `json:"username"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	TotalLinks  int64     `json:"total_links"`
	ActiveLinks int64     `json:"active_links"`
}

type LinkStatsResponse struct {
	TotalClicks    int64   `json:"total_clicks"`
	TotalCollected float64 `json:"total_collected"`
	TotalPaid      float64 `json:"total_paid"`
	PendingAmount  float64 `json:"pending_amount"`
	ConversionRate float64 `json:"conversion_rate"`
}

type LinkResponse struct {
	ID             int64              `json:"id"`
	PartnerID      int64              `json:"partner_id"`
	PartnerName    string             `json:"partner_name"`
	BrandName      string             `json:"brand_name"`
	ProductName    *string            `json:"product_name"`
	AffiliateURL   string             `json:"affiliate_url"`
	OriginalURL    *string            `json:"original_url"`
	CommissionRate float64            `json:"commission_rate"`
	Status         string             `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	Stats          *LinkStatsResponse `json:"stats,omitempty"`
}

type ClickResponse struct {
	ID        int64     `json:"id"`
	LinkID    int64     `json:"link_id"`
	IPAddress *string   `json:"ip_address"`
	UserAgent *string   `json:"user_agent"`
	Referrer  *string   `json:"referrer"`
	ClickedAt time.Time `json:"clicked_at"`
}

type TransactionResponse struct {
	ID              int64      `json:"id"`
	LinkID          int64      `json:"link_id"`
	BrandName       string     `json:"brand_name"`
	OrderID         *string    `json:"order_id"`
	AmountCollected float64    `json:"amount_collected"`
	AmountPaid      float64    `json:"amount_paid"`
	Currency        string     `json:"currency"`
	Status          string     `json:"status"`
	TransactionDate time.Time  `json:"transaction_date"`
	PayoutDate      *time.Time `json:"payout_date"`
	Notes           *string    `json:"notes"`
}

type PartnerStatsResponse struct {
	TotalLinks        int64   `json:"total_links"`
	ActiveLinks       int64   `json:"active_links"`
	TotalClicks       int64   `json:"total_clicks"`
	TotalTransactions int64   `json:"total_transactions"`
	TotalCollected    float64 `json:"total_collected"`
	TotalPaid         float64 `json:"total_paid"`
	PendingAmount     float64 `json:"pending_amount"`
	ConversionRate    float64 `json:"conversion_rate"`
}

type OverviewTotalsResponse struct {
	TotalPartners  int64   `json:"total_partners"`
	ActivePartners int64   `json:"active_partners"`
	TotalLinks     int64   `json:"total_links"`
	ActiveLinks    int64   `json:"active_links"`
	TotalClicks    int64   `json:"total_clicks"`
	TotalCollected float64 `json:"total_collected"`
	TotalPaid      float64 `json:"total_paid"`
	PendingAmount  float64 `json:"pending_amount"`
	ConversionRate float64 `json:"conversion_rate"`
}

type TopLinkResponse struct {
	Link    LinkResponse `json:"link"`
	Revenue float64      `json:"revenue"`
}

type OverviewResponse struct {
	Overview           OverviewTotalsResponse `json:"overview"`
	RecentClicks       []ClickResponse        `json:"recent_clicks"`
	RecentTransactions []TransactionResponse  `json:"recent_transactions"`
	TopLinks           []TopLinkResponse      `json:"top_links"`
}

func newPartnerResponse(p *internal.Partner) PartnerResponse {
	return PartnerResponse{
		ID:          p.ID,
		Name:        p.Name,
		Platform:    p.Platform,
		Username:    p.Username,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		TotalLinks:  p.TotalLinks,
		ActiveLinks: p.ActiveLinks,
	}
}

func newLinkStatsResponse(s *internal.LinkStats) *LinkStatsResponse {
	if s == nil {
		return nil
	}
	return &LinkStatsResponse{
		TotalClicks:    s.TotalClicks,
		TotalCollected: round2(s.TotalCollected),
		TotalPaid:      round2(s.TotalPaid),
		PendingAmount:  round2(s.PendingAmount),
		ConversionRate: round2(s.ConversionRate),
	}
}

func newLinkResponse(l *internal.Link) LinkResponse {
	return LinkResponse{
		ID:             l.ID,
		PartnerID:      l.PartnerID,
		PartnerName:    l.PartnerName,
		BrandName:      l.BrandName,
		ProductName:    l.ProductName,
		AffiliateURL:   l.AffiliateURL,
		OriginalURL:    l.OriginalURL,
		CommissionRate: l.CommissionRate,
		Status:         string(l.Status),
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
		Stats:          newLinkStatsResponse(l.Stats),
	}
}

func newClickResponse(c *internal.ClickEvent) ClickResponse {
	return ClickResponse{
		ID:        c.ID,
		LinkID:    c.LinkID,
		IPAddress: c.IPAddress,
		UserAgent: c.UserAgent,
		Referrer:  c.Referrer,
		ClickedAt: c.ClickedAt,
	}
}

func newTransactionResponse(t *internal.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              t.ID,
		LinkID:          t.LinkID,
		BrandName:       t.BrandName,
		OrderID:         t.OrderID,
		AmountCollected: round2(t.AmountCollected),
		AmountPaid:      round2(t.AmountPaid),
		Currency:        t.Currency,
		Status:          string(t.Status),
		TransactionDate: t.TransactionDate,
		PayoutDate:      t.PayoutDate,
		Notes:           t.Notes,
	}
}

func newPartnerStatsResponse(s *internal.PartnerStats) PartnerStatsResponse {
	return PartnerStatsResponse{
		TotalLinks:        s.TotalLinks,
		ActiveLinks:       s.ActiveLinks,
		TotalClicks:       s.TotalClicks,
		TotalTransactions: s.TotalTransactions,
		TotalCollected:    round2(s.TotalCollected),
		TotalPaid:         round2(s.TotalPaid),
		PendingAmount:     round2(s.PendingAmount),
		ConversionRate:    round2(s.ConversionRate),
	}
}

func newOverviewResponse(o *internal.Overview) OverviewResponse {
	return OverviewResponse{
		Overview: OverviewTotalsResponse{
			TotalPartners:  o.TotalPartners,
			ActivePartners: o.ActivePartners,
			TotalLinks:     o.TotalLinks,
			ActiveLinks:    o.ActiveLinks,
			TotalClicks:    o.TotalClicks,
			TotalCollected: round2(o.TotalCollected),
			TotalPaid:      round2(o.TotalPaid),
			PendingAmount:  round2(o.PendingAmount),
			ConversionRate: round2(o.ConversionRate),
		},
		RecentClicks: lo.Map(o.RecentClicks, func(c *internal.ClickEvent, _ int) ClickResponse {
			return newClickResponse(c)
		}),
		RecentTransactions: lo.Map(o.RecentTransactions, func(t *internal.Transaction, _ int) TransactionResponse {
			return newTransactionResponse(t)
		}),
		TopLinks: lo.Map(o.TopLinks, func(l *internal.Link, _ int) TopLinkResponse {
			var revenue float64
			if l.Stats != nil {
				revenue = round2(l.Stats.TotalCollected)
			}
			return TopLinkResponse{Link: newLinkResponse(l), Revenue: revenue}
		}),
	}
}
