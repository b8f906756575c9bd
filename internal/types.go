package internal

import "time"

type PartnerStatus string

const (
	PartnerActive   PartnerStatus = "active"
	PartnerInactive PartnerStatus = "inactive"
	PartnerPending  PartnerStatus = "pending"
)

type LinkStatus string

const (
	LinkActive   LinkStatus = "active"
	LinkInactive LinkStatus = "inactive"
	LinkExpired  LinkStatus = "expired"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionPaid      TransactionStatus = "paid"
	TransactionCancelled TransactionStatus = "cancelled"
)

const DefaultCurrency = "USD"

type Partner struct {
	ID        int64
	Name      string
	Platform  string
	Username  *string
	APIKey    *string
	APISecret *string
	Status    PartnerStatus
	CreatedAt time.Time
	UpdatedAt time.Time

	TotalLinks  int64
	ActiveLinks int64
}

type Link struct {
	ID             int64
	PartnerID      int64
	PartnerName    string
	BrandName      string
	ProductName    *string
	AffiliateURL   string
	OriginalURL    *string
	CommissionRate float64
	Status         LinkStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Stats          *LinkStats
}

type ClickEvent struct {
	ID        int64
	LinkID    int64
	IPAddress *string
	UserAgent *string
	Referrer  *string
	ClickedAt time.Time
}

type Transaction struct {
	ID              int64
	LinkID          int64
	BrandName       string
	OrderID         *string
	AmountCollected float64
	AmountPaid      float64
	Currency        string
	Status          TransactionStatus
	TransactionDate time.Time
	PayoutDate      *time.Time
	Notes           *string
}

// LinkStats holds unrounded totals; rounding happens when serialized.
type LinkStats struct {
	TotalClicks    int64
	TotalCollected float64
	TotalPaid      float64
	PendingAmount  float64
	ConversionRate float64
}

type PartnerStats struct {
	TotalLinks        int64
	ActiveLinks       int64
	TotalClicks       int64
	TotalTransactions int64
	TotalCollected    float64
	TotalPaid         float64
	PendingAmount     float64
	ConversionRate    float64
}

type Overview struct {
	TotalPartners      int64
	ActivePartners     int64
	TotalLinks         int64
	ActiveLinks        int64
	TotalClicks        int64
	TotalCollected     float64
	TotalPaid          float64
	PendingAmount      float64
	ConversionRate     float64
	RecentClicks       []*ClickEvent
	RecentTransactions []*Transaction
	TopLinks           []*Link
}

// ConversionRate is transactions per click as a percentage, 0 when there are
// no clicks.
func ConversionRate(transactions, clicks int64) float64 {
	if clicks == 0 {
		return 0
	}
	return float64(transactions) / float64(clicks) * 100
}
