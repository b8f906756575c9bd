package repo

import (
	"context"

	"github.com/abdusco/affiliated/internal"
	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

const (
	recentEventsLimit = 10
	topLinksLimit     = 5
)

// eventTotalsRow aggregates the clicks and transactions of every link
// matching a scope.
type eventTotalsRow struct {
	Transactions   int64   `db:"transactions"`
	TotalCollected float64 `db:"total_collected"`
	TotalPaid      float64 `db:"total_paid"`
	PendingAmount  float64 `db:"pending_amount"`
	Clicks         int64   `db:"-"`
}

// eventTotals sums over the links selected by scope, which may reference the
// links table as "l". No scope means every link.
func (s *Session) eventTotals(ctx context.Context, scope ...exp.Expression) (*eventTotalsRow, error) {
	var row eventTotalsRow
	_, err := s.q.From(goqu.T(transactionsTable).As("t")).
		InnerJoin(goqu.T(linksTable).As("l"), goqu.On(goqu.I("l.id").Eq(goqu.I("t.link_id")))).
		Where(scope...).
		Select(
			goqu.COUNT(goqu.I("t.id")).As("transactions"),
			goqu.L("COALESCE(SUM(t.amount_collected), 0.0)").As("total_collected"),
			goqu.L("COALESCE(SUM(CASE WHEN t.status = ? THEN t.amount_paid ELSE 0.0 END), 0.0)", string(internal.TransactionPaid)).
				As("total_paid"),
			goqu.L("COALESCE(SUM(CASE WHEN t.status = ? THEN t.amount_collected ELSE 0.0 END), 0.0)", string(internal.TransactionPending)).
				As("pending_amount"),
		).
		ScanStructContext(ctx, &row)
	if err != nil {
		return nil, storageErr("sum transactions", err)
	}

	row.Clicks, err = s.q.From(goqu.T(clicksTable).As("c")).
		InnerJoin(goqu.T(linksTable).As("l"), goqu.On(goqu.I("l.id").Eq(goqu.I("c.link_id")))).
		Where(scope...).
		CountContext(ctx)
	if err != nil {
		return nil, storageErr("count clicks", err)
	}

	return &row, nil
}

func (s *Session) countLinks(ctx context.Context, scope ...exp.Expression) (total, active int64, err error) {
	total, err = s.q.From(goqu.T(linksTable).As("l")).Where(scope...).CountContext(ctx)
	if err != nil {
		return 0, 0, storageErr("count links", err)
	}
	active, err = s.q.From(goqu.T(linksTable).As("l")).
		Where(append(scope, goqu.I("l.status").Eq(string(internal.LinkActive)))...).
		CountContext(ctx)
	if err != nil {
		return 0, 0, storageErr("count links", err)
	}
	return total, active, nil
}

func (s *Session) LinkStats(ctx context.Context, linkID int64) (*internal.LinkStats, error) {
	exists, err := s.linkExists(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &internal.NotFoundError{Entity: "link", ID: linkID}
	}

	totals, err := s.eventTotals(ctx, goqu.I("l.id").Eq(linkID))
	if err != nil {
		return nil, err
	}

	return &internal.LinkStats{
		TotalClicks:    totals.Clicks,
		TotalCollected: totals.TotalCollected,
		TotalPaid:      totals.TotalPaid,
		PendingAmount:  totals.PendingAmount,
		ConversionRate: internal.ConversionRate(totals.Transactions, totals.Clicks),
	}, nil
}

func (s *Session) PartnerStats(ctx context.Context, partnerID int64) (*internal.PartnerStats, error) {
	exists, err := s.partnerExists(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &internal.NotFoundError{Entity: "partner", ID: partnerID}
	}

	scope := goqu.I("l.partner_id").Eq(partnerID)
	totalLinks, activeLinks, err := s.countLinks(ctx, scope)
	if err != nil {
		return nil, err
	}
	totals, err := s.eventTotals(ctx, scope)
	if err != nil {
		return nil, err
	}

	return &internal.PartnerStats{
		TotalLinks:        totalLinks,
		ActiveLinks:       activeLinks,
		TotalClicks:       totals.Clicks,
		TotalTransactions: totals.Transactions,
		TotalCollected:    totals.TotalCollected,
		TotalPaid:         totals.TotalPaid,
		PendingAmount:     totals.PendingAmount,
		ConversionRate:    internal.ConversionRate(totals.Transactions, totals.Clicks),
	}, nil
}

func (s *Session) Overview(ctx context.Context) (*internal.Overview, error) {
	totalPartners, err := s.q.From(partnersTable).CountContext(ctx)
	if err != nil {
		return nil, storageErr("count partners", err)
	}
	activePartners, err := s.q.From(partnersTable).
		Where(goqu.Ex{"status": string(internal.PartnerActive)}).
		CountContext(ctx)
	if err != nil {
		return nil, storageErr("count partners", err)
	}

	totalLinks, activeLinks, err := s.countLinks(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := s.eventTotals(ctx)
	if err != nil {
		return nil, err
	}

	overview := &internal.Overview{
		TotalPartners:  totalPartners,
		ActivePartners: activePartners,
		TotalLinks:     totalLinks,
		ActiveLinks:    activeLinks,
		TotalClicks:    totals.Clicks,
		TotalCollected: totals.TotalCollected,
		TotalPaid:      totals.TotalPaid,
		PendingAmount:  totals.PendingAmount,
		ConversionRate: internal.ConversionRate(totals.Transactions, totals.Clicks),
	}

	if overview.RecentClicks, err = s.recentClicks(ctx, recentEventsLimit); err != nil {
		return nil, err
	}
	if overview.RecentTransactions, err = s.recentTransactions(ctx, recentEventsLimit); err != nil {
		return nil, err
	}
	if overview.TopLinks, err = s.topLinks(ctx, topLinksLimit); err != nil {
		return nil, err
	}
	return overview, nil
}

// topLinks ranks links by collected amount, highest first. Equal amounts keep
// creation order.
func (s *Session) topLinks(ctx context.Context, limit uint) ([]*internal.Link, error) {
	var rows []linkRow
	err := s.linksQuery().
		LeftJoin(goqu.T(transactionsTable).As("t"), goqu.On(goqu.I("t.link_id").Eq(goqu.I("l.id")))).
		GroupBy(goqu.I("l.id")).
		Order(goqu.L("COALESCE(SUM(t.amount_collected), 0.0)").Desc(), goqu.I("l.id").Asc()).
		Limit(limit).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, storageErr("rank links", err)
	}

	links := make([]*internal.Link, len(rows))
	for i := range rows {
		link := rows[i].toDomain()
		if link.Stats, err = s.LinkStats(ctx, link.ID); err != nil {
			return nil, err
		}
		links[i] = link
	}
	return links, nil
}

func (s *Store) LinkStats(ctx context.Context, linkID int64) (*internal.LinkStats, error) {
	return s.read().LinkStats(ctx, linkID)
}

func (s *Store) PartnerStats(ctx context.Context, partnerID int64) (*internal.PartnerStats, error) {
	return s.read().PartnerStats(ctx, partnerID)
}

// Overview reads every figure from the same snapshot, so totals and recent
// events agree even while clicks are being recorded.
func (s *Store) Overview(ctx context.Context) (*internal.Overview, error) {
	var overview *internal.Overview
	err := s.inReadTx(ctx, func(sess *Session) error {
		var err error
		overview, err = sess.Overview(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return overview, nil
}
