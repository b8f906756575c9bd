package repo

import (
	"context"

	"github.com/abdusco/affiliated/internal"
	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/rs/zerolog"
)

type LinkInput struct {
	PartnerID      int64               `json:"partner_id" validate:"required"`
	BrandName      string              `json:"brand_name" validate:"required"`
	ProductName    *string             `json:"product_name"`
	AffiliateURL   string              `json:"affiliate_url" validate:"required"`
	OriginalURL    *string             `json:"original_url"`
	CommissionRate float64             `json:"commission_rate" validate:"gte=0"`
	Status         internal.LinkStatus `json:"status" validate:"omitempty,oneof=active inactive expired"`
}

// LinkUpdate has no partner field: a link's partner is fixed at creation.
type LinkUpdate struct {
	BrandName      *string              `json:"brand_name" validate:"omitnil,min=1"`
	ProductName    *string              `json:"product_name"`
	AffiliateURL   *string              `json:"affiliate_url" validate:"omitnil,min=1"`
	OriginalURL    *string              `json:"original_url"`
	CommissionRate *float64             `json:"commission_rate" validate:"omitnil,gte=0"`
	Status         *internal.LinkStatus `json:"status" validate:"omitnil,oneof=active inactive expired"`
}

type LinkFilter struct {
	PartnerID *int64
	Status    *internal.LinkStatus
}

type linkRow struct {
	ID             int64   `db:"id"`
	PartnerID      int64   `db:"partner_id"`
	PartnerName    string  `db:"partner_name"`
	BrandName      string  `db:"brand_name"`
	ProductName    *string `db:"product_name"`
	AffiliateURL   string  `db:"affiliate_url"`
	OriginalURL    *string `db:"original_url"`
	CommissionRate float64 `db:"commission_rate"`
	Status         string  `db:"status"`
	CreatedAt      Date    `db:"created_at"`
	UpdatedAt      Date    `db:"updated_at"`
}

func linkColumns() []any {
	return []any{
		goqu.I("l.id").As("id"),
		goqu.I("l.partner_id").As("partner_id"),
		goqu.COALESCE(goqu.I("p.name"), "").As("partner_name"),
		goqu.I("l.brand_name").As("brand_name"),
		goqu.I("l.product_name").As("product_name"),
		goqu.I("l.affiliate_url").As("affiliate_url"),
		goqu.I("l.original_url").As("original_url"),
		goqu.I("l.commission_rate").As("commission_rate"),
		goqu.I("l.status").As("status"),
		goqu.I("l.created_at").As("created_at"),
		goqu.I("l.updated_at").As("updated_at"),
	}
}

func (s *Session) linksQuery() *goqu.SelectDataset {
	return s.q.From(goqu.T(linksTable).As("l")).
		LeftJoin(goqu.T(partnersTable).As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("l.partner_id")))).
		Select(linkColumns()...)
}

func (f LinkFilter) conditions() []exp.Expression {
	var conds []exp.Expression
	if f.PartnerID != nil {
		conds = append(conds, goqu.I("l.partner_id").Eq(*f.PartnerID))
	}
	if f.Status != nil {
		conds = append(conds, goqu.I("l.status").Eq(string(*f.Status)))
	}
	return conds
}

// ListLinks returns links matching every set filter field, newest first, each
// with its stats.
func (s *Session) ListLinks(ctx context.Context, filter LinkFilter) ([]*internal.Link, error) {
	var rows []linkRow
	err := s.linksQuery().
		Where(filter.conditions()...).
		Order(goqu.I("l.created_at").Desc(), goqu.I("l.id").Desc()).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, storageErr("list links", err)
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

func (s *Session) GetLink(ctx context.Context, id int64) (*internal.Link, error) {
	var row linkRow
	found, err := s.linksQuery().Where(goqu.I("l.id").Eq(id)).ScanStructContext(ctx, &row)
	if err != nil {
		return nil, storageErr("get link", err)
	}
	if !found {
		return nil, &internal.NotFoundError{Entity: "link", ID: id}
	}

	link := row.toDomain()
	if link.Stats, err = s.LinkStats(ctx, id); err != nil {
		return nil, err
	}
	return link, nil
}

func (s *Session) linkExists(ctx context.Context, id int64) (bool, error) {
	count, err := s.q.From(linksTable).Where(goqu.Ex{"id": id}).CountContext(ctx)
	if err != nil {
		return false, storageErr("check link", err)
	}
	return count > 0, nil
}

func (s *Session) CreateLink(ctx context.Context, in LinkInput) (*internal.Link, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	exists, err := s.partnerExists(ctx, in.PartnerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &internal.ReferenceError{Entity: "partner", Field: "partner_id", ID: in.PartnerID}
	}
	if in.Status == "" {
		in.Status = internal.LinkActive
	}

	ts := now()
	res, err := s.q.Insert(linksTable).Rows(goqu.Record{
		"partner_id":      in.PartnerID,
		"brand_name":      in.BrandName,
		"product_name":    nullable(in.ProductName),
		"affiliate_url":   in.AffiliateURL,
		"original_url":    nullable(in.OriginalURL),
		"commission_rate": in.CommissionRate,
		"status":          string(in.Status),
		"created_at":      ts,
		"updated_at":      ts,
	}).Executor().ExecContext(ctx)
	if err != nil {
		return nil, storageErr("insert link", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("insert link", err)
	}

	zerolog.Ctx(ctx).Info().Int64("link_id", id).Int64("partner_id", in.PartnerID).Msg("link created")
	return s.GetLink(ctx, id)
}

func (s *Session) UpdateLink(ctx context.Context, id int64, in LinkUpdate) (*internal.Link, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	exists, err := s.linkExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &internal.NotFoundError{Entity: "link", ID: id}
	}

	record := goqu.Record{"updated_at": now()}
	setIf(record, "brand_name", in.BrandName)
	setIf(record, "product_name", in.ProductName)
	setIf(record, "affiliate_url", in.AffiliateURL)
	setIf(record, "original_url", in.OriginalURL)
	setIf(record, "commission_rate", in.CommissionRate)
	setIf(record, "status", in.Status)

	_, err = s.q.Update(linksTable).Set(record).Where(goqu.Ex{"id": id}).Executor().ExecContext(ctx)
	if err != nil {
		return nil, storageErr("update link", err)
	}

	zerolog.Ctx(ctx).Info().Int64("link_id", id).Msg("link updated")
	return s.GetLink(ctx, id)
}

// DeleteLink removes the link together with its clicks and transactions.
func (s *Session) DeleteLink(ctx context.Context, id int64) error {
	exists, err := s.linkExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return &internal.NotFoundError{Entity: "link", ID: id}
	}

	if err := s.deleteLinkEvents(ctx, goqu.Ex{"link_id": id}); err != nil {
		return err
	}
	if _, err := s.q.Delete(linksTable).Where(goqu.Ex{"id": id}).Executor().ExecContext(ctx); err != nil {
		return storageErr("delete link", err)
	}

	zerolog.Ctx(ctx).Info().Int64("link_id", id).Msg("link deleted")
	return nil
}

// deleteLinkEvents removes the transactions and clicks whose link_id matches
// cond.
func (s *Session) deleteLinkEvents(ctx context.Context, cond exp.Expression) error {
	if _, err := s.q.Delete(transactionsTable).Where(cond).Executor().ExecContext(ctx); err != nil {
		return storageErr("delete transactions", err)
	}
	if _, err := s.q.Delete(clicksTable).Where(cond).Executor().ExecContext(ctx); err != nil {
		return storageErr("delete clicks", err)
	}
	return nil
}

func (r *linkRow) toDomain() *internal.Link {
	return &internal.Link{
		ID:             r.ID,
		PartnerID:      r.PartnerID,
		PartnerName:    r.PartnerName,
		BrandName:      r.BrandName,
		ProductName:    r.ProductName,
		AffiliateURL:   r.AffiliateURL,
		OriginalURL:    r.OriginalURL,
		CommissionRate: r.CommissionRate,
		Status:         internal.LinkStatus(r.Status),
		CreatedAt:      r.CreatedAt.Time(),
		UpdatedAt:      r.UpdatedAt.Time(),
	}
}

func (s *Store) ListLinks(ctx context.Context, filter LinkFilter) ([]*internal.Link, error) {
	return s.read().ListLinks(ctx, filter)
}

func (s *Store) GetLink(ctx context.Context, id int64) (*internal.Link, error) {
	return s.read().GetLink(ctx, id)
}

func (s *Store) CreateLink(ctx context.Context, in LinkInput) (*internal.Link, error) {
	return inTx(ctx, s, func(sess *Session) (*internal.Link, error) {
		return sess.CreateLink(ctx, in)
	})
}

func (s *Store) UpdateLink(ctx context.Context, id int64, in LinkUpdate) (*internal.Link, error) {
	return inTx(ctx, s, func(sess *Session) (*internal.Link, error) {
		return sess.UpdateLink(ctx, id, in)
	})
}

func (s *Store) DeleteLink(ctx context.Context, id int64) error {
	return s.InTx(ctx, func(sess *Session) error {
		return sess.DeleteLink(ctx, id)
	})
}
