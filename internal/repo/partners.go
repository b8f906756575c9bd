package repo

import (
	"context"

	"github.com/abdusco/affiliated/internal"
	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog"
)

type PartnerInput struct {
	Name      string                 `json:"name" validate:"required"`
	Platform  string                 `json:"platform" validate:"required"`
	Username  *string                `json:"username"`
	APIKey    *string                `json:"api_key"`
	APISecret *string                `json:"api_secret"`
	Status    internal.PartnerStatus `json:"status" validate:"omitempty,oneof=active inactive pending"`
}

type PartnerUpdate struct {
	Name      *string                 `json:"name" validate:"omitnil,min=1"`
	Platform  *string                 `json:"platform" validate:"omitnil,min=1"`
	Username  *string                 `json:"username"`
	APIKey    *string                 `json:"api_key"`
	APISecret *string                 `json:"api_secret"`
	Status    *internal.PartnerStatus `json:"status" validate:"omitnil,oneof=active inactive pending"`
}

type partnerRow struct {
	ID          int64   `db:"id"`
	Name        string  `db:"name"`
	Platform    string  `db:"platform"`
	Username    *string `db:"username"`
	APIKey      *string `db:"api_key"`
	APISecret   *string `db:"api_secret"`
	Status      string  `db:"status"`
	CreatedAt   Date    `db:"created_at"`
	UpdatedAt   Date    `db:"updated_at"`
	TotalLinks  int64   `db:"total_links"`
	ActiveLinks int64   `db:"active_links"`
}

func (s *Session) partnersQuery() *goqu.SelectDataset {
	return s.q.From(partnersTable).Select(
		"id", "name", "platform", "username", "api_key", "api_secret",
		"status", "created_at", "updated_at",
		goqu.L("(SELECT COUNT(*) FROM affiliate_links WHERE affiliate_links.partner_id = affiliate_partners.id)").
			As("total_links"),
		goqu.L("(SELECT COUNT(*) FROM affiliate_links WHERE affiliate_links.partner_id = affiliate_partners.id AND affiliate_links.status = ?)", string(internal.LinkActive)).
			As("active_links"),
	)
}

func (s *Session) ListPartners(ctx context.Context) ([]*internal.Partner, error) {
	var rows []partnerRow
	err := s.partnersQuery().Order(goqu.C("id").Asc()).ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, storageErr("list partners", err)
	}

	partners := make([]*internal.Partner, len(rows))
	for i := range rows {
		partners[i] = rows[i].toDomain()
	}
	return partners, nil
}

func (s *Session) GetPartner(ctx context.Context, id int64) (*internal.Partner, error) {
	var row partnerRow
	found, err := s.partnersQuery().Where(goqu.Ex{"id": id}).ScanStructContext(ctx, &row)
	if err != nil {
		return nil, storageErr("get partner", err)
	}
	if !found {
		return nil, &internal.NotFoundError{Entity: "partner", ID: id}
	}
	return row.toDomain(), nil
}

func (s *Session) partnerExists(ctx context.Context, id int64) (bool, error) {
	count, err := s.q.From(partnersTable).Where(goqu.Ex{"id": id}).CountContext(ctx)
	if err != nil {
		return false, storageErr("check partner", err)
	}
	return count > 0, nil
}

func (s *Session) CreatePartner(ctx context.Context, in PartnerInput) (*internal.Partner, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = internal.PartnerActive
	}

	ts := now()
	res, err := s.q.Insert(partnersTable).Rows(goqu.Record{
		"name":       in.Name,
		"platform":   in.Platform,
		"username":   nullable(in.Username),
		"api_key":    nullable(in.APIKey),
		"api_secret": nullable(in.APISecret),
		"status":     string(in.Status),
		"created_at": ts,
		"updated_at": ts,
	}).Executor().ExecContext(ctx)
	if err != nil {
		return nil, storageErr("insert partner", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("insert partner", err)
	}

	zerolog.Ctx(ctx).Info().Int64("partner_id", id).Str("name", in.Name).Msg("partner created")
	return s.GetPartner(ctx, id)
}

func (s *Session) UpdatePartner(ctx context.Context, id int64, in PartnerUpdate) (*internal.Partner, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	exists, err := s.partnerExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &internal.NotFoundError{Entity: "partner", ID: id}
	}

	record := goqu.Record{"updated_at": now()}
	setIf(record, "name", in.Name)
	setIf(record, "platform", in.Platform)
	setIf(record, "username", in.Username)
	setIf(record, "api_key", in.APIKey)
	setIf(record, "api_secret", in.APISecret)
	setIf(record, "status", in.Status)

	_, err = s.q.Update(partnersTable).Set(record).Where(goqu.Ex{"id": id}).Executor().ExecContext(ctx)
	if err != nil {
		return nil, storageErr("update partner", err)
	}

	zerolog.Ctx(ctx).Info().Int64("partner_id", id).Msg("partner updated")
	return s.GetPartner(ctx, id)
}

// DeletePartner removes the partner together with its links and their clicks
// and transactions.
func (s *Session) DeletePartner(ctx context.Context, id int64) error {
	exists, err := s.partnerExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return &internal.NotFoundError{Entity: "partner", ID: id}
	}

	linkIDs := s.q.From(linksTable).Select("id").Where(goqu.Ex{"partner_id": id})
	if err := s.deleteLinkEvents(ctx, goqu.C("link_id").In(linkIDs)); err != nil {
		return err
	}

	if _, err := s.q.Delete(linksTable).Where(goqu.Ex{"partner_id": id}).Executor().ExecContext(ctx); err != nil {
		return storageErr("delete partner links", err)
	}
	if _, err := s.q.Delete(partnersTable).Where(goqu.Ex{"id": id}).Executor().ExecContext(ctx); err != nil {
		return storageErr("delete partner", err)
	}

	zerolog.Ctx(ctx).Info().Int64("partner_id", id).Msg("partner deleted")
	return nil
}

// setIf adds column to record when v is set.
func setIf[T any](record goqu.Record, column string, v *T) {
	if v != nil {
		record[column] = *v
	}
}

func (r *partnerRow) toDomain() *internal.Partner {
	return &internal.Partner{
		ID:          r.ID,
		Name:        r.Name,
		Platform:    r.Platform,
		Username:    r.Username,
		APIKey:      r.APIKey,
		APISecret:   r.APISecret,
		Status:      internal.PartnerStatus(r.Status),
		CreatedAt:   r.CreatedAt.Time(),
		UpdatedAt:   r.UpdatedAt.Time(),
		TotalLinks:  r.TotalLinks,
		ActiveLinks: r.ActiveLinks,
	}
}

func (s *Store) ListPartners(ctx context.Context) ([]*internal.Partner, error) {
	return s.read().ListPartners(ctx)
}

func (s *Store) GetPartner(ctx context.Context, id int64) (*internal.Partner, error) {
	return s.read().GetPartner(ctx, id)
}

func (s *Store) CreatePartner(ctx context.Context, in PartnerInput) (*internal.Partner, error) {
	return inTx(ctx, s, func(sess *Session) (*internal.Partner, error) {
		return sess.CreatePartner(ctx, in)
	})
}

func (s *Store) UpdatePartner(ctx context.Context, id int64, in PartnerUpdate) (*internal.Partner, error) {
	return inTx(ctx, s, func(sess *Session) (*internal.Partner, error) {
		return sess.UpdatePartner(ctx, id, in)
	})
}

func (s *Store) DeletePartner(ctx context.Context, id int64) error {
	return s.InTx(ctx, func(sess *Session) error {
		return sess.DeletePartner(ctx, id)
	})
}
