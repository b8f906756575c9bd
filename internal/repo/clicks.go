package repo

import (
	"context"

	"github.com/abdusco/affiliated/internal"
	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog"
)

type ClickInput struct {
	IPAddress *string `json:"ip_address" validate:"omitnil,max=45"`
	UserAgent *string `json:"user_agent"`
	Referrer  *string `json:"referrer"`
}

type clickRow struct {
	ID        int64   `db:"id"`
	LinkID    int64   `db:"link_id"`
	IPAddress *string `db:"ip_address"`
	UserAgent *string `db:"user_agent"`
	Referrer  *string `db:"referrer"`
	ClickedAt Date    `db:"clicked_at"`
}

func (s *Session) clicksQuery() *goqu.SelectDataset {
	return s.q.From(clicksTable).Select("id", "link_id", "ip_address", "user_agent", "referrer", "clicked_at")
}

// RecordClick stores a click on the link and returns it together with the
// affiliate URL the visitor should be sent to.
func (s *Session) RecordClick(ctx context.Context, linkID int64, in ClickInput) (*internal.ClickEvent, string, error) {
	if err := validateInput(in); err != nil {
		return nil, "", err
	}

	var target string
	found, err := s.q.From(linksTable).Select("affiliate_url").Where(goqu.Ex{"id": linkID}).ScanValContext(ctx, &target)
	if err != nil {
		return nil, "", storageErr("get link", err)
	}
	if !found {
		return nil, "", &internal.NotFoundError{Entity: "link", ID: linkID}
	}

	res, err := s.q.Insert(clicksTable).Rows(goqu.Record{
		"link_id":    linkID,
		"ip_address": nullable(in.IPAddress),
		"user_agent": nullable(in.UserAgent),
		"referrer":   nullable(in.Referrer),
		"clicked_at": now(),
	}).Executor().ExecContext(ctx)
	if err != nil {
		return nil, "", storageErr("insert click", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, "", storageErr("insert click", err)
	}

	click, err := s.GetClick(ctx, id)
	if err != nil {
		return nil, "", err
	}

	zerolog.Ctx(ctx).Debug().Int64("link_id", linkID).Int64("click_id", id).Msg("click recorded")
	return click, target, nil
}

func (s *Session) GetClick(ctx context.Context, id int64) (*internal.ClickEvent, error) {
	var row clickRow
	found, err := s.clicksQuery().Where(goqu.Ex{"id": id}).ScanStructContext(ctx, &row)
	if err != nil {
		return nil, storageErr("get click", err)
	}
	if !found {
		return nil, &internal.NotFoundError{Entity: "click", ID: id}
	}
	return row.toDomain(), nil
}

// ListClicks returns the clicks of a link, newest first.
func (s *Session) ListClicks(ctx context.Context, linkID int64) ([]*internal.ClickEvent, error) {
	exists, err := s.linkExists(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &internal.NotFoundError{Entity: "link", ID: linkID}
	}
	return s.clicks(ctx, s.clicksQuery().Where(goqu.Ex{"link_id": linkID}))
}

func (s *Session) recentClicks(ctx context.Context, limit uint) ([]*internal.ClickEvent, error) {
	return s.clicks(ctx, s.clicksQuery().Limit(limit))
}

func (s *Session) clicks(ctx context.Context, query *goqu.SelectDataset) ([]*internal.ClickEvent, error) {
	var rows []clickRow
	err := query.Order(goqu.C("clicked_at").Desc(), goqu.C("id").Desc()).ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, storageErr("list clicks", err)
	}

	clicks := make([]*internal.ClickEvent, len(rows))
	for i := range rows {
		clicks[i] = rows[i].toDomain()
	}
	return clicks, nil
}

func (r *clickRow) toDomain() *internal.ClickEvent {
	return &internal.ClickEvent{
		ID:        r.ID,
		LinkID:    r.LinkID,
		IPAddress: r.IPAddress,
		UserAgent: r.UserAgent,
		Referrer:  r.Referrer,
		ClickedAt: r.ClickedAt.Time(),
	}
}

// RecordClick commits the click before returning the redirect target, so a
// returned URL always corresponds to a stored click.
func (s *Store) RecordClick(ctx context.Context, linkID int64, in ClickInput) (*internal.ClickEvent, string, error) {
	var (
		click  *internal.ClickEvent
		target string
	)
	err := s.InTx(ctx, func(sess *Session) error {
		var err error
		click, target, err = sess.RecordClick(ctx, linkID, in)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return click, target, nil
}

func (s *Store) GetClick(ctx context.Context, id int64) (*internal.ClickEvent, error) {
	return s.read().GetClick(ctx, id)
}

func (s *Store) ListClicks(ctx context.Context, linkID int64) ([]*internal.ClickEvent, error) {
	return s.read().ListClicks(ctx, linkID)
}
