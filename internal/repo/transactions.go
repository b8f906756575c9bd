package repo

import (
	"context"

	"github.com/abdusco/affiliated/internal"
	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/rs/zerolog"
)

type TransactionInput struct {
	LinkID          int64                      `json:"link_id" validate:"required"`
	OrderID         *string                    `json:"order_id"`
	AmountCollected float64                    `json:"amount_collected"`
	AmountPaid      float64                    `json:"amount_paid"`
	Currency        string                     `json:"currency" validate:"omitempty,len=3"`
	Status          internal.TransactionStatus `json:"status" validate:"omitempty,oneof=pending paid cancelled"`
	Notes           *string                    `json:"notes"`
}

type TransactionUpdate struct {
	Status     *internal.TransactionStatus `json:"status" validate:"omitnil,oneof=pending paid cancelled"`
	AmountPaid *float64                    `json:"amount_paid"`
	Notes      *string                     `json:"notes"`
}

type TransactionFilter struct {
	LinkID *int64
	Status *internal.TransactionStatus
}

type transactionRow struct {
	ID              int64   `db:"id"`
	LinkID          int64   `db:"link_id"`
	BrandName       string  `db:"brand_name"`
	OrderID         *string `db:"order_id"`
	AmountCollected float64 `db:"amount_collected"`
	AmountPaid      float64 `db:"amount_paid"`
	Currency        string  `db:"currency"`
	Status          string  `db:"status"`
	TransactionDate Date    `db:"transaction_date"`
	PayoutDate      *Date   `db:"payout_date"`
	Notes           *string `db:"notes"`
}

func (s *Session) transactionsQuery() *goqu.SelectDataset {
	return s.q.From(goqu.T(transactionsTable).As("t")).
		LeftJoin(goqu.T(linksTable).As("l"), goqu.On(goqu.I("l.id").Eq(goqu.I("t.link_id")))).
		Select(
			goqu.I("t.id").As("id"),
			goqu.I("t.link_id").As("link_id"),
			goqu.COALESCE(goqu.I("l.brand_name"), "").As("brand_name"),
			goqu.I("t.order_id").As("order_id"),
			goqu.I("t.amount_collected").As("amount_collected"),
			goqu.I("t.amount_paid").As("amount_paid"),
			goqu.I("t.currency").As("currency"),
			goqu.I("t.status").As("status"),
			goqu.I("t.transaction_date").As("transaction_date"),
			goqu.I("t.payout_date").As("payout_date"),
			goqu.I("t.notes").As("notes"),
		)
}

func (f TransactionFilter) conditions() []exp.Expression {
	var conds []exp.Expression
	if f.LinkID != nil {
		conds = append(conds, goqu.I("t.link_id").Eq(*f.LinkID))
	}
	if f.Status != nil {
		conds = append(conds, goqu.I("t.status").Eq(string(*f.Status)))
	}
	return conds
}

// ListTransactions returns transactions matching every set filter field,
// newest transaction_date first.
func (s *Session) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*internal.Transaction, error) {
	return s.transactions(ctx, s.transactionsQuery().Where(filter.conditions()...))
}

func (s *Session) recentTransactions(ctx context.Context, limit uint) ([]*internal.Transaction, error) {
	return s.transactions(ctx, s.transactionsQuery().Limit(limit))
}

func (s *Session) transactions(ctx context.Context, query *goqu.SelectDataset) ([]*internal.Transaction, error) {
	var rows []transactionRow
	err := query.Order(goqu.I("t.transaction_date").Desc(), goqu.I("t.id").Desc()).ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, storageErr("list transactions", err)
	}

	txs := make([]*internal.Transaction, len(rows))
	for i := range rows {
		txs[i] = rows[i].toDomain()
	}
	return txs, nil
}

func (s *Session) GetTransaction(ctx context.Context, id int64) (*internal.Transaction, error) {
	var row transactionRow
	found, err := s.transactionsQuery().Where(goqu.I("t.id").Eq(id)).ScanStructContext(ctx, &row)
	if err != nil {
		return nil, storageErr("get transaction", err)
	}
	if !found {
		return nil, &internal.NotFoundError{Entity: "transaction", ID: id}
	}
	return row.toDomain(), nil
}

func (s *Session) CreateTransaction(ctx context.Context, in TransactionInput) (*internal.Transaction, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	exists, err := s.linkExists(ctx, in.LinkID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &internal.ReferenceError{Entity: "link", Field: "link_id", ID: in.LinkID}
	}
	if in.Status == "" {
		in.Status = internal.TransactionPending
	}
	if in.Currency == "" {
		in.Currency = internal.DefaultCurrency
	}

	ts := now()
	record := goqu.Record{
		"link_id":          in.LinkID,
		"order_id":         nullable(in.OrderID),
		"amount_collected": in.AmountCollected,
		"amount_paid":      in.AmountPaid,
		"currency":         in.Currency,
		"status":           string(in.Status),
		"transaction_date": ts,
		"payout_date":      nil,
		"notes":            nullable(in.Notes),
	}
	if in.Status == internal.TransactionPaid {
		record["payout_date"] = ts
	}

	res, err := s.q.Insert(transactionsTable).Rows(record).Executor().ExecContext(ctx)
	if err != nil {
		return nil, storageErr("insert transaction", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("insert transaction", err)
	}

	zerolog.Ctx(ctx).Info().
		Int64("transaction_id", id).
		Int64("link_id", in.LinkID).
		Str("status", string(in.Status)).
		Msg("transaction created")
	return s.GetTransaction(ctx, id)
}

// UpdateTransaction applies the set fields. The payout date is stamped the
// first time the transaction becomes paid and kept from then on.
func (s *Session) UpdateTransaction(ctx context.Context, id int64, in TransactionUpdate) (*internal.Transaction, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	current, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	record := goqu.Record{}
	setIf(record, "status", in.Status)
	setIf(record, "amount_paid", in.AmountPaid)
	setIf(record, "notes", in.Notes)
	if in.Status != nil && *in.Status == internal.TransactionPaid && current.PayoutDate == nil {
		record["payout_date"] = now()
	}

	if len(record) == 0 {
		return current, nil
	}

	_, err = s.q.Update(transactionsTable).Set(record).Where(goqu.Ex{"id": id}).Executor().ExecContext(ctx)
	if err != nil {
		return nil, storageErr("update transaction", err)
	}

	zerolog.Ctx(ctx).Info().Int64("transaction_id", id).Msg("transaction updated")
	return s.GetTransaction(ctx, id)
}

func (r *transactionRow) toDomain() *internal.Transaction {
	return &internal.Transaction{
		ID:              r.ID,
		LinkID:          r.LinkID,
		BrandName:       r.BrandName,
		OrderID:         r.OrderID,
		AmountCollected: r.AmountCollected,
		AmountPaid:      r.AmountPaid,
		Currency:        r.Currency,
		Status:          internal.TransactionStatus(r.Status),
		TransactionDate: r.TransactionDate.Time(),
		PayoutDate:      datePtr(r.PayoutDate),
		Notes:           r.Notes,
	}
}

func (s *Store) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*internal.Transaction, error) {
	return s.read().ListTransactions(ctx, filter)
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (*internal.Transaction, error) {
	return s.read().GetTransaction(ctx, id)
}

func (s *Store) CreateTransaction(ctx context.Context, in TransactionInput) (*internal.Transaction, error) {
	return inTx(ctx, s, func(sess *Session) (*internal.Transaction, error) {
		return sess.CreateTransaction(ctx, in)
	})
}

func (s *Store) UpdateTransaction(ctx context.Context, id int64, in TransactionUpdate) (*internal.Transaction, error) {
	return inTx(ctx, s, func(sess *Session) (*internal.Transaction, error) {
		return sess.UpdateTransaction(ctx, id, in)
	})
}
