package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/abdusco/affiliated/internal"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const dialect = "sqlite3"

const (
	partnersTable     = "affiliate_partners"
	linksTable        = "affiliate_links"
	clicksTable       = "click_events"
	transactionsTable = "transactions"
)

// querier is satisfied by both *goqu.Database and *goqu.TxDatabase.
type querier interface {
	From(from ...any) *goqu.SelectDataset
	Insert(table any) *goqu.InsertDataset
	Update(table any) *goqu.UpdateDataset
	Delete(table any) *goqu.DeleteDataset
}

// Store is the entry point to persisted partners, links, clicks and
// transactions. Reads run on the shared connection pool; every write runs in
// its own transaction.
type Store struct {
	db *goqu.Database
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: goqu.New(dialect, db)}
}

// Session runs queries against either the pool or an open transaction.
type Session struct {
	q querier
}

func (s *Store) read() *Session {
	return &Session{q: s.db}
}

// InTx runs fn inside a transaction that is committed when fn returns nil and
// rolled back when it returns an error or panics.
func (s *Store) InTx(ctx context.Context, fn func(sess *Session) error) error {
	return s.runTx(ctx, nil, fn)
}

// inReadTx runs fn against a single read snapshot of the database.
func (s *Store) inReadTx(ctx context.Context, fn func(sess *Session) error) error {
	return s.runTx(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (s *Store) runTx(ctx context.Context, opts *sql.TxOptions, fn func(sess *Session) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return storageErr("begin transaction", err)
	}

	var fnErr error
	err = tx.Wrap(func() error {
		fnErr = fn(&Session{q: tx})
		return fnErr
	})
	if err == nil {
		return nil
	}

	if fnErr != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("transaction rolled back")
		return wrapStorage("rollback transaction", err)
	}
	zerolog.Ctx(ctx).Error().Err(err).Msg("transaction commit failed")
	return storageErr("commit transaction", err)
}

func inTx[T any](ctx context.Context, s *Store, fn func(sess *Session) (T, error)) (T, error) {
	var out T
	err := s.InTx(ctx, func(sess *Session) error {
		var err error
		out, err = fn(sess)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func storageErr(op string, err error) error {
	return &internal.StorageError{Op: op, Err: err}
}

// wrapStorage leaves taxonomy errors untouched and wraps everything else as a
// StorageError.
func wrapStorage(op string, err error) error {
	if internal.Kind(err) != internal.KindStorage {
		return err
	}
	var storage *internal.StorageError
	if errors.As(err, &storage) {
		return err
	}
	return storageErr(op, err)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return internal.NewValidationError(err.Error())
	}

	missing := lo.FilterMap(fieldErrs, func(fe validator.FieldError, _ int) (string, bool) {
		return fe.Field(), fe.Tag() == "required"
	})
	invalid := lo.FilterMap(fieldErrs, func(fe validator.FieldError, _ int) (string, bool) {
		return fmt.Sprintf("%s (%s)", fe.Field(), describeTag(fe)), fe.Tag() != "required"
	})

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(invalid, ", "))
	}

	fields := lo.Map(fieldErrs, func(fe validator.FieldError, _ int) string { return fe.Field() })
	return internal.NewValidationError(strings.Join(parts, "; "), fields...)
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "min":
		return "must not be empty"
	case "max", "len":
		return fe.Tag() + " " + fe.Param()
	default:
		return fe.Tag()
	}
}
