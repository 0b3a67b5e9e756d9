package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PostgresError is the driver-neutral part of a server error raised by pgx
// or lib/pq.
type PostgresError struct {
	Code       string
	Constraint string
	Table      string
	Detail     string
	Message    string
}

// Postgres finds the first Postgres server error in err's chain.
func Postgres(err error) (PostgresError, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return PostgresError{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return PostgresError{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}, true
	}
	return PostgresError{}, false
}

// ErrorDump is what the HTTP layer logs for a failed request.
type ErrorDump struct {
	TopMessage string
	Code       Code
	HTTPStatus int
	Retryable  bool
	// Chain lists each wrapped error as "type: message", depth first.
	Chain    []string
	Postgres *PostgresError
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Chain: chain(err, nil)}
	if te := As(err); te != nil {
		meta := MetadataFor(te.Code())
		d.Code = te.Code()
		d.HTTPStatus = meta.HTTPStatus
		d.Retryable = meta.Retryable
	}
	if pg, ok := Postgres(err); ok {
		d.Postgres = &pg
	}
	return d
}

// chain follows both single and joined wrapping.
func chain(err error, acc []string) []string {
	if err == nil {
		return acc
	}
	acc = append(acc, fmt.Sprintf("%T: %v", err, err))
	switch wrapped := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range wrapped.Unwrap() {
			acc = chain(inner, acc)
		}
	case interface{ Unwrap() error }:
		acc = chain(wrapped.Unwrap(), acc)
	}
	return acc
}

// Fields flattens the dump into logger fields. Postgres fields appear only
// when a server error is present.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error_chain": d.Chain}
	if d.Code != "" {
		fields["error_code"] = string(d.Code)
	}
	if pg := d.Postgres; pg != nil {
		fields["pg_code"] = pg.Code
		fields["pg_constraint"] = pg.Constraint
		fields["pg_table"] = pg.Table
		fields["pg_detail"] = pg.Detail
	}
	return fields
}
