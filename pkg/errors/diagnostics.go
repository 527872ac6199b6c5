package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Diagnostics is the log-only view of an error. It never reaches a response body.
type Diagnostics struct {
	Message string
	Code    Code
	Chain   []string

	SQLState   string
	Constraint string
	Table      string
	Detail     string
}

// Diagnose walks err's chain and lifts Postgres details from either driver.
func Diagnose(err error) Diagnostics {
	if err == nil {
		return Diagnostics{}
	}
	d := Diagnostics{Message: err.Error(), Code: CodeOf(err)}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T", e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		d.SQLState, d.Constraint, d.Table, d.Detail = pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.Detail
	case stdErrors.As(err, &pqErr):
		d.SQLState, d.Constraint, d.Table, d.Detail = string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Detail
	}
	return d
}

// Fields flattens the diagnostics into log fields, skipping empty values.
func (d Diagnostics) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.Message,
		"error_code":  string(d.Code),
		"error_chain": d.Chain,
	}
	for key, val := range map[string]string{
		"pg_code":       d.SQLState,
		"pg_constraint": d.Constraint,
		"pg_table":      d.Table,
		"pg_detail":     d.Detail,
	} {
		if val != "" {
			fields[key] = val
		}
	}
	return fields
}
