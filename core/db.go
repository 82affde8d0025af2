package core

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
	DBExecutor interface {
		sqlx.ExtContext
	}

	DB interface {
		DBExecutor

		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
		Close() error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderByClause joins the orderings whose field is in `allowed` (column names), dropping the others.
func OrderByClause(orderings []DBOrdering, allowed ...string) string {
	cols := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		cols[a] = struct{}{}
	}
	parts := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if _, ok := cols[ord.Field]; ok {
			parts = append(parts, ord.String())
		}
	}
	return strings.Join(parts, ", ")
}
