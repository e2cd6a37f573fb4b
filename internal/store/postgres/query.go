package postgres

import (
	"fmt"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// ownerQuery appends the owner, time and pagination clauses of opts to a
// SELECT whose WHERE clause is already open.
func ownerQuery(base, owner string, opts domain.ListOpts) (string, []any) {
	query := base
	args := []any{}
	argIdx := 1

	if owner != "" {
		query += fmt.Sprintf(" AND owner = $%d", argIdx)
		args = append(args, owner)
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}
