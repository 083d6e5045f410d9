package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"storefront/internal/domain"
)

const uniqueViolation = "23505"

// translate maps driver errors onto the domain taxonomy. Errors it does not
// recognise are returned unchanged.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errors.Join(domain.ErrConflict, err)
	}
	return err
}
