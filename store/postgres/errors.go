// server/store/postgres/errors.go
package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vinizap/memo/server/store"
)

// mapError translates driver errors into store sentinels, keeping the
// original error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %w", store.ErrDuplicate, err)
		case pgerrcode.CheckViolation:
			return fmt.Errorf("%w: check %s: %w", store.ErrInvalid, pgErr.ConstraintName, err)
		case pgerrcode.NotNullViolation:
			return fmt.Errorf("%w: column %s: %w", store.ErrInvalid, pgErr.ColumnName, err)
		case pgerrcode.StringDataRightTruncationDataException, pgerrcode.InvalidTextRepresentation:
			return fmt.Errorf("%w: %w", store.ErrInvalid, err)
		}
	}
	return err
}
