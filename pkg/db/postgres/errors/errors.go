package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"

	"github.com/spacefab/spacefab/pkg/domain"
)

// requested record is missing.
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}
func (m Missing) Unwrap() error {
	return domain.ErrMissing
}

// requested change conflicts with the stored record.
type Conflict struct {
	Table    string
	Identity string
	Reason   string
}

var _ error = Conflict{}

func (c Conflict) Error() string {
	return fmt.Sprintf("%s in %s: %s", c.Identity, c.Table, c.Reason)
}
func (c Conflict) Unwrap() error {
	return domain.ErrConflict
}

// AsConflict converts postgres integrity violations into Conflict.
//
// Other errors pass through unchanged.
func AsConflict(err error, table string, identity string) error {
	pgErr := &pgconn.PgError{}
	if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
		return Conflict{Table: table, Identity: identity, Reason: pgErr.Message}
	}
	return err
}
