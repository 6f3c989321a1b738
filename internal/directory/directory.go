// Package directory resolves preferred contact addresses for applicants from
// the institution's recipient table. It is optional wiring: when the database
// is absent the dispatcher simply uses the address on the application.
package directory

import (
	"context"
	"database/sql"
	"fmt"

	"admission-orchestrator/internal/common/logger"
)

type Directory struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Directory {
	return &Directory{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "directory"}),
	}
}

// Lookup returns the preferred contact address registered for the given
// applicant email. sql.ErrNoRows is surfaced to the caller, which falls back
// to the applicant's own address.
func (d *Directory) Lookup(ctx context.Context, email string) (string, error) {
	var contact string
	query := `SELECT preferred_contact FROM recipients WHERE applicant_email = $1`

	if err := d.db.QueryRowContext(ctx, query, email).Scan(&contact); err != nil {
		if err != sql.ErrNoRows {
			d.logger.Warn("directory lookup failed", map[string]interface{}{
				"email": email,
				"error": err,
			})
		}
		return "", fmt.Errorf("lookup contact for %s: %w", email, err)
	}
	return contact, nil
}
