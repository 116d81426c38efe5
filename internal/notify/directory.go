package notify

import (
	"context"

	"investment-core/pkg/db"
)

// DBDirectory resolves recipients from the users table.
type DBDirectory struct {
	q *db.Queries
}

// NewDBDirectory creates a directory backed by q.
func NewDBDirectory(q *db.Queries) *DBDirectory {
	return &DBDirectory{q: q}
}

// AdminIDs returns every admin user id.
func (d *DBDirectory) AdminIDs(ctx context.Context) ([]string, error) {
	return d.q.ListUserIDsByRole(ctx, "admin")
}

// Email returns the address of a user.
func (d *DBDirectory) Email(ctx context.Context, userID string) (string, error) {
	u, err := d.q.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}
