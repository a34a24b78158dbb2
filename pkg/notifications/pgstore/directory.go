package pgstore

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/hrnotify/pkg/notifications"
	"github.com/dmitrymomot/hrnotify/pkg/pg"
)

// DefaultContactQuery reads contact data from the HR users table. It must
// select email, phone and full name for the user id in $1.
const DefaultContactQuery = `SELECT email, phone, full_name FROM users WHERE id = $1`

// Directory is a notifications.ContactDirectory over the HR database.
type Directory struct {
	db    DB
	query string
}

// NewDirectory creates a directory. An empty query uses DefaultContactQuery.
func NewDirectory(db DB, query string) *Directory {
	if query == "" {
		query = DefaultContactQuery
	}
	return &Directory{db: db, query: query}
}

func (d *Directory) GetUserContact(ctx context.Context, userID int64) (notifications.Contact, error) {
	var email, phone, name *string
	err := d.db.QueryRow(ctx, d.query, userID).Scan(&email, &phone, &name)
	if pg.IsNotFoundError(err) {
		return notifications.Contact{}, notifications.ErrUserNotFound
	}
	if err != nil {
		return notifications.Contact{}, fmt.Errorf("get user contact: %w", err)
	}
	return notifications.Contact{Email: deref(email), Phone: deref(phone), FullName: deref(name)}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
