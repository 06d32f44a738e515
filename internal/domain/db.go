package domain

import "context"

// Database defines lifecycle operations for the server database.
type Database interface {
	Migrate(ctx context.Context) error
	Close() error
}
