package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enisar25/SocialApp/internal/chat"
)

// PostgresDirectory reads the account tables maintained by the surrounding
// application. The gateway never writes here.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

var _ chat.Directory = (*PostgresDirectory)(nil)

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) FindByID(ctx context.Context, id string) (*chat.User, error) {
	user := &chat.User{}
	err := d.pool.QueryRow(ctx, `
		SELECT id, username, verified
		FROM users WHERE id = $1
	`, id).Scan(&user.ID, &user.Username, &user.Verified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, chat.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (d *PostgresDirectory) Missing(ctx context.Context, ids []string) ([]string, error) {
	rows, err := d.pool.Query(ctx, `SELECT id FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("check participants: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{}, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		known[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("check participants: %w", err)
	}

	var missing []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (d *PostgresDirectory) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var ok bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM friendships
			WHERE (user_a = $1 AND user_b = $2) OR (user_a = $2 AND user_b = $1)
		)
	`, a, b).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return ok, nil
}
