package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"mediumpilot/internal/domain"
	"strings"
	"time"
)

var ErrUserNotFound = domain.ErrUserNotFound

func (d *Database) RegisterUser(ctx context.Context, cfg domain.UserConfig) error {
	userID := strings.TrimSpace(cfg.UserID)
	if userID == "" {
		return errors.New("user ID is empty")
	}

	query := `insert into users (user_id, feed_url, social_token, social_actor_id, last_published_url)
	values (?, ?, ?, ?, '')
	on conflict (user_id) do update
	set feed_url = excluded.feed_url,
	social_token = excluded.social_token,
	social_actor_id = excluded.social_actor_id,
	last_published_url = '',
	updated_at = current_timestamp`

	_, err := d.db.ExecContext(ctx, query,
		userID,
		strings.TrimSpace(cfg.FeedURL),
		strings.TrimSpace(cfg.SocialToken),
		strings.TrimSpace(cfg.SocialActorID))
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}

	return nil
}

func (d *Database) ListUserIDs(ctx context.Context) ([]string, error) {
	query := "select user_id from users order by created_at, user_id"

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "ListUserIDs")
		}
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return ids, nil
}

// GetUserConfig returns nil without an error when the user is unknown.
func (d *Database) GetUserConfig(ctx context.Context, userID string) (*domain.UserConfig, error) {
	query := `select user_id, feed_url, social_token, social_actor_id, last_published_url
	from users
	where user_id = ?`

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"userID", userID,
				"operation", "GetUserConfig")
		}
	}()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate rows: %w", err)
		}
		return nil, nil
	}

	var cfg domain.UserConfig
	if err = rows.Scan(
		&cfg.UserID,
		&cfg.FeedURL,
		&cfg.SocialToken,
		&cfg.SocialActorID,
		&cfg.LastPublishedURL,
	); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	cfg.FeedURL = strings.TrimSpace(cfg.FeedURL)

	return &cfg, nil
}

func (d *Database) SetLastPublished(ctx context.Context, userID string, link string) error {
	query := `update users
	set last_published_url = ?, updated_at = current_timestamp
	where user_id = ?`

	res, err := d.db.ExecContext(ctx, query, link, userID)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("set last published (userID = %s): %w", userID, ErrUserNotFound)
	}

	return nil
}

// AcquireLease takes the per-user publish lease for owner. It succeeds when
// the lease is free, expired, or already held by owner. An unknown user is
// reported as ErrUserNotFound.
func (d *Database) AcquireLease(
	ctx context.Context,
	userID string,
	owner string,
	ttl time.Duration,
) (bool, error) {
	now := d.now()

	query := `update users
	set lease_owner = ?, lease_until = ?
	where user_id = ?
	and (lease_owner = '' or lease_owner = ? or lease_until <= ?)`

	res, err := d.db.ExecContext(ctx, query,
		owner,
		now.Add(ttl).UnixMilli(),
		userID,
		owner,
		now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("execute query: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get affected rows: %w", err)
	}
	if affected == 1 {
		return true, nil
	}

	exists, err := d.userExists(ctx, userID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("acquire lease (userID = %s): %w", userID, ErrUserNotFound)
	}

	return false, nil
}

func (d *Database) userExists(ctx context.Context, userID string) (bool, error) {
	query := "select 1 from users where user_id = ?"

	var one int
	err := d.db.QueryRowContext(ctx, query, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("execute query: %w", err)
	}

	return true, nil
}

func (d *Database) ReleaseLease(ctx context.Context, userID string, owner string) error {
	query := `update users
	set lease_owner = '', lease_until = 0
	where user_id = ? and lease_owner = ?`

	if _, err := d.db.ExecContext(ctx, query, userID, owner); err != nil {
		return fmt.Errorf("execute query: %w", err)
	}

	return nil
}
