package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/query"
)

const userColumns = `id, username, email, full_name, avatar, cover_image, password_hash, created_at, updated_at`

// PostgresUserRepository provides PostgreSQL-backed persistence for users,
// their refresh tokens, channel profiles and watch history.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, email, full_name, avatar, cover_image, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, user.ID, user.Username, user.Email, user.FullName, user.Avatar, user.CoverImage, user.Password, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID fetches a user by identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByUsernameOrEmail fetches the first user matching either value.
func (r *PostgresUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error) {
	return r.findOne(ctx, `
        SELECT `+userColumns+`
        FROM users
        WHERE (username = lower($1) AND $1 <> '') OR (email = lower($2) AND $2 <> '')
    `, username, email)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, sql string, args ...any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var user models.User
	row := conn.QueryRow(ctx, sql, args...)
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.Avatar,
		&user.CoverImage, &user.Password, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}

// UpdateAccount changes the mutable profile fields and returns the updated row.
func (r *PostgresUserRepository) UpdateAccount(ctx context.Context, userID, fullName, email string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var user models.User
	row := conn.QueryRow(ctx, `
        UPDATE users
        SET full_name = $2, email = lower($3), updated_at = now()
        WHERE id = $1
        RETURNING `+userColumns+`
    `, userID, fullName, email)
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.Avatar,
		&user.CoverImage, &user.Password, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.User{}, ErrConflict
		}
		return models.User{}, fmt.Errorf("update user account: %w", err)
	}

	return user, nil
}

// UpdatePassword replaces the stored password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, userID, passwordHash)
}

// UpdateAvatar stores a new avatar location and returns the updated row.
func (r *PostgresUserRepository) UpdateAvatar(ctx context.Context, userID, url string) (models.User, error) {
	if err := r.exec(ctx, `UPDATE users SET avatar = $2, updated_at = now() WHERE id = $1`, userID, url); err != nil {
		return models.User{}, err
	}
	return r.FindByID(ctx, userID)
}

// UpdateCoverImage stores a new cover image location and returns the updated row.
func (r *PostgresUserRepository) UpdateCoverImage(ctx context.Context, userID, url string) (models.User, error) {
	if err := r.exec(ctx, `UPDATE users SET cover_image = $2, updated_at = now() WHERE id = $1`, userID, url); err != nil {
		return models.User{}, err
	}
	return r.FindByID(ctx, userID)
}

func (r *PostgresUserRepository) exec(ctx context.Context, sql string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveRefreshToken stores the rotated refresh token for a user.
func (r *PostgresUserRepository) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return r.exec(ctx, `
        UPDATE users SET refresh_token = $2, refresh_expires_at = $3 WHERE id = $1
    `, userID, token, expiresAt.UTC())
}

// UserIDByRefreshToken resolves a refresh token to its user and expiry.
func (r *PostgresUserRepository) UserIDByRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var (
		userID    string
		expiresAt time.Time
	)
	row := conn.QueryRow(ctx, `
        SELECT id, refresh_expires_at FROM users WHERE refresh_token = $1
    `, token)
	if err := row.Scan(&userID, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, ErrNotFound
		}
		return "", time.Time{}, fmt.Errorf("select refresh token: %w", err)
	}

	return userID, expiresAt.UTC(), nil
}

// ClearRefreshToken removes the stored refresh token, ending the session.
func (r *PostgresUserRepository) ClearRefreshToken(ctx context.Context, userID string) error {
	return r.exec(ctx, `
        UPDATE users SET refresh_token = NULL, refresh_expires_at = NULL WHERE id = $1
    `, userID)
}

// ChannelProfile assembles the denormalised channel view for a username as
// seen by the viewer: subscriber counts plus whether the viewer subscribes.
func (r *PostgresUserRepository) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ChannelProfile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var profile models.ChannelProfile
	row := conn.QueryRow(ctx, `
        SELECT u.id, u.username, u.full_name, u.avatar, u.cover_image,
               (SELECT count(*) FROM subscriptions s WHERE s.channel_id = u.id) AS subscribers_count,
               (SELECT count(*) FROM subscriptions s WHERE s.subscriber_id = u.id) AS channels_subscribed_to_count,
               EXISTS (
                   SELECT 1 FROM subscriptions s
                   WHERE s.channel_id = u.id AND s.subscriber_id = $2
               ) AS is_subscribed
        FROM users u
        WHERE u.username = lower($1)
    `, username, viewerID)
	if err := row.Scan(&profile.ID, &profile.Username, &profile.FullName, &profile.Avatar,
		&profile.CoverImage, &profile.SubscribersCount, &profile.ChannelsSubscribedToCount,
		&profile.IsSubscribed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ChannelProfile{}, ErrNotFound
		}
		return models.ChannelProfile{}, fmt.Errorf("select channel profile: %w", err)
	}

	return profile, nil
}

// RecordWatch appends a video to the user's watch history, moving it to the
// front when it is already present.
func (r *PostgresUserRepository) RecordWatch(ctx context.Context, userID, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO watch_history (user_id, video_id, watched_at)
        VALUES ($1, $2, now())
        ON CONFLICT (user_id, video_id)
        DO UPDATE SET watched_at = EXCLUDED.watched_at
    `, userID, videoID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("record watch: %w", err)
	}

	return nil
}

// WatchHistory returns the user's most recently watched videos with nested
// owner details, newest first.
func (r *PostgresUserRepository) WatchHistory(ctx context.Context, userID string, opts query.Options) (query.Page[models.WatchEntry], error) {
	p := query.NewPipeline("watch_history",
		query.Join{Table: "videos", Alias: "v", LocalColumn: "watch_history.video_id", ForeignColumn: "v.id"},
		query.Join{Table: "users", Alias: "u", LocalColumn: "v.owner_id", ForeignColumn: "u.id"},
		query.Project{Columns: []query.Column{
			{Expr: "v.id"}, {Expr: "v.video_file"}, {Expr: "v.thumbnail"}, {Expr: "v.title"},
			{Expr: "v.description"}, {Expr: "v.duration"}, {Expr: "v.views"}, {Expr: "v.created_at"},
			{Expr: "u.id", Alias: "owner_id"}, {Expr: "u.username"}, {Expr: "u.avatar"},
			{Expr: "watch_history.watched_at"},
		}},
		query.Match{Cond: query.Eq{Column: "watch_history.user_id", Value: userID}},
		query.Sort{Column: "watch_history.watched_at", Descending: true},
	)

	return query.Paginate(ctx, r.pool, p, opts, func(row pgx.CollectableRow) (models.WatchEntry, error) {
		var (
			entry models.WatchEntry
			owner models.Owner
		)
		if err := row.Scan(&entry.Video.ID, &entry.Video.VideoFile, &entry.Video.Thumbnail,
			&entry.Video.Title, &entry.Video.Description, &entry.Video.Duration, &entry.Video.Views,
			&entry.Video.CreatedAt, &owner.ID, &owner.Username, &owner.Avatar, &entry.WatchedAt); err != nil {
			return models.WatchEntry{}, err
		}
		entry.Video.OwnerID = owner.ID
		entry.Video.Owner = &owner
		entry.Video.IsPublished = true
		return entry, nil
	})
}
