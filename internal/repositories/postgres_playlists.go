package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/query"
)

// PostgresPlaylistRepository provides PostgreSQL-backed persistence for
// playlists and their video memberships.
type PostgresPlaylistRepository struct {
	pool db.Pool
}

// NewPostgresPlaylistRepository constructs a playlist repository backed by PostgreSQL.
func NewPostgresPlaylistRepository(pool db.Pool) *PostgresPlaylistRepository {
	return &PostgresPlaylistRepository{pool: pool}
}

// Create persists a new, empty playlist.
func (r *PostgresPlaylistRepository) Create(ctx context.Context, playlist models.Playlist) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO playlists (id, owner_id, name, description, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, playlist.ID, playlist.OwnerID, playlist.Name, playlist.Description, playlist.CreatedAt, playlist.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert playlist: %w", err)
	}

	return nil
}

// FindByID fetches the playlist header row; used for ownership checks.
func (r *PostgresPlaylistRepository) FindByID(ctx context.Context, id string) (models.Playlist, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var playlist models.Playlist
	row := conn.QueryRow(ctx, `
        SELECT id, owner_id, name, description, created_at, updated_at
        FROM playlists
        WHERE id = $1
    `, id)
	if err := row.Scan(&playlist.ID, &playlist.OwnerID, &playlist.Name, &playlist.Description,
		&playlist.CreatedAt, &playlist.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Playlist{}, ErrNotFound
		}
		return models.Playlist{}, fmt.Errorf("select playlist: %w", err)
	}

	return playlist, nil
}

// Detail returns the playlist with its owner projection and its videos in
// playlist order, each video carrying its own owner's public details.
func (r *PostgresPlaylistRepository) Detail(ctx context.Context, id string) (models.Playlist, error) {
	playlist, err := r.FindByID(ctx, id)
	if err != nil {
		return models.Playlist{}, err
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var owner models.Owner
	row := conn.QueryRow(ctx, `SELECT id, username, avatar FROM users WHERE id = $1`, playlist.OwnerID)
	if err := row.Scan(&owner.ID, &owner.Username, &owner.Avatar); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Playlist{}, ErrNotFound
		}
		return models.Playlist{}, fmt.Errorf("select playlist owner: %w", err)
	}
	playlist.Owner = &owner

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.title, v.thumbnail, v.duration, v.views, v.created_at,
               u.id, u.username, u.avatar
        FROM playlist_videos pv
        JOIN videos v ON pv.video_id = v.id
        JOIN users u ON v.owner_id = u.id
        WHERE pv.playlist_id = $1
        ORDER BY pv.position ASC
    `, id)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("query playlist videos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var video models.PlaylistVideo
		if err := rows.Scan(&video.ID, &video.Title, &video.Thumbnail, &video.Duration,
			&video.Views, &video.CreatedAt, &video.Owner.ID, &video.Owner.Username,
			&video.Owner.Avatar); err != nil {
			return models.Playlist{}, fmt.Errorf("scan playlist video: %w", err)
		}
		playlist.Videos = append(playlist.Videos, video)
	}
	if err := rows.Err(); err != nil {
		return models.Playlist{}, fmt.Errorf("iterate playlist videos: %w", err)
	}

	playlist.TotalVideos = len(playlist.Videos)
	return playlist, nil
}

// ListForUser returns a user's playlists with the computed totalVideos
// set-size, newest first.
func (r *PostgresPlaylistRepository) ListForUser(ctx context.Context, userID string, opts query.Options) (query.Page[models.Playlist], error) {
	p := query.NewPipeline("playlists",
		query.Project{Columns: []query.Column{
			{Expr: "playlists.id"}, {Expr: "playlists.name"}, {Expr: "playlists.description"},
			{Expr: "playlists.owner_id"}, {Expr: "playlists.created_at"}, {Expr: "playlists.updated_at"},
		}},
		query.AddField{
			Alias: "total_videos",
			Expr:  "SELECT count(*) FROM playlist_videos pv WHERE pv.playlist_id = playlists.id",
		},
		query.Match{Cond: query.Eq{Column: "playlists.owner_id", Value: userID}},
		query.Sort{Column: "playlists.created_at", Descending: true},
	)

	return query.Paginate(ctx, r.pool, p, opts, func(row pgx.CollectableRow) (models.Playlist, error) {
		var playlist models.Playlist
		if err := row.Scan(&playlist.ID, &playlist.Name, &playlist.Description, &playlist.OwnerID,
			&playlist.CreatedAt, &playlist.UpdatedAt, &playlist.TotalVideos); err != nil {
			return models.Playlist{}, err
		}
		return playlist, nil
	})
}

// Update changes a playlist's name and description.
func (r *PostgresPlaylistRepository) Update(ctx context.Context, id, name, description string) (models.Playlist, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var playlist models.Playlist
	row := conn.QueryRow(ctx, `
        UPDATE playlists
        SET name = $2, description = $3, updated_at = now()
        WHERE id = $1
        RETURNING id, owner_id, name, description, created_at, updated_at
    `, id, name, description)
	if err := row.Scan(&playlist.ID, &playlist.OwnerID, &playlist.Name, &playlist.Description,
		&playlist.CreatedAt, &playlist.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Playlist{}, ErrNotFound
		}
		return models.Playlist{}, fmt.Errorf("update playlist: %w", err)
	}

	return playlist, nil
}

// Delete removes a playlist and its memberships.
func (r *PostgresPlaylistRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddVideo appends a video to the end of the playlist. Adding a video that
// is already present is a no-op.
func (r *PostgresPlaylistRepository) AddVideo(ctx context.Context, playlistID, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO playlist_videos (playlist_id, video_id, position, added_at)
        VALUES ($1, $2,
            (SELECT COALESCE(MAX(position), 0) + 1 FROM playlist_videos WHERE playlist_id = $1),
            now())
        ON CONFLICT (playlist_id, video_id) DO NOTHING
    `, playlistID, videoID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("add playlist video: %w", err)
	}

	return nil
}

// RemoveVideo drops a video from the playlist. Removing a video that is not
// in the playlist succeeds without effect.
func (r *PostgresPlaylistRepository) RemoveVideo(ctx context.Context, playlistID, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        DELETE FROM playlist_videos WHERE playlist_id = $1 AND video_id = $2
    `, playlistID, videoID); err != nil {
		return fmt.Errorf("remove playlist video: %w", err)
	}

	return nil
}
