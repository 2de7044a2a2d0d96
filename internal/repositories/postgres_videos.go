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

// videoListSpec drives the filter composer for the video catalogue: owner
// filtering happens against the joined user identity, free text matches
// title, description and the owner's username, and sortable request keys map
// to concrete columns.
var videoListSpec = query.ComposeSpec{
	OwnerColumn: "u.id",
	TextColumns: []string{"videos.title", "videos.description", "u.username"},
	SortColumns: map[string]string{
		"createdAt": "videos.created_at",
		"views":     "videos.views",
		"duration":  "videos.duration",
		"title":     "videos.title",
	},
	DefaultSort: "videos.created_at",
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a newly published video.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, owner_id, video_file, thumbnail, title, description, duration, views, is_published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, video.ID, video.OwnerID, video.VideoFile, video.Thumbnail, video.Title, video.Description,
		video.Duration, video.Views, video.IsPublished, video.CreatedAt, video.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// FindByID fetches a single video including its owner projection.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var (
		video models.Video
		owner models.Owner
	)
	row := conn.QueryRow(ctx, `
        SELECT v.id, v.video_file, v.thumbnail, v.title, v.description, v.duration,
               v.views, v.is_published, v.created_at, v.updated_at,
               u.id, u.username, u.avatar
        FROM videos v
        JOIN users u ON v.owner_id = u.id
        WHERE v.id = $1
    `, id)
	if err := row.Scan(&video.ID, &video.VideoFile, &video.Thumbnail, &video.Title,
		&video.Description, &video.Duration, &video.Views, &video.IsPublished,
		&video.CreatedAt, &video.UpdatedAt, &owner.ID, &owner.Username, &owner.Avatar); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}

	video.OwnerID = owner.ID
	video.Owner = &owner
	return video, nil
}

// List runs the published-video catalogue pipeline: owner join, public
// projection, then the composer-supplied filter and sort stages.
func (r *PostgresVideoRepository) List(ctx context.Context, filter query.Filter, opts query.Options) (query.Page[models.Video], error) {
	p := query.NewPipeline("videos",
		query.Join{Table: "users", Alias: "u", LocalColumn: "videos.owner_id", ForeignColumn: "u.id"},
		query.Project{Columns: []query.Column{
			{Expr: "videos.id"}, {Expr: "videos.video_file"}, {Expr: "videos.thumbnail"},
			{Expr: "videos.title"}, {Expr: "videos.description"}, {Expr: "videos.duration"},
			{Expr: "videos.views"}, {Expr: "videos.created_at"}, {Expr: "videos.updated_at"},
			{Expr: "u.id", Alias: "owner_id"}, {Expr: "u.username"}, {Expr: "u.avatar"},
		}},
		query.Match{Cond: query.IsTrue{Column: "videos.is_published"}},
	)
	p.Append(query.Compose(filter, videoListSpec)...)

	return query.Paginate(ctx, r.pool, p, opts, scanVideoRow)
}

func scanVideoRow(row pgx.CollectableRow) (models.Video, error) {
	var (
		video models.Video
		owner models.Owner
	)
	if err := row.Scan(&video.ID, &video.VideoFile, &video.Thumbnail, &video.Title,
		&video.Description, &video.Duration, &video.Views, &video.CreatedAt, &video.UpdatedAt,
		&owner.ID, &owner.Username, &owner.Avatar); err != nil {
		return models.Video{}, err
	}
	video.OwnerID = owner.ID
	video.Owner = &owner
	video.IsPublished = true
	return video, nil
}

// Update changes the editable fields of a video.
func (r *PostgresVideoRepository) Update(ctx context.Context, video models.Video) error {
	return r.exec(ctx, `
        UPDATE videos
        SET title = $2, description = $3, thumbnail = $4, updated_at = now()
        WHERE id = $1
    `, video.ID, video.Title, video.Description, video.Thumbnail)
}

// Delete removes a video. Comments, likes, playlist memberships and watch
// history entries referencing it cascade at the schema level.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
}

// SetPublished flips the publish flag.
func (r *PostgresVideoRepository) SetPublished(ctx context.Context, id string, published bool) error {
	return r.exec(ctx, `UPDATE videos SET is_published = $2, updated_at = now() WHERE id = $1`, id, published)
}

// IncrementViews bumps the view counter by one.
func (r *PostgresVideoRepository) IncrementViews(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE videos SET views = views + 1 WHERE id = $1`, id)
}

func (r *PostgresVideoRepository) exec(ctx context.Context, sql string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
