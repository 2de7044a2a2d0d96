package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/query"
)

// PostgresLikeRepository provides PostgreSQL-backed persistence for likes.
type PostgresLikeRepository struct {
	pool db.Pool
}

// NewPostgresLikeRepository constructs a like repository backed by PostgreSQL.
func NewPostgresLikeRepository(pool db.Pool) *PostgresLikeRepository {
	return &PostgresLikeRepository{pool: pool}
}

func likeColumn(target models.LikeTarget) (string, error) {
	switch target {
	case models.LikeTargetVideo:
		return "video_id", nil
	case models.LikeTargetComment:
		return "comment_id", nil
	case models.LikeTargetTweet:
		return "tweet_id", nil
	default:
		return "", fmt.Errorf("unknown like target %q", target)
	}
}

// Toggle removes the like if it exists, otherwise inserts it, and reports
// whether the target ends up liked. Both steps run inside one retryable
// transaction so concurrent toggles from the same user cannot double-insert
// or double-delete.
func (r *PostgresLikeRepository) Toggle(ctx context.Context, target models.LikeTarget, targetID, userID string) (bool, error) {
	column, err := likeColumn(target)
	if err != nil {
		return false, err
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var liked bool
	err = crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM likes WHERE %s = $1 AND liked_by = $2`, column),
			targetID, userID)
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}
		if tag.RowsAffected() > 0 {
			liked = false
			return nil
		}

		_, err = tx.Exec(ctx,
			fmt.Sprintf(`
                INSERT INTO likes (id, %s, liked_by, created_at)
                VALUES ($1, $2, $3, $4)
                ON CONFLICT DO NOTHING
            `, column),
			uuid.NewString(), targetID, userID, time.Now().UTC())
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return ErrNotFound
			}
			return fmt.Errorf("insert like: %w", err)
		}
		liked = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return liked, nil
}

// LikedVideos returns the videos a user has liked, most recently liked
// first, with the video owner's public projection nested in each row.
func (r *PostgresLikeRepository) LikedVideos(ctx context.Context, userID string, opts query.Options) (query.Page[models.Video], error) {
	p := query.NewPipeline("likes",
		query.Join{Table: "videos", Alias: "v", LocalColumn: "likes.video_id", ForeignColumn: "v.id"},
		query.Join{Table: "users", Alias: "u", LocalColumn: "v.owner_id", ForeignColumn: "u.id"},
		query.Project{Columns: []query.Column{
			{Expr: "v.id"}, {Expr: "v.thumbnail"}, {Expr: "v.title"}, {Expr: "v.description"},
			{Expr: "v.duration"}, {Expr: "v.views"}, {Expr: "v.created_at"},
			{Expr: "u.id", Alias: "owner_id"}, {Expr: "u.username"}, {Expr: "u.avatar"},
		}},
		query.Match{Cond: query.Eq{Column: "likes.liked_by", Value: userID}},
		query.Match{Cond: query.NotNull{Column: "likes.video_id"}},
		query.Sort{Column: "likes.created_at", Descending: true},
	)

	return query.Paginate(ctx, r.pool, p, opts, func(row pgx.CollectableRow) (models.Video, error) {
		var (
			video models.Video
			owner models.Owner
		)
		if err := row.Scan(&video.ID, &video.Thumbnail, &video.Title, &video.Description,
			&video.Duration, &video.Views, &video.CreatedAt,
			&owner.ID, &owner.Username, &owner.Avatar); err != nil {
			return models.Video{}, err
		}
		video.OwnerID = owner.ID
		video.Owner = &owner
		return video, nil
	})
}
