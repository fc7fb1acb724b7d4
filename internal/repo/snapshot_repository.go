package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"Outreach/internal/db"
	"Outreach/internal/model"
	"Outreach/internal/retry"
)

const snapshotCollection = "chat_snapshots"

type snapshotRepository struct {
	mongoRepo *db.Repository[model.Snapshot]
	logger    *zap.Logger
}

// SnapshotRepository caches one chat snapshot per user.
type SnapshotRepository interface {
	LoadSnapshot(ctx context.Context, ownerID string) (*model.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

func NewSnapshotRepository(database *mongo.Database, logger *zap.Logger) SnapshotRepository {
	return newSnapshotRepository(db.NewRepository[model.Snapshot](database, snapshotCollection), logger)
}

func newSnapshotRepository(repo *db.Repository[model.Snapshot], logger *zap.Logger) *snapshotRepository {
	return &snapshotRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// EnsureIndexes creates the unique owner index. Safe to call on every start.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	ctx, cancel := retry.EnsureTimeout(ctx, defaultWriteTimeout)
	defer cancel()
	return db.NewRepository[model.Snapshot](database, snapshotCollection).EnsureUniqueIndex(ctx, "owner_id")
}

// -----------------------------------------------------------------------------
// LoadSnapshot - Returns nil, nil when the user has no snapshot yet
// -----------------------------------------------------------------------------
func (r *snapshotRepository) LoadSnapshot(ctx context.Context, ownerID string) (*model.Snapshot, error) {
	if ownerID == "" {
		return nil, ErrInvalidSnapshot
	}

	ctx, cancel := retry.EnsureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	snap, err := r.mongoRepo.FindOne(ctx, db.NewFilter().Eq("owner_id", ownerID).Build())
	if err != nil {
		return nil, r.handleReadError(err, ownerID)
	}

	r.logger.Debug("snapshot loaded",
		zap.String("owner_id", ownerID),
		zap.Int("conversations", len(snap.Conversations)),
	)
	return snap, nil
}

// -----------------------------------------------------------------------------
// SaveSnapshot - Replaces the owner's snapshot, retrying transient failures
// -----------------------------------------------------------------------------
func (r *snapshotRepository) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	if snap.OwnerID == "" {
		return ErrInvalidSnapshot
	}

	ctx, cancel := retry.EnsureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("owner_id", snap.OwnerID).Build()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := retry.Default.Wait(ctx, attempt); err != nil {
				return err
			}
		}

		_, err := r.mongoRepo.Upsert(ctx, filter, snap)
		if err == nil {
			r.logger.Debug("snapshot saved",
				zap.String("owner_id", snap.OwnerID),
				zap.Int("attempt", attempt+1),
			)
			return nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}

		r.logger.Warn("snapshot save failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	if isRetryableError(lastErr) {
		lastErr = fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, lastErr)
	}
	r.logger.Error("failed to save snapshot",
		zap.Error(lastErr),
		zap.String("owner_id", snap.OwnerID),
	)
	return fmt.Errorf("save snapshot failed: %w", lastErr)
}

// Prune deletes snapshots not saved since olderThan.
func (r *snapshotRepository) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	ctx, cancel := retry.EnsureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.DeleteMany(ctx, db.NewFilter().Lt("saved_at", olderThan).Build())
	if err != nil {
		return 0, fmt.Errorf("prune snapshots failed: %w", err)
	}
	if result.DeletedCount > 0 {
		remaining, err := r.mongoRepo.Count(ctx, db.Empty())
		if err != nil {
			remaining = -1
		}
		r.logger.Info("stale snapshots pruned",
			zap.Int64("deleted", result.DeletedCount),
			zap.Int64("remaining", remaining),
		)
	}
	return result.DeletedCount, nil
}

func (r *snapshotRepository) handleReadError(err error, ownerID string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		r.logger.Error("read timeout", zap.String("owner_id", ownerID))
		return ErrOperationTimeout
	}

	if errors.Is(err, context.Canceled) {
		r.logger.Debug("read cancelled", zap.String("owner_id", ownerID))
		return err
	}

	r.logger.Error("read failed", zap.Error(err), zap.String("owner_id", ownerID))
	return fmt.Errorf("load snapshot failed: %w", err)
}
