package chat

import (
	"context"

	"go.uber.org/zap"

	"Outreach/internal/model"
)

func (s *Session) fetchCurrentUser(ctx context.Context) (model.User, error) {
	if s.cfg.Backend == nil {
		return model.User{}, ErrNoCurrentUser
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	user, err := s.cfg.Backend.CurrentUser(ctx)
	if err != nil {
		_ = s.do(func() { s.stats.FetchFailures++ })
		s.logger.Warn("current user fetch failed", zap.Error(err))
		return model.User{}, err
	}
	return user, nil
}

// loadSnapshot seeds the stores from the cache, if one is configured. The cache is keyed
// by user, so it needs the user id first. It reports whether a lookup was made.
func (s *Session) loadSnapshot(ctx context.Context) bool {
	if s.cfg.Cache == nil {
		return true
	}
	var owner string
	if err := s.do(func() { owner = s.user.ID }); err != nil || owner == "" {
		return false
	}

	snap, err := s.cfg.Cache.LoadSnapshot(ctx, owner)
	if err != nil {
		s.logger.Warn("failed to load cached chat state", zap.Error(err))
		return true
	}
	if snap == nil {
		return true
	}

	_ = s.do(func() {
		if s.closed {
			return
		}
		if snap.User.ID == owner && !s.profileLoaded {
			s.user = snap.User
		}
		s.recipients = snap.Recipients
		s.convs.Merge(snap.Conversations)
		s.notify()
	})
	s.logger.Info("cached chat state loaded",
		zap.Int("conversations", len(snap.Conversations)),
		zap.Int("recipients", len(snap.Recipients)),
		zap.Time("saved_at", snap.SavedAt),
	)
	return true
}

// saveSnapshot writes the current lists to the cache in the background. Runs on the loop.
func (s *Session) saveSnapshot() {
	if s.cfg.Cache == nil || s.closed || s.user.ID == "" {
		return
	}

	list := s.convs.List()
	snap := model.Snapshot{
		OwnerID:       s.user.ID,
		User:          s.user,
		Recipients:    append([]model.User(nil), s.recipients...),
		Conversations: make([]model.Conversation, 0, len(list)),
		SavedAt:       s.cfg.Clock.Now(),
	}
	for _, c := range list {
		snap.Conversations = append(snap.Conversations, *c)
	}

	s.spawn(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, defaultSaveTimeout)
		defer cancel()
		if err := s.cfg.Cache.SaveSnapshot(ctx, snap); err != nil {
			s.logger.Warn("failed to cache chat state", zap.Error(err))
		}
	})
}
