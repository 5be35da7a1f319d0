package chat

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"banter/internal/models"
	"banter/internal/storage"
)

// Sweeper periodically demotes users with no recent activity from Active to
// Inactive and tells their rooms in one batched notice per room. Offline is
// never the sweeper's call; only disconnects produce Offline.
type Sweeper struct {
	repo      storage.Repository
	notifier  *Notifier
	interval  time.Duration
	idleAfter time.Duration
	logger    *log.Logger

	running atomic.Bool
}

// NewSweeper creates a Sweeper. Run starts it.
func NewSweeper(repo storage.Repository, notifier *Notifier, interval, idleAfter time.Duration, logger *log.Logger) *Sweeper {
	return &Sweeper{
		repo:      repo,
		notifier:  notifier,
		interval:  interval,
		idleAfter: idleAfter,
		logger:    logger,
	}
}

// Run ticks until ctx is cancelled. Call it on its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. A pass that finds the previous one still running
// returns immediately; the sweep never stacks.
func (s *Sweeper) Sweep(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	defer s.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("sweep panic: %v", r)
		}
	}()

	users, err := s.repo.OnlineUsers(ctx)
	if err != nil {
		s.logger.Printf("sweep: %v", err)
		return
	}

	cutoff := time.Now().UTC().Add(-s.idleAfter)
	byRoom := make(map[string][]models.UserView)

	for _, user := range users {
		if user.Status != models.StatusActive || user.LastActivity.After(cutoff) {
			continue
		}
		user.Status = models.StatusInactive
		if err := s.repo.SaveUser(ctx, user); err != nil {
			s.logger.Printf("sweep save %s: %v", user.Name, err)
			continue
		}
		for _, room := range user.Rooms {
			byRoom[room.Name] = append(byRoom[room.Name], models.NewUserView(user))
		}
	}

	if len(byRoom) == 0 {
		return
	}
	if err := s.repo.CommitChanges(ctx); err != nil {
		s.logger.Printf("sweep commit: %v", err)
		return
	}
	for roomName, idle := range byRoom {
		s.notifier.MarkInactive(roomName, idle)
	}
}
