package chat

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"banter/internal/models"
)

func TestSweepMarksIdleUsersInactive(t *testing.T) {
	repo := newMemRepo()
	sender := newCaptureSender()
	hub := newTestHub(t, repo, sender)

	idle := addUser(t, repo, "idle")
	fresh := addUser(t, repo, "fresh")
	observer := addUser(t, repo, "observer")
	addRoom(t, repo, "go", idle, fresh, observer)
	addRoom(t, repo, "random", idle, observer)

	join(t, hub, idle, "conn-idle")
	join(t, hub, fresh, "conn-fresh")
	join(t, hub, observer, "conn-obs")

	idle.LastActivity = time.Now().UTC().Add(-16 * time.Minute)

	sweeper := NewSweeper(repo, hub.notifier, time.Minute, 15*time.Minute, log.New(os.Stderr, "", 0))
	sweeper.Sweep(context.Background())

	if idle.Status != models.StatusInactive {
		t.Fatalf("expected idle user marked Inactive, got %v", idle.Status)
	}
	if fresh.Status != models.StatusActive {
		t.Fatalf("expected fresh user untouched, got %v", fresh.Status)
	}
	if got := sender.count("conn-obs", EventMarkInactive); got != 2 {
		t.Fatalf("expected one batched notice per room (2 rooms), got %d", got)
	}
	if got := sender.count("conn-fresh", EventMarkInactive); got != 1 {
		t.Fatalf("expected a single notice in the shared room, got %d", got)
	}
}

func TestSweepNeverGoesOffline(t *testing.T) {
	repo := newMemRepo()
	sender := newCaptureSender()
	hub := newTestHub(t, repo, sender)

	idle := addUser(t, repo, "idle")
	addRoom(t, repo, "go", idle)
	join(t, hub, idle, "conn-idle")

	idle.LastActivity = time.Now().UTC().Add(-24 * time.Hour)

	sweeper := NewSweeper(repo, hub.notifier, time.Minute, 15*time.Minute, log.New(os.Stderr, "", 0))
	sweeper.Sweep(context.Background())
	sweeper.Sweep(context.Background())

	if idle.Status != models.StatusInactive {
		t.Fatalf("expected Inactive, got %v", idle.Status)
	}
}

func TestSweepDoesNotReenter(t *testing.T) {
	repo := newMemRepo()
	sender := newCaptureSender()
	hub := newTestHub(t, repo, sender)

	idle := addUser(t, repo, "idle")
	addRoom(t, repo, "go", idle)
	join(t, hub, idle, "conn-idle")
	idle.LastActivity = time.Now().UTC().Add(-16 * time.Minute)

	sweeper := NewSweeper(repo, hub.notifier, time.Minute, 15*time.Minute, log.New(os.Stderr, "", 0))
	sweeper.running.Store(true)
	sweeper.Sweep(context.Background())

	if idle.Status != models.StatusActive {
		t.Fatalf("expected a guarded sweep to do nothing, got %v", idle.Status)
	}
}
