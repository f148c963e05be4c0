package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateAndAuthenticateUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := NewUserService(db)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, "alice", "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" {
		t.Error("Expected generated user id")
	}
	if u.IsOnline {
		t.Error("New user must start offline")
	}

	if _, err := svc.CreateUser(ctx, "alice2", "alice@example.com", "password123"); !errors.Is(err, ErrUserExists) {
		t.Errorf("Duplicate email: expected ErrUserExists, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, "alice", "other@example.com", "password123"); !errors.Is(err, ErrUserExists) {
		t.Errorf("Duplicate username: expected ErrUserExists, got %v", err)
	}

	got, err := svc.Authenticate(ctx, "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("Authenticated wrong user: %s != %s", got.ID, u.ID)
	}

	if _, err := svc.Authenticate(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCreds) {
		t.Errorf("Wrong password: expected ErrInvalidCreds, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCreds) {
		t.Errorf("Unknown email: expected ErrInvalidCreds, got %v", err)
	}
}

func TestGetByID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := NewUserService(db)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, "bob", "bob@example.com", "password123")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	got, err := svc.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Username != "bob" {
		t.Errorf("Expected bob, got %s", got.Username)
	}
	if _, err := svc.GetByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestSetPresenceAndListOnline(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := NewUserService(db)
	ctx := context.Background()

	alice, _ := svc.CreateUser(ctx, "alice", "alice@example.com", "password123")
	bob, _ := svc.CreateUser(ctx, "bob", "bob@example.com", "password123")

	now := time.Now()
	if err := svc.SetPresence(ctx, bob.ID, true, now); err != nil {
		t.Fatalf("SetPresence: %v", err)
	}

	online, err := svc.ListOnline(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListOnline: %v", err)
	}
	if len(online) != 1 || online[0].ID != bob.ID {
		t.Fatalf("Expected only bob online, got %+v", online)
	}
	if online[0].LastSeen == nil {
		t.Error("Expected last seen to be set")
	}

	// the caller is excluded from listings
	others, err := svc.ListOthers(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListOthers: %v", err)
	}
	if len(others) != 1 || others[0].ID != bob.ID {
		t.Fatalf("Expected [bob], got %+v", others)
	}

	if err := svc.SetPresence(ctx, bob.ID, false, time.Now()); err != nil {
		t.Fatalf("SetPresence: %v", err)
	}
	online, _ = svc.ListOnline(ctx, alice.ID)
	if len(online) != 0 {
		t.Errorf("Expected nobody online, got %+v", online)
	}
}
