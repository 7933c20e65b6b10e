package auth

import (
	"testing"
)

func TestTokenRoundtrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}

	if token := store.Token(); token != "" {
		t.Fatalf("expected empty token before login, got %q", token)
	}

	if err := store.SetToken("jwt-abc123"); err != nil {
		t.Fatalf("SetToken error: %v", err)
	}
	if token := store.Token(); token != "jwt-abc123" {
		t.Fatalf("expected stored token, got %q", token)
	}
}

func TestUserRoundtrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}

	if _, ok := store.User(); ok {
		t.Fatal("expected no user before save")
	}

	want := User{ID: "u1", DisplayName: "Amira", Profile: ProfileLocal}
	if err := store.SaveUser(want); err != nil {
		t.Fatalf("SaveUser error: %v", err)
	}

	got, ok := store.User()
	if !ok {
		t.Fatal("expected stored user")
	}
	if got != want {
		t.Fatalf("user mismatch: got %+v, want %+v", got, want)
	}
}

func TestClearRemovesSession(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}

	if err := store.SetToken("jwt"); err != nil {
		t.Fatalf("SetToken error: %v", err)
	}
	if err := store.SaveUser(User{ID: "u1", DisplayName: "Amira", Profile: ProfileTourist}); err != nil {
		t.Fatalf("SaveUser error: %v", err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if token := store.Token(); token != "" {
		t.Fatalf("expected empty token after clear, got %q", token)
	}
	if _, ok := store.User(); ok {
		t.Fatal("expected no user after clear")
	}

	// Clearing an empty store is not an error.
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear on empty store error: %v", err)
	}
}
