package userdb

import "testing"

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAddUserWithKeyThenUserHasKey(t *testing.T) {
	db := openTestDB(t)

	if err := db.AddUserWithKey("live", "secret"); err != nil {
		t.Fatalf("add user: %v", err)
	}
	if !db.UserHasKey("live", "secret") {
		t.Errorf("expected UserHasKey to report true for the key just added")
	}
	if db.UserHasKey("live", "wrong") {
		t.Errorf("expected UserHasKey to report false for a mismatched key")
	}
	if db.UserHasKey("missing", "secret") {
		t.Errorf("expected UserHasKey to report false for an unknown user")
	}
}

func TestAddUserWithKeyUpserts(t *testing.T) {
	db := openTestDB(t)

	if err := db.AddUserWithKey("live", "first"); err != nil {
		t.Fatalf("add user: %v", err)
	}
	if err := db.AddUserWithKey("live", "second"); err != nil {
		t.Fatalf("re-add user: %v", err)
	}

	if db.UserHasKey("live", "first") {
		t.Errorf("expected the old key to no longer match after upsert")
	}
	if !db.UserHasKey("live", "second") {
		t.Errorf("expected the new key to match after upsert")
	}
}

func TestUserByName(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.UserByName("live"); err == nil {
		t.Fatalf("expected error looking up a user that doesn't exist")
	}

	if err := db.AddUserWithKey("live", "secret"); err != nil {
		t.Fatalf("add user: %v", err)
	}
	user, err := db.UserByName("live")
	if err != nil {
		t.Fatalf("user by name: %v", err)
	}
	if user.Name != "live" || user.Key != "secret" {
		t.Errorf("unexpected user %+v", user)
	}
}
