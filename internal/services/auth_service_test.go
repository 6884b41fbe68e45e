package services

import (
	"testing"
	"time"
)

func stubSigner(uid, name string, roles []string, ttl time.Duration) (string, error) {
	return "token-" + uid, nil
}

func authFixture() (*stubStore, *AuthService) {
	store := newStubStore()
	svc := NewAuthService(store, stubSigner)
	svc.now = fixedTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	svc.idGen = sequentialIDs("u")
	return store, svc
}

func TestRegisterAndLogin(t *testing.T) {
	_, svc := authFixture()

	res, err := svc.Register("Alice", "Alice@Example.com", "secret")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Token == "" || res.UserID == "" {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Roles) != 1 || res.Roles[0] != RoleUser {
		t.Fatalf("roles = %v, want [USER]", res.Roles)
	}

	// Email is normalized, duplicates are rejected.
	if _, err := svc.Register("Alice2", "alice@example.com", "other"); !IsCode(err, ErrorConflict) {
		t.Fatalf("duplicate email: got %v", err)
	}

	login, err := svc.Login("alice@example.com", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.UserID != res.UserID {
		t.Fatalf("login user = %s, want %s", login.UserID, res.UserID)
	}

	if _, err := svc.Login("alice@example.com", "wrong"); !IsCode(err, ErrorUnauthorized) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := svc.Login("nobody@example.com", "secret"); !IsCode(err, ErrorUnauthorized) {
		t.Fatalf("unknown email: got %v", err)
	}
}

func TestGrantAndRevokeRole(t *testing.T) {
	store, svc := authFixture()
	res, err := svc.Register("Bob", "bob@example.com", "secret")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	u, err := svc.GrantRole(res.UserID, "quantifier", "admin")
	if err != nil {
		t.Fatalf("GrantRole: %v", err)
	}
	if !u.HasRole(RoleQuantifier) {
		t.Fatalf("roles = %v", u.Roles)
	}
	// Granting twice is a no-op.
	u, err = svc.GrantRole(res.UserID, RoleQuantifier, "admin")
	if err != nil {
		t.Fatalf("GrantRole again: %v", err)
	}
	if len(u.Roles) != 2 {
		t.Fatalf("roles = %v, want exactly [USER QUANTIFIER]", u.Roles)
	}

	if _, err := svc.GrantRole(res.UserID, "WIZARD", "admin"); !IsCode(err, ErrorInvalid) {
		t.Fatalf("unknown role: got %v", err)
	}
	if _, err := svc.GrantRole("ghost", RoleQuantifier, "admin"); !IsCode(err, ErrorNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}

	u, err = svc.RevokeRole(res.UserID, RoleQuantifier, "admin")
	if err != nil {
		t.Fatalf("RevokeRole: %v", err)
	}
	if u.HasRole(RoleQuantifier) {
		t.Fatalf("roles = %v after revoke", u.Roles)
	}
	if got := store.users[res.UserID]; got.HasRole(RoleQuantifier) {
		t.Fatal("revoke not persisted")
	}
}

func TestEnsureAdmin(t *testing.T) {
	store, svc := authFixture()

	if err := svc.EnsureAdmin("root", "root@example.com", "secret"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	u, err := store.FindUserByEmail("root@example.com")
	if err != nil || u == nil {
		t.Fatalf("bootstrap user missing: %v", err)
	}
	if !u.HasRole(RoleAdmin) {
		t.Fatalf("roles = %v", u.Roles)
	}

	// Idempotent.
	if err := svc.EnsureAdmin("root", "root@example.com", "secret"); err != nil {
		t.Fatalf("EnsureAdmin again: %v", err)
	}
	if len(store.users) != 1 {
		t.Fatalf("users = %d, want 1", len(store.users))
	}

	// Promotes an existing account instead of duplicating it.
	res, err := svc.Register("Eve", "eve@example.com", "secret")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.EnsureAdmin("", "eve@example.com", "secret"); err != nil {
		t.Fatalf("EnsureAdmin promote: %v", err)
	}
	if !store.users[res.UserID].HasRole(RoleAdmin) {
		t.Fatal("existing user not promoted")
	}
}
