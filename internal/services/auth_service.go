package services

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AuthStore abstracts persistence operations required by AuthService.
type AuthStore interface {
	FindUserByEmail(email string) (*User, error)
	GetUser(id string) (*User, error)
	AddUser(u *User) error
	UpdateUserRoles(id string, roles []string) error
	AddAudit(e AuditEntry)
}

// TokenSigner issues an access token for a user.
type TokenSigner func(uid, name string, roles []string, ttl time.Duration) (string, error)

type AuthService struct {
	store     AuthStore
	now       func() time.Time
	idGen     func() string
	signToken TokenSigner
	tokenTTL  time.Duration
}

type AuthResult struct {
	Token  string
	UserID string
	Roles  []string
}

func NewAuthService(store AuthStore, signer TokenSigner) *AuthService {
	return &AuthService{
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     func() string { return "u" + shortID(11) },
		signToken: signer,
		tokenTTL:  30 * 24 * time.Hour,
	}
}

func (s *AuthService) Register(name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("name/email/password required")
	}
	existing, err := s.store.FindUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewConflictError("email exists")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:        s.idGen(),
		Name:      name,
		Email:     email,
		PassHash:  hash,
		Roles:     []string{RoleUser},
		CreatedAt: s.now(),
	}
	if err := s.store.AddUser(u); err != nil {
		return nil, err
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: u.ID, Action: "register", Target: u.ID})
	return s.issue(u)
}

func (s *AuthService) Login(email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	u, err := s.store.FindUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword(u.PassHash, []byte(password)) != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	return s.issue(u)
}

// GrantRole adds a role to a user. Pool composition changes take effect at
// the next assignment run; already-assigned periods are untouched.
func (s *AuthService) GrantRole(userID, role, actor string) (*User, error) {
	role = strings.ToUpper(strings.TrimSpace(role))
	switch role {
	case RoleUser, RoleQuantifier, RoleAdmin:
	default:
		return nil, NewInvalidError("unknown role " + role)
	}
	u, err := s.store.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, NewNotFoundError("user not found")
	}
	if u.HasRole(role) {
		return u, nil
	}
	u.Roles = append(u.Roles, role)
	if err := s.store.UpdateUserRoles(u.ID, u.Roles); err != nil {
		return nil, err
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: actor, Action: "grant_role", Target: userID, Note: role})
	return u, nil
}

// RevokeRole removes a role from a user.
func (s *AuthService) RevokeRole(userID, role, actor string) (*User, error) {
	role = strings.ToUpper(strings.TrimSpace(role))
	u, err := s.store.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, NewNotFoundError("user not found")
	}
	kept := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if r != role {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(u.Roles) {
		return u, nil
	}
	u.Roles = kept
	if err := s.store.UpdateUserRoles(u.ID, u.Roles); err != nil {
		return nil, err
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: actor, Action: "revoke_role", Target: userID, Note: role})
	return u, nil
}

// EnsureAdmin creates or promotes the bootstrap admin account.
func (s *AuthService) EnsureAdmin(name, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return NewInvalidError("email/password required")
	}
	existing, err := s.store.FindUserByEmail(email)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.HasRole(RoleAdmin) {
			return nil
		}
		_, err := s.GrantRole(existing.ID, RoleAdmin, "system")
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if name == "" {
		name = "admin"
	}
	u := &User{
		ID:        s.idGen(),
		Name:      name,
		Email:     email,
		PassHash:  hash,
		Roles:     []string{RoleUser, RoleAdmin},
		CreatedAt: s.now(),
	}
	if err := s.store.AddUser(u); err != nil {
		return err
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: "system", Action: "bootstrap_admin", Target: u.ID})
	return nil
}

func (s *AuthService) issue(u *User) (*AuthResult, error) {
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken(u.ID, u.Name, u.Roles, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, UserID: u.ID, Roles: u.Roles}, nil
}
