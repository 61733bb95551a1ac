package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeUserRepo is an in-memory UserRepository for tests.
type fakeUserRepo struct {
	users  map[string]*UserRecord
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*UserRecord{}}
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*UserRecord, error) {
	u, ok := r.users[username]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) Exists(_ context.Context, username string) (bool, error) {
	_, ok := r.users[username]
	return ok, nil
}

func (r *fakeUserRepo) Create(_ context.Context, username, fullName, email, passwordHash, role string) (*UserRecord, error) {
	if _, ok := r.users[username]; ok {
		return nil, errors.New("duplicate username")
	}
	r.nextID++
	u := &UserRecord{
		ID:           r.nextID,
		Username:     username,
		FullName:     fullName,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	r.users[username] = u
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	for _, u := range r.users {
		if u.ID == id {
			u.PasswordHash = passwordHash
			return nil
		}
	}
	return errors.New("user not found")
}

func (r *fakeUserRepo) List(_ context.Context, role string, skip, limit int) ([]UserProfile, error) {
	var items []UserProfile
	for _, u := range r.users {
		if role != "" && u.Role != role {
			continue
		}
		items = append(items, u.Profile())
	}
	return items, nil
}

func (r *fakeUserRepo) DeleteByUsername(_ context.Context, username string) (bool, error) {
	if _, ok := r.users[username]; !ok {
		return false, nil
	}
	delete(r.users, username)
	return true, nil
}

func (r *fakeUserRepo) HasAdmin(_ context.Context) (bool, error) {
	for _, u := range r.users {
		if u.Role == string(RoleAdmin) {
			return true, nil
		}
	}
	return false, nil
}

func mustCreateUser(t *testing.T, repo *fakeUserRepo, username, password string, role Role) *UserRecord {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	u, err := repo.Create(context.Background(), username, "", "", hash, string(role))
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestAuthenticateSuccess(t *testing.T) {
	repo := newFakeUserRepo()
	mustCreateUser(t, repo, "alice", "s3cret", RoleAdmin)
	svc := NewRepositoryAuthService(repo)

	p, err := svc.Authenticate(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if p.Subject != "alice" || p.Role != RoleAdmin {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	repo := newFakeUserRepo()
	mustCreateUser(t, repo, "alice", "s3cret", RoleUser)
	svc := NewRepositoryAuthService(repo)

	_, ghostErr := svc.Authenticate(context.Background(), "ghost_user", "anything")
	_, wrongErr := svc.Authenticate(context.Background(), "alice", "wrong_password")

	if !errors.Is(ghostErr, ErrInvalidCredentials) {
		t.Fatalf("ghost user err = %v, want ErrInvalidCredentials", ghostErr)
	}
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v, want ErrInvalidCredentials", wrongErr)
	}
	if ghostErr.Error() != wrongErr.Error() {
		t.Fatalf("error messages differ: %q vs %q", ghostErr, wrongErr)
	}
}

func TestAuthenticateUsernameCaseSensitive(t *testing.T) {
	repo := newFakeUserRepo()
	mustCreateUser(t, repo, "alice", "s3cret", RoleUser)
	svc := NewRepositoryAuthService(repo)

	if _, err := svc.Authenticate(context.Background(), "Alice", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("case-mismatched username err = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticateCorruptHash(t *testing.T) {
	repo := newFakeUserRepo()
	if _, err := repo.Create(context.Background(), "broken", "", "", "not-a-real-hash", string(RoleUser)); err != nil {
		t.Fatalf("create user: %v", err)
	}
	svc := NewRepositoryAuthService(repo)

	// Unreadable stored hash must look like a normal credential failure.
	if _, err := svc.Authenticate(context.Background(), "broken", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("corrupt hash err = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticateInvalidStoredRole(t *testing.T) {
	repo := newFakeUserRepo()
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if _, err := repo.Create(context.Background(), "weird", "", "", hash, "superuser"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	svc := NewRepositoryAuthService(repo)

	if _, err := svc.Authenticate(context.Background(), "weird", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("invalid role err = %v, want ErrInvalidCredentials", err)
	}
}

func TestTokenIssuerRequiresPositiveTTL(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewTokenIssuer with zero ttl did not panic")
		}
	}()
	NewTokenIssuer(NewTokenCodec("test-secret"), 0)
}

func TestTokenVerifier(t *testing.T) {
	repo := newFakeUserRepo()
	mustCreateUser(t, repo, "alice", "s3cret", RoleUser)

	codec := NewTokenCodec("test-secret")
	issuer := NewTokenIssuer(codec, time.Hour)
	verifier := NewTokenVerifier(codec, repo)
	ctx := context.Background()

	token, err := issuer.Issue(Principal{Subject: "alice", Role: RoleUser})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	p, err := verifier.Verify(ctx, token)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if p.Subject != "alice" || p.Role != RoleUser {
		t.Fatalf("unexpected principal: %+v", p)
	}

	if _, err := verifier.Verify(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("missing token err = %v, want ErrUnauthenticated", err)
	}
	if _, err := verifier.Verify(ctx, "not.a.token"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("garbage token err = %v, want ErrUnauthenticated", err)
	}
}

func TestTokenVerifierOrphanedSubject(t *testing.T) {
	repo := newFakeUserRepo()
	mustCreateUser(t, repo, "alice", "s3cret", RoleUser)

	codec := NewTokenCodec("test-secret")
	issuer := NewTokenIssuer(codec, time.Hour)
	verifier := NewTokenVerifier(codec, repo)
	ctx := context.Background()

	token, err := issuer.Issue(Principal{Subject: "alice", Role: RoleUser})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	// Still valid while the user exists.
	if _, err := verifier.Verify(ctx, token); err != nil {
		t.Fatalf("Verify before deletion error: %v", err)
	}

	if _, err := repo.DeleteByUsername(ctx, "alice"); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	// Token expiry has not elapsed, but the subject is gone.
	if _, err := verifier.Verify(ctx, token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("orphaned token err = %v, want ErrUnauthenticated", err)
	}
}

func TestTokenVerifierExpired(t *testing.T) {
	repo := newFakeUserRepo()
	mustCreateUser(t, repo, "alice", "s3cret", RoleUser)

	codec := NewTokenCodec("test-secret")
	verifier := NewTokenVerifier(codec, repo)

	token, err := codec.Encode("alice", time.Millisecond)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := verifier.Verify(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expired token err = %v, want ErrUnauthenticated", err)
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("admin"); err != nil || r != RoleAdmin {
		t.Fatalf("ParseRole(admin) = %v, %v", r, err)
	}
	if r, err := ParseRole("user"); err != nil || r != RoleUser {
		t.Fatalf("ParseRole(user) = %v, %v", r, err)
	}
	for _, bad := range []string{"", "Admin", "root", "superuser"} {
		if _, err := ParseRole(bad); err == nil {
			t.Errorf("ParseRole(%q) accepted", bad)
		}
	}
}
