package user

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hemorec/hemorec/internal/platform/apperr"
	"github.com/hemorec/hemorec/internal/platform/auth"
)

type fakeRepo struct {
	byID map[string]*User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[string]*User)}
}

func (f *fakeRepo) Get(ctx context.Context, id string) (*User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) Put(ctx context.Context, u *User) error {
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeRepo) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var items []*User
	for _, u := range f.byID {
		items = append(items, u)
	}
	return items, len(items), nil
}

func ctxFor(id string) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{ID: id, Email: id + "@example.org"})
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

func TestCurrentRegistersNewAccount(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, zerolog.Nop())

	u, err := svc.Current(ctxFor("u1"))
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if u.ID != "u1" || u.Email != "u1@example.org" {
		t.Errorf("user = %+v", u)
	}
	if u.Authorized || u.Admin {
		t.Error("new accounts must start with both flags off")
	}
	if _, ok := repo.byID["u1"]; !ok {
		t.Error("account must be persisted")
	}
}

func TestCurrentReturnsExisting(t *testing.T) {
	repo := newFakeRepo()
	repo.byID["u1"] = &User{ID: "u1", Name: "Doc", Authorized: true}
	svc := NewService(repo, zerolog.Nop())

	u, err := svc.Current(ctxFor("u1"))
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if u.Name != "Doc" || !u.Authorized {
		t.Errorf("user = %+v", u)
	}
}

func TestCurrentWithoutIdentity(t *testing.T) {
	svc := NewService(newFakeRepo(), zerolog.Nop())
	if _, err := svc.Current(context.Background()); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestFlags(t *testing.T) {
	repo := newFakeRepo()
	repo.byID["u1"] = &User{ID: "u1", Authorized: true, Admin: true}
	svc := NewService(repo, zerolog.Nop())

	flags, err := svc.Flags(context.Background(), auth.Identity{ID: "u1"})
	if err != nil {
		t.Fatalf("Flags: %v", err)
	}
	if !flags.Authorized || !flags.Admin {
		t.Errorf("flags = %+v", flags)
	}

	// Unknown subject is registered unauthorized rather than erroring.
	flags, err = svc.Flags(context.Background(), auth.Identity{ID: "new"})
	if err != nil {
		t.Fatalf("Flags for new account: %v", err)
	}
	if flags.Authorized || flags.Admin {
		t.Errorf("flags = %+v, want both off", flags)
	}
}

func TestUpdateSelfProfile(t *testing.T) {
	repo := newFakeRepo()
	repo.byID["u1"] = &User{ID: "u1", Authorized: true}
	svc := NewService(repo, zerolog.Nop())

	u, err := svc.Update(ctxFor("u1"), "u1", UpdateInput{Name: strPtr("Nova")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if u.Name != "Nova" {
		t.Errorf("name = %q", u.Name)
	}
}

func TestUpdateForbidden(t *testing.T) {
	repo := newFakeRepo()
	repo.byID["u1"] = &User{ID: "u1", Authorized: true}
	repo.byID["u2"] = &User{ID: "u2", Authorized: true}
	svc := NewService(repo, zerolog.Nop())

	cases := []struct {
		name   string
		caller string
		target string
		in     UpdateInput
	}{
		{"edit other account", "u1", "u2", UpdateInput{Name: strPtr("X")}},
		{"grant own authorization", "u1", "u1", UpdateInput{Authorized: boolPtr(true)}},
		{"grant own admin", "u1", "u1", UpdateInput{Admin: boolPtr(true)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Update(ctxFor(tc.caller), tc.target, tc.in)
			if !errors.Is(err, apperr.ErrForbidden) {
				t.Fatalf("err = %v, want ErrForbidden", err)
			}
		})
	}
}

func TestUpdateByAdmin(t *testing.T) {
	repo := newFakeRepo()
	repo.byID["admin"] = &User{ID: "admin", Authorized: true, Admin: true}
	repo.byID["u1"] = &User{ID: "u1"}
	svc := NewService(repo, zerolog.Nop())

	u, err := svc.Update(ctxFor("admin"), "u1", UpdateInput{Authorized: boolPtr(true)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !u.Authorized {
		t.Error("authorized flag must be set")
	}
}

func TestAdminCannotRevokeOwnAdmin(t *testing.T) {
	repo := newFakeRepo()
	repo.byID["admin"] = &User{ID: "admin", Authorized: true, Admin: true}
	svc := NewService(repo, zerolog.Nop())

	_, err := svc.Update(ctxFor("admin"), "admin", UpdateInput{Admin: boolPtr(false)})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}
