package identity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusroll/internal/clock"
	"campusroll/internal/model"
	"campusroll/internal/store"
)

func newRegistry(t *testing.T) (*Registry, *store.Memory) {
	t.Helper()
	kv := store.NewMemory()
	return NewRegistry(kv, WithClock(clock.NewFake(time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)))), kv
}

func student(email string) Registration {
	return Registration{Email: email, Section: model.SectionLEFR, FullName: "A", FamilyName: "B", DepartmentNumber: "1"}
}

func strPtr(s string) *string { return &s }

func TestRegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	r, kv := newRegistry(t)

	acc, err := r.Register(ctx, model.RoleStudent, student("a@x"))
	require.NoError(t, err)
	require.NotEmpty(t, acc.ID)
	assert.Equal(t, model.SectionLEFR, acc.Section)

	sess, err := store.Load[model.Session](ctx, kv, store.KeySession)
	require.NoError(t, err)
	assert.Equal(t, model.Session{AccountID: acc.ID, Role: model.RoleStudent}, sess.Value)

	require.NoError(t, r.Logout(ctx))
	_, err = r.Current(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	got, err := r.Login(ctx, "a@x", model.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)

	cur, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, cur.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)

	_, err := r.Register(ctx, model.RoleStudent, student("a@x"))
	require.NoError(t, err)

	_, err = r.Register(ctx, model.RoleStudent, student("a@x"))
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = r.Register(ctx, model.RoleProfessor, Registration{Email: " A@X ", FullName: "P"})
	assert.ErrorIs(t, err, ErrEmailTaken, "emails compare case-insensitively across roles")

	users, err := r.Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRegisterValidatesRoleAndSection(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)

	_, err := r.Register(ctx, model.Role("admin"), student("a@x"))
	assert.ErrorIs(t, err, ErrInvalidRole)

	in := student("b@x")
	in.Section = "LEXX"
	_, err = r.Register(ctx, model.RoleStudent, in)
	assert.ErrorIs(t, err, model.ErrUnknownSection)

	prof, err := r.Register(ctx, model.RoleProfessor, Registration{
		Email: "p@x", FullName: "Prof", ProfessorNumber: "42", Subject: "Maths",
		Section: model.SectionLEAG, DepartmentNumber: "9",
	})
	require.NoError(t, err)
	assert.Empty(t, prof.Section, "professors carry no section")
	assert.Empty(t, prof.DepartmentNumber)
	assert.Equal(t, "Maths", prof.Subject)
}

func TestLoginRequiresMatchingRole(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)
	_, err := r.Register(ctx, model.RoleStudent, student("a@x"))
	require.NoError(t, err)

	_, err = r.Login(ctx, "a@x", model.RoleProfessor)
	assert.ErrorIs(t, err, ErrNoSuchAccount)

	_, err = r.Login(ctx, "nobody@x", model.RoleStudent)
	assert.ErrorIs(t, err, ErrNoSuchAccount)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)
	stu, err := r.Register(ctx, model.RoleStudent, student("a@x"))
	require.NoError(t, err)
	prof, err := r.Register(ctx, model.RoleProfessor, Registration{Email: "p@x", FullName: "P", Subject: "Bio"})
	require.NoError(t, err)

	lesm := model.SectionLESM
	lefr := model.SectionLEFR
	professor := model.RoleProfessor

	tests := []struct {
		name    string
		id      string
		patch   Patch
		wantErr error
	}{
		{"change id", stu.ID, Patch{ID: strPtr("other")}, ErrImmutableField},
		{"change role", stu.ID, Patch{Role: &professor}, ErrImmutableField},
		{"change email", stu.ID, Patch{Email: strPtr("new@x")}, ErrImmutableField},
		{"change section", stu.ID, Patch{Section: &lesm}, ErrImmutableField},
		{"same section", stu.ID, Patch{Section: &lefr}, nil},
		{"same email other case", stu.ID, Patch{Email: strPtr("A@X")}, nil},
		{"subject on student", stu.ID, Patch{Subject: strPtr("Bio")}, ErrRoleMismatch},
		{"section on professor", prof.ID, Patch{Section: &lefr}, ErrRoleMismatch},
		{"department on professor", prof.ID, Patch{DepartmentNumber: strPtr("3")}, ErrRoleMismatch},
		{"unknown id", "missing", Patch{FullName: strPtr("Z")}, ErrNoSuchAccount},
		{"rename", stu.ID, Patch{FullName: strPtr(" Amina "), Photo: strPtr("https://cdn/p.jpg")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Update(ctx, tt.id, tt.patch)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	got, err := r.Get(ctx, stu.ID)
	require.NoError(t, err)
	assert.Equal(t, "Amina", got.FullName)
	assert.Equal(t, "https://cdn/p.jpg", got.Photo)
	assert.Equal(t, "a@x", got.Email)
	assert.Equal(t, model.SectionLEFR, got.Section)
	assert.Equal(t, "Amina B", got.DisplayName())
}

func TestRoleNarrowing(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)
	stu, err := r.Register(ctx, model.RoleStudent, student("a@x"))
	require.NoError(t, err)

	_, err = r.Professor(ctx, stu.ID)
	assert.ErrorIs(t, err, ErrRoleMismatch)

	got, err := r.Student(ctx, stu.ID)
	require.NoError(t, err)
	assert.Equal(t, stu.ID, got.ID)
}

func TestConcurrentRegistrationKeepsEmailsDistinct(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)

	const emails = 10
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		taken int
	)
	for i := 0; i < emails*2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := r.Register(ctx, model.RoleStudent, student(fmt.Sprintf("s%d@x", n%emails)))
			if errors.Is(err, ErrEmailTaken) {
				mu.Lock()
				taken++
				mu.Unlock()
				return
			}
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	users, err := r.Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, users, emails)
	assert.Equal(t, emails, taken)

	seen := map[string]bool{}
	for _, u := range users {
		assert.False(t, seen[u.Email], "duplicate %s", u.Email)
		seen[u.Email] = true
	}
}

type brokenStore struct{ store.Store }

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, &store.Error{Op: "get", Err: errors.New("disk gone")}
}

func TestStoreFailurePropagates(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(brokenStore{store.NewMemory()})

	_, err := r.Register(ctx, model.RoleStudent, student("a@x"))
	assert.ErrorIs(t, err, store.ErrFailure)

	_, err = r.Login(ctx, "a@x", model.RoleStudent)
	assert.ErrorIs(t, err, store.ErrFailure)
	assert.NotErrorIs(t, err, ErrNoSuchAccount)
}

func TestLogoutAccountKeepsAnotherSession(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)
	a, err := r.Register(ctx, model.RoleStudent, student("a@x"))
	require.NoError(t, err)
	b, err := r.Register(ctx, model.RoleStudent, student("b@x"))
	require.NoError(t, err)

	cleared, err := r.LogoutAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, cleared)
	cur, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, cur.ID)

	cleared, err = r.LogoutAccount(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, cleared)
	_, err = r.Current(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	cleared, err = r.LogoutAccount(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, cleared, "nothing to clear")
}
