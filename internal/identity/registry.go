// Package identity holds the account set: registration, login, profile
// edits and the current-session key.
package identity

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shrimpsizemoose/trekker/logger"

	"campusroll/internal/clock"
	"campusroll/internal/ids"
	"campusroll/internal/metrics"
	"campusroll/internal/model"
	"campusroll/internal/store"
)

var (
	ErrEmailTaken     = errors.New("a user with this email already exists")
	ErrNoSuchAccount  = errors.New("no account matches")
	ErrImmutableField = errors.New("field cannot be changed")
	ErrRoleMismatch   = errors.New("account has the wrong role for this operation")
	ErrInvalidRole    = errors.New("invalid role")
	ErrNotLoggedIn    = errors.New("no account is logged in")
)

// Registration is the input to Register. DepartmentNumber and Section apply
// to students, ProfessorNumber and Subject to professors.
type Registration struct {
	FullName         string
	FamilyName       string
	Email            string
	Photo            string
	DepartmentNumber string
	Section          model.Section
	ProfessorNumber  string
	Subject          string
}

// Patch lists the fields an Update may touch. Nil fields are left alone.
// ID, Role, Email and a student's Section are accepted only when they repeat
// the stored value.
type Patch struct {
	ID               *string        `json:"id,omitempty"`
	Role             *model.Role    `json:"role,omitempty"`
	Email            *string        `json:"email,omitempty"`
	Section          *model.Section `json:"section,omitempty"`
	FullName         *string        `json:"fullName,omitempty"`
	FamilyName       *string        `json:"familyName,omitempty"`
	Photo            *string        `json:"photo,omitempty"`
	DepartmentNumber *string        `json:"departmentNumber,omitempty"`
	ProfessorNumber  *string        `json:"professorNumber,omitempty"`
	Subject          *string        `json:"subject,omitempty"`
}

// Registry is the authoritative account set, stored at the users key.
type Registry struct {
	kv    store.Store
	clock clock.Clock
	newID func() string
}

type Option func(*Registry)

func WithClock(c clock.Clock) Option { return func(r *Registry) { r.clock = c } }

func WithIDs(fn func() string) Option { return func(r *Registry) { r.newID = fn } }

func NewRegistry(kv store.Store, opts ...Option) *Registry {
	r := &Registry{kv: kv, clock: clock.System, newID: ids.New}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates an account and logs it in.
func (r *Registry) Register(ctx context.Context, role model.Role, in Registration) (model.Account, error) {
	if !role.Valid() {
		return model.Account{}, ErrInvalidRole
	}
	acc := model.Account{
		ID:         r.newID(),
		Role:       role,
		FullName:   strings.TrimSpace(in.FullName),
		FamilyName: strings.TrimSpace(in.FamilyName),
		Email:      normalizeEmail(in.Email),
		Photo:      in.Photo,
		CreatedAt:  r.clock.Now(),
	}
	switch role {
	case model.RoleStudent:
		if !in.Section.Valid() {
			return model.Account{}, model.ErrUnknownSection
		}
		acc.Section = in.Section
		acc.DepartmentNumber = strings.TrimSpace(in.DepartmentNumber)
	case model.RoleProfessor:
		acc.ProfessorNumber = strings.TrimSpace(in.ProfessorNumber)
		acc.Subject = strings.TrimSpace(in.Subject)
	}

	_, err := store.Mutate(ctx, r.kv, store.KeyUsers, func(users *[]model.Account, _ bool) error {
		for _, u := range *users {
			if normalizeEmail(u.Email) == acc.Email {
				return ErrEmailTaken
			}
		}
		*users = append(*users, acc)
		return nil
	})
	if errors.Is(err, ErrEmailTaken) {
		return model.Account{}, err
	}
	if err != nil {
		return model.Account{}, errors.Wrap(err, "register")
	}
	metrics.AccountsRegistered.WithLabelValues(string(role)).Inc()
	logger.Info.Printf("identity: registered %s %s", role, acc.ID)

	// the account is already persisted; a failure here only loses the session
	if err := r.setSession(ctx, acc); err != nil {
		return acc, err
	}
	return acc, nil
}

// Login looks the account up by email and role and makes it current.
func (r *Registry) Login(ctx context.Context, email string, role model.Role) (model.Account, error) {
	users, err := r.Accounts(ctx)
	if err != nil {
		return model.Account{}, err
	}
	email = normalizeEmail(email)
	for _, u := range users {
		if normalizeEmail(u.Email) == email && u.Role == role {
			if err := r.setSession(ctx, u); err != nil {
				return model.Account{}, err
			}
			metrics.Logins.WithLabelValues(string(role), "ok").Inc()
			return u, nil
		}
	}
	metrics.Logins.WithLabelValues(string(role), "unknown").Inc()
	return model.Account{}, ErrNoSuchAccount
}

// Update applies patch to the account with id.
func (r *Registry) Update(ctx context.Context, id string, patch Patch) (model.Account, error) {
	var updated model.Account
	_, err := store.Mutate(ctx, r.kv, store.KeyUsers, func(users *[]model.Account, _ bool) error {
		for i := range *users {
			if (*users)[i].ID != id {
				continue
			}
			acc := (*users)[i]
			if err := apply(&acc, patch); err != nil {
				return err
			}
			(*users)[i] = acc
			updated = acc
			return nil
		}
		return ErrNoSuchAccount
	})
	if err != nil {
		if errors.Is(err, store.ErrFailure) || errors.Is(err, store.ErrConflict) {
			return model.Account{}, errors.Wrapf(err, "update %s", id)
		}
		return model.Account{}, err
	}
	return updated, nil
}

// Logout clears the session key.
func (r *Registry) Logout(ctx context.Context) error {
	return errors.Wrap(r.kv.Remove(ctx, store.KeySession), "logout")
}

// LogoutAccount clears the session key only while it still names id. It
// reports whether the key was cleared.
func (r *Registry) LogoutAccount(ctx context.Context, id string) (bool, error) {
	key := store.KeySession
	snap, err := store.Load[model.Session](ctx, r.kv, key)
	if err != nil {
		return false, errors.Wrap(err, "logout")
	}
	if !snap.Exists() || snap.Value.AccountID != id {
		return false, nil
	}
	ok, err := store.RemoveIf(ctx, r.kv, key, snap.Raw)
	return ok, errors.Wrap(err, "logout")
}

// Current resolves the session key to its account.
func (r *Registry) Current(ctx context.Context) (model.Account, error) {
	snap, err := store.Load[model.Session](ctx, r.kv, store.KeySession)
	if err != nil {
		return model.Account{}, errors.Wrap(err, "load session")
	}
	if !snap.Exists() {
		return model.Account{}, ErrNotLoggedIn
	}
	return r.Get(ctx, snap.Value.AccountID)
}

// Accounts returns every registered account in registration order.
func (r *Registry) Accounts(ctx context.Context) ([]model.Account, error) {
	snap, err := store.Load[[]model.Account](ctx, r.kv, store.KeyUsers)
	if err != nil {
		return nil, errors.Wrap(err, "load users")
	}
	return snap.Value, nil
}

func (r *Registry) Get(ctx context.Context, id string) (model.Account, error) {
	users, err := r.Accounts(ctx)
	if err != nil {
		return model.Account{}, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.Account{}, ErrNoSuchAccount
}

// Student resolves id and requires the student role.
func (r *Registry) Student(ctx context.Context, id string) (model.Account, error) {
	return r.withRole(ctx, id, model.RoleStudent)
}

// Professor resolves id and requires the professor role.
func (r *Registry) Professor(ctx context.Context, id string) (model.Account, error) {
	return r.withRole(ctx, id, model.RoleProfessor)
}

func (r *Registry) withRole(ctx context.Context, id string, role model.Role) (model.Account, error) {
	acc, err := r.Get(ctx, id)
	if err != nil {
		return model.Account{}, err
	}
	if acc.Role != role {
		return model.Account{}, errors.Wrapf(ErrRoleMismatch, "%s is not a %s", id, role)
	}
	return acc, nil
}

func (r *Registry) setSession(ctx context.Context, acc model.Account) error {
	err := store.Save(ctx, r.kv, store.KeySession, model.Session{AccountID: acc.ID, Role: acc.Role})
	return errors.Wrap(err, "set session")
}

func apply(acc *model.Account, p Patch) error {
	if p.ID != nil && *p.ID != acc.ID {
		return errors.Wrap(ErrImmutableField, "id")
	}
	if p.Role != nil && *p.Role != acc.Role {
		return errors.Wrap(ErrImmutableField, "role")
	}
	if p.Email != nil && normalizeEmail(*p.Email) != normalizeEmail(acc.Email) {
		return errors.Wrap(ErrImmutableField, "email")
	}
	if p.Section != nil {
		if !acc.IsStudent() {
			return errors.Wrap(ErrRoleMismatch, "section")
		}
		if acc.Section != "" && *p.Section != acc.Section {
			return errors.Wrap(ErrImmutableField, "section")
		}
		if !p.Section.Valid() {
			return model.ErrUnknownSection
		}
		acc.Section = *p.Section
	}
	if acc.IsStudent() && (p.ProfessorNumber != nil || p.Subject != nil) {
		return errors.Wrap(ErrRoleMismatch, "professor fields on a student")
	}
	if acc.IsProfessor() && p.DepartmentNumber != nil {
		return errors.Wrap(ErrRoleMismatch, "departmentNumber on a professor")
	}

	setTrimmed(&acc.FullName, p.FullName)
	setTrimmed(&acc.FamilyName, p.FamilyName)
	setTrimmed(&acc.DepartmentNumber, p.DepartmentNumber)
	setTrimmed(&acc.ProfessorNumber, p.ProfessorNumber)
	setTrimmed(&acc.Subject, p.Subject)
	if p.Photo != nil {
		acc.Photo = *p.Photo
	}
	return nil
}

func setTrimmed(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
