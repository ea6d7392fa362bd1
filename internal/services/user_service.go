package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-review-catalog/internal/authz"
	"github.com/tbourn/go-review-catalog/internal/domain"
	"github.com/tbourn/go-review-catalog/internal/repo"
)

var usernameRE = regexp.MustCompile(`^[\w.@+-]+$`)

// UserInput creates an account on behalf of an admin.
type UserInput struct {
	Username  string `json:"username"   validate:"required,max=150"`
	Email     string `json:"email"      validate:"required,email,max=40"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name"  validate:"max=150"`
	Bio       string `json:"bio"        validate:"max=500"`
	Role      string `json:"role"       validate:"role"`
}

// UserPatch updates a subset of profile fields. Nil means unchanged.
type UserPatch struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Bio       *string `json:"bio"`
	Role      *string `json:"role"`
}

// UserService manages accounts. Access control is applied at the route
// level; the service only enforces field rules.
type UserService struct {
	DB *gorm.DB
}

// List returns one page of accounts whose username contains search.
func (s *UserService) List(ctx context.Context, search string, page, pageSize int) ([]domain.User, int64, error) {
	offset, limit := pageBounds(page, pageSize)
	total, err := repo.CountUsers(ctx, s.DB, search)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.User{}, 0, nil
	}
	users, err := repo.ListUsersPage(ctx, s.DB, search, offset, limit)
	return users, total, err
}

// Create adds an active account without a confirmation code.
func (s *UserService) Create(ctx context.Context, in UserInput) (*domain.User, error) {
	in.Username = cleanText(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := checkUsername(in.Username); err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, invalid("role", "%s", err.Error())
	}
	u := &domain.User{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: cleanText(in.FirstName),
		LastName:  cleanText(in.LastName),
		Bio:       cleanText(in.Bio),
		Role:      role,
		IsActive:  true,
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return u, nil
}

// Get returns the account with username.
func (s *UserService) Get(ctx context.Context, username string) (*domain.User, error) {
	u, err := repo.GetUserByUsername(ctx, s.DB, username)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound)
	}
	return u, nil
}

// Update applies patch to the account with username.
func (s *UserService) Update(ctx context.Context, username string, patch UserPatch) (*domain.User, error) {
	u, err := s.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	fields, err := patchFields(patch, true)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, u.ID, fields)
}

// Delete removes the account with username and everything it authored.
func (s *UserService) Delete(ctx context.Context, username string) error {
	u, err := s.Get(ctx, username)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return notFoundAs(repo.DeleteUser(ctx, tx, u.ID), ErrUserNotFound)
	})
}

// Me returns the caller's own account.
func (s *UserService) Me(ctx context.Context, p authz.Principal) (*domain.User, error) {
	if err := authz.Check(p, authz.Read, authz.Authenticated); err != nil {
		return nil, err
	}
	u, err := repo.GetUserByID(ctx, s.DB, p.ID)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound)
	}
	return u, nil
}

// UpdateMe applies patch to the caller's own account. Email and role are
// read-only here and silently ignored.
func (s *UserService) UpdateMe(ctx context.Context, p authz.Principal, patch UserPatch) (*domain.User, error) {
	if err := authz.Check(p, authz.Write, authz.Authenticated); err != nil {
		return nil, err
	}
	patch.Email, patch.Role = nil, nil
	fields, err := patchFields(patch, false)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, p.ID, fields)
}

func (s *UserService) apply(ctx context.Context, id string, fields map[string]any) (*domain.User, error) {
	if err := repo.UpdateUser(ctx, s.DB, id, fields); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateUsername
		}
		return nil, notFoundAs(err, ErrUserNotFound)
	}
	u, err := repo.GetUserByID(ctx, s.DB, id)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound)
	}
	return u, nil
}

func patchFields(p UserPatch, privileged bool) (map[string]any, error) {
	fields := map[string]any{}
	if p.Username != nil {
		name := cleanText(*p.Username)
		if err := checkUsername(name); err != nil {
			return nil, err
		}
		fields["username"] = name
	}
	if privileged && p.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		if err := ValidateEmail(email); err != nil {
			return nil, err
		}
		fields["email"] = email
	}
	if privileged && p.Role != nil {
		role, err := domain.ParseRole(*p.Role)
		if err != nil {
			return nil, invalid("role", "%s", err.Error())
		}
		fields["role"] = role
	}
	for name, v := range map[string]*string{"first_name": p.FirstName, "last_name": p.LastName} {
		if v == nil {
			continue
		}
		val := cleanText(*v)
		if len([]rune(val)) > 150 {
			return nil, invalid(name, "ensure this field has no more than 150 characters")
		}
		fields[name] = val
	}
	if p.Bio != nil {
		bio := cleanText(*p.Bio)
		if len([]rune(bio)) > 500 {
			return nil, invalid("bio", "ensure this field has no more than 500 characters")
		}
		fields["bio"] = bio
	}
	return fields, nil
}

func checkUsername(name string) error {
	switch {
	case name == "":
		return invalid("username", "this field is required")
	case len([]rune(name)) > 150:
		return invalid("username", "ensure this field has no more than 150 characters")
	case strings.EqualFold(name, "me"):
		return invalid("username", "username %q is reserved", name)
	case !usernameRE.MatchString(name):
		return invalid("username", "enter a valid username of letters, digits and @/./+/-/_")
	}
	return nil
}
