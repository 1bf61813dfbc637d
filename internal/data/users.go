// internal/data/users.go
package data

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base32"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/samber/lo"

	"github.com/aoideee/locallibrary/internal/validator"
)

// PermissionMarkReturned lets a librarian renew loans and manage authors.
const PermissionMarkReturned = "catalog.can_mark_returned"

// AnonymousUser stands in for requests that carry no credentials.
var AnonymousUser = &User{}

// User is an actor of the catalog. Account management lives elsewhere; the
// catalog only needs to resolve a bearer token to an id.
type User struct {
	ID        int64  `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Email     string `json:"email" db:"email"`
	Activated bool   `json:"activated" db:"activated"`
	TokenHash []byte `json:"-" db:"token_hash"`
}

// IsAnonymous reports whether u is the AnonymousUser sentinel.
func (u *User) IsAnonymous() bool {
	return u == AnonymousUser
}

// ValidateTokenPlaintext checks the shape of a bearer token.
func ValidateTokenPlaintext(v *validator.Validator, plaintext string) {
	v.Check(plaintext != "", "token", "must be provided")
	v.Check(len(plaintext) == 26, "token", "must be 26 bytes long")
}

// ValidateUser checks the fields of a new user.
func ValidateUser(v *validator.Validator, user *User) {
	v.Check(validator.NotBlank(user.Name), "name", "must be provided")
	v.Check(validator.MaxChars(user.Name, 500), "name", "must not be more than 500 characters long")
	v.Check(validator.NotBlank(user.Email), "email", "must be provided")
	v.Check(validator.Matches(user.Email, validator.EmailRX), "email", "must be a valid email address")
}

// GenerateToken returns a random 26-character token and its SHA-256 hash.
func GenerateToken() (string, []byte, error) {
	randomBytes := make([]byte, 16)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", nil, err
	}

	plaintext := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes)
	hash := sha256.Sum256([]byte(plaintext))
	return plaintext, hash[:], nil
}

// UserModel wraps the connection pool for the users table.
type UserModel struct {
	DB      Queryer
	Dialect Dialect
}

// Insert registers a user and returns the plaintext bearer token issued for
// them. Only the token's hash is stored.
func (m UserModel) Insert(ctx context.Context, user *User) (string, error) {
	plaintext, hash, err := GenerateToken()
	if err != nil {
		return "", err
	}
	user.TokenHash = hash

	id, err := insertReturningID(ctx, m.DB, m.Dialect,
		m.Dialect.builder().Insert("users").
			Columns("name", "email", "activated", "token_hash").
			Values(user.Name, user.Email, user.Activated, user.TokenHash))
	if err != nil {
		return "", mapConstraintError(err)
	}
	user.ID = id

	return plaintext, nil
}

// GetForToken resolves a plaintext bearer token to its activated user.
func (m UserModel) GetForToken(ctx context.Context, plaintext string) (*User, error) {
	hash := sha256.Sum256([]byte(plaintext))

	query, args, err := m.Dialect.builder().
		Select("id", "name", "email", "activated", "token_hash").
		From("users").
		Where(squirrel.Expr("token_hash = ?", hash[:])).
		Where(squirrel.Eq{"activated": true}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var user User
	if err := m.DB.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Permissions is the set of capability codes held by a user.
type Permissions []string

// Include reports whether code is in the set.
func (p Permissions) Include(code string) bool {
	return lo.Contains(p, code)
}

// PermissionModel wraps the connection pool for the user_permissions table.
type PermissionModel struct {
	DB      Queryer
	Dialect Dialect
}

// GetAllForUser returns every permission code held by a user.
func (m PermissionModel) GetAllForUser(ctx context.Context, userID int64) (Permissions, error) {
	query, args, err := m.Dialect.builder().
		Select("code").From("user_permissions").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("code ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	permissions := Permissions{}
	if err := m.DB.SelectContext(ctx, &permissions, query, args...); err != nil {
		return nil, err
	}
	return permissions, nil
}

// AddForUser grants the given codes to a user.
func (m PermissionModel) AddForUser(ctx context.Context, userID int64, codes ...string) error {
	codes = lo.Uniq(codes)
	if len(codes) == 0 {
		return nil
	}

	ib := m.Dialect.builder().Insert("user_permissions").Columns("user_id", "code")
	for _, code := range codes {
		ib = ib.Values(userID, code)
	}

	query, args, err := ib.ToSql()
	if err != nil {
		return err
	}
	if _, err := m.DB.ExecContext(ctx, query, args...); err != nil {
		return mapConstraintError(err)
	}
	return nil
}
