// Package auth は利用者の認証とアクセストークンの発行を提供します
package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin     = "admin"
	RoleLibrarian = "librarian"
	RoleUser      = "user"
)

// ErrInvalidCredentials はメールアドレスまたはパスワードが一致しないことを表します
var ErrInvalidCredentials = errors.New("invalid email or password")

// User は認証済みの利用者です
type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// IsLibrarian は予約の承認や蔵書登録ができるロールかを返します
func (u User) IsLibrarian() bool {
	return IsLibrarianRole(u.Role)
}

// IsLibrarianRole は role が司書権限を持つかを返します
func IsLibrarianRole(role string) bool {
	return role == RoleLibrarian || role == RoleAdmin
}

// Directory は利用者の認証を担当するインターフェースです
type Directory interface {
	Authenticate(email, password string) (User, error)
}

// Credential は StaticDirectory に登録する利用者です
type Credential struct {
	User
	Password string
}

// DemoCredentials はデモ用の利用者です
var DemoCredentials = []Credential{
	{User: User{Email: "admin@library.com", Name: "Library Admin", Role: RoleAdmin}, Password: "admin123"},
	{User: User{Email: "librarian@library.com", Name: "Head Librarian", Role: RoleLibrarian}, Password: "librarian123"},
	{User: User{Email: "user@library.com", Name: "Library User", Role: RoleUser}, Password: "user123"},
}

type entry struct {
	user User
	hash []byte
}

// StaticDirectory は起動時に与えられた利用者だけを認証する Directory の実装です
// パスワードは bcrypt のハッシュとしてのみ保持します
type StaticDirectory struct {
	users map[string]entry
}

// NewStaticDirectory は新しいStaticDirectoryを作成します
func NewStaticDirectory(credentials []Credential, cost int) (*StaticDirectory, error) {
	d := &StaticDirectory{users: make(map[string]entry, len(credentials))}
	for _, c := range credentials {
		hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password for %s: %w", c.Email, err)
		}
		d.users[normalizeEmail(c.Email)] = entry{user: c.User, hash: hash}
	}
	return d, nil
}

// Authenticate はメールアドレスとパスワードを検証します
func (d *StaticDirectory) Authenticate(email, password string) (User, error) {
	e, ok := d.users[normalizeEmail(email)]
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(e.hash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return e.user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
