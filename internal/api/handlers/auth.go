package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type Role int

const (
	RoleUser Role = iota + 1
	RoleAdmin
)

func ParseRole(s string) (Role, error) {
	switch strings.TrimPrefix(strings.ToUpper(s), "ROLE_") {
	case "USER":
		return RoleUser, nil
	case "ADMIN":
		return RoleAdmin, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "USER"
	case RoleAdmin:
		return "ADMIN"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Includes reports whether r grants other. ADMIN includes USER.
func (r Role) Includes(other Role) bool {
	return r >= other
}

type Credentials struct {
	Username string
	Password string
	Role     string
}

type Principal struct {
	Username string
	Role     Role
}

type account struct {
	hash []byte
	role Role
}

// Authenticator checks HTTP basic credentials against a fixed user set.
type Authenticator struct {
	users map[string]account
	dummy []byte
}

// NewAuthenticator hashes plain passwords with cost. Passwords that already
// look like bcrypt hashes are used as they are.
func NewAuthenticator(creds []Credentials, cost int) (*Authenticator, error) {
	a := &Authenticator{users: make(map[string]account, len(creds))}

	for _, c := range creds {
		if c.Username == "" {
			return nil, errors.New("user with empty name")
		}
		if _, dup := a.users[c.Username]; dup {
			return nil, fmt.Errorf("user %q declared twice", c.Username)
		}

		role, err := ParseRole(c.Role)
		if err != nil {
			return nil, fmt.Errorf("user %q: %w", c.Username, err)
		}

		hash := []byte(c.Password)
		if _, err := bcrypt.Cost(hash); err != nil {
			hash, err = bcrypt.GenerateFromPassword([]byte(c.Password), cost)
			if err != nil {
				return nil, fmt.Errorf("user %q: hash password: %w", c.Username, err)
			}
		}

		a.users[c.Username] = account{hash: hash, role: role}
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("unused"), cost)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}
	a.dummy = dummy

	return a, nil
}

func (a *Authenticator) authenticate(username, password string) (Principal, bool) {
	acc, ok := a.users[username]
	if !ok {
		// keep the timing of unknown users close to known ones
		_ = bcrypt.CompareHashAndPassword(a.dummy, []byte(password))
		return Principal{}, false
	}

	if bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		return Principal{}, false
	}

	return Principal{Username: username, Role: acc.role}, true
}

type principalKey struct{}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Require lets the request through when it carries valid basic credentials
// for a user whose role includes role.
func (a *Authenticator) Require(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				unauthorized(w)
				return
			}

			principal, ok := a.authenticate(username, password)
			if !ok {
				unauthorized(w)
				return
			}

			if !principal.Role.Includes(role) {
				writeError(w, http.StatusForbidden, "forbidden", "access denied", nil)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="store", charset="UTF-8"`)
	writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}
