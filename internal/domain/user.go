package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// AuthToken is a signed credential issued to a user on signup or login.
type AuthToken struct {
	Token     string
	CreatedAt time.Time
}

// User represents an account of the system.
//
// Password holds the bcrypt hash once the record has been saved. Any value that
// differs from the last stored hash counts as a new plaintext and is hashed by the
// save pipeline exactly once.
type User struct {
	ID        string
	Name      string
	Age       *int
	Email     string
	Password  string
	Tokens    []AuthToken
	Avatar    []byte
	CreatedAt time.Time
	UpdatedAt time.Time

	passwordChanged bool
	storedPassword  string
}

// SetPassword replaces the password with a plaintext value and marks it for hashing.
func (u *User) SetPassword(plain string) {
	u.Password = strings.TrimSpace(plain)
	u.passwordChanged = true
}

// PasswordChanged reports whether Password currently holds an unhashed plaintext,
// either set through SetPassword or assigned directly.
func (u *User) PasswordChanged() bool {
	return u.passwordChanged || u.Password != u.storedPassword
}

// MarkPasswordHashed stores the hash and clears the change mark. Stores call it
// with the persisted value when loading a record.
func (u *User) MarkPasswordHashed(hash string) {
	u.Password = hash
	u.storedPassword = hash
	u.passwordChanged = false
}

// HasToken reports whether token is among the user's issued tokens.
func (u *User) HasToken(token string) bool {
	for _, t := range u.Tokens {
		if t.Token == token {
			return true
		}
	}
	return false
}

// RemoveToken drops token from the issued list and reports whether it was present.
func (u *User) RemoveToken(token string) bool {
	kept := u.Tokens[:0]
	removed := false
	for _, t := range u.Tokens {
		if t.Token == token {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	u.Tokens = kept
	return removed
}

// PublicUser is the external representation of a User.
type PublicUser struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name,omitempty"`
	Age       *int      `json:"age,omitempty"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Public returns a copy of the user without password, tokens and avatar.
func (u *User) Public() PublicUser {
	p := PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.Age != nil {
		age := *u.Age
		p.Age = &age
	}
	return p
}

// MarshalJSON never serializes the password, tokens or avatar.
func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Public())
}
