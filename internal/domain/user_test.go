package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserJSON_HidesSecrets(t *testing.T) {
	age := 30
	u := User{
		ID:        "u1",
		Name:      "Jane",
		Age:       &age,
		Email:     "jane@example.com",
		Password:  "$2a$08$hash",
		Tokens:    []AuthToken{{Token: "tok"}},
		Avatar:    []byte{1, 2, 3},
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	for _, v := range []any{u, &u, []User{u}} {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "password")
		assert.NotContains(t, string(raw), "tokens")
		assert.NotContains(t, string(raw), "avatar")
		assert.NotContains(t, string(raw), "$2a$08$hash")
	}

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "u1", m["_id"])
	assert.Equal(t, "jane@example.com", m["email"])
	assert.Equal(t, float64(30), m["age"])
	assert.Contains(t, m, "createdAt")
	assert.Contains(t, m, "updatedAt")
}

func TestUser_PublicIsACopy(t *testing.T) {
	age := 30
	u := &User{ID: "u1", Age: &age}
	p := u.Public()
	*p.Age = 99
	assert.Equal(t, 30, *u.Age)
}

func TestUser_PasswordChangeMark(t *testing.T) {
	var u User
	assert.False(t, u.PasswordChanged())

	u.SetPassword("  secret99  ")
	assert.True(t, u.PasswordChanged())
	assert.Equal(t, "secret99", u.Password)

	u.MarkPasswordHashed("hash")
	assert.False(t, u.PasswordChanged())
	assert.Equal(t, "hash", u.Password)
}

func TestUser_Tokens(t *testing.T) {
	u := &User{Tokens: []AuthToken{{Token: "a"}, {Token: "b"}, {Token: "c"}}}
	assert.True(t, u.HasToken("b"))

	assert.True(t, u.RemoveToken("b"))
	assert.False(t, u.HasToken("b"))
	assert.Equal(t, []AuthToken{{Token: "a"}, {Token: "c"}}, u.Tokens)

	assert.False(t, u.RemoveToken("zzz"))
	assert.Len(t, u.Tokens, 2)
}

func TestUser_DirectPasswordAssignmentCountsAsChange(t *testing.T) {
	var u User
	u.MarkPasswordHashed("$2a$08$stored")
	assert.False(t, u.PasswordChanged())

	u.Password = "plain-text-1"
	assert.True(t, u.PasswordChanged())

	u.Password = "$2a$08$stored"
	assert.False(t, u.PasswordChanged())
}
