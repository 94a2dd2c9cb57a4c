package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuthService(db, "test-secret")

	resp, err := svc.Register(&RegisterRequest{
		Username: "mira",
		Email:    "mira@example.com",
		Password: "skyship123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "mira", resp.User.Username)
	assert.NotEqual(t, "skyship123", resp.User.Password)

	login, err := svc.Login(&LoginRequest{Email: "mira@example.com", Password: "skyship123"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)
	assert.NotEmpty(t, login.Token)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuthService(db, "test-secret")

	_, err := svc.Register(&RegisterRequest{Username: "mira", Email: "mira@example.com", Password: "skyship123"})
	require.NoError(t, err)

	_, err = svc.Register(&RegisterRequest{Username: "other", Email: "mira@example.com", Password: "skyship123"})
	assert.Error(t, err)
}

func TestLoginWrongPassword(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuthService(db, "test-secret")

	_, err := svc.Register(&RegisterRequest{Username: "mira", Email: "mira@example.com", Password: "skyship123"})
	require.NoError(t, err)

	_, err = svc.Login(&LoginRequest{Email: "mira@example.com", Password: "wrong"})
	assert.Error(t, err)

	_, err = svc.Login(&LoginRequest{Email: "nobody@example.com", Password: "skyship123"})
	assert.Error(t, err)
}

func TestGetProfile(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuthService(db, "test-secret")

	resp, err := svc.Register(&RegisterRequest{Username: "mira", Email: "mira@example.com", Password: "skyship123"})
	require.NoError(t, err)

	user, err := svc.GetProfile(resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "mira@example.com", user.Email)

	_, err = svc.GetProfile(404)
	assert.ErrorIs(t, err, ErrNotFound)
}
