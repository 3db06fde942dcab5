package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intersectx/pkg/chattypes"
)

func TestStore_LoginLogout(t *testing.T) {
	store := NewStore()
	assert.Empty(t, store.Token())
	assert.Nil(t, store.CurrentUser())

	store.Login("secret", &chattypes.User{Email: "ada@intersectx.io"})
	assert.Equal(t, "secret", store.Token())
	require.NotNil(t, store.CurrentUser())
	assert.Equal(t, "ada@intersectx.io", store.CurrentUser().Email)

	store.Logout()
	assert.Empty(t, store.Token())
	assert.Nil(t, store.CurrentUser())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("INTERSECTX_API_TOKEN", "env-token")
	t.Setenv("INTERSECTX_USER_EMAIL", "grace@intersectx.io")
	t.Setenv("INTERSECTX_USER_FIRST_NAME", "Grace")
	t.Setenv("INTERSECTX_USER_LAST_NAME", "Hopper")

	store := FromEnv()

	assert.Equal(t, "env-token", store.Token())
	user := store.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "grace@intersectx.io", user.Email)
	assert.Equal(t, "Grace Hopper", user.DisplayName())
}

func TestFromEnv_MissingVariablesStayAnonymous(t *testing.T) {
	t.Setenv("INTERSECTX_API_TOKEN", "")
	t.Setenv("INTERSECTX_USER_EMAIL", "")

	store := FromEnv()

	assert.Empty(t, store.Token())
	assert.Nil(t, store.CurrentUser())
}
