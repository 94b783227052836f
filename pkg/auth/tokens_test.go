package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/ahmed20kamel/project-management-api/internal/rbac"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestTokens(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(testSecret, "pmapi-test", 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	return m
}

func TestNewTokenManager_Validation(t *testing.T) {
	_, err := NewTokenManager([]byte("short"), "x", time.Minute, time.Hour)
	assert.ErrorIs(t, err, ErrShortSecret)

	_, err = NewTokenManager(testSecret, "x", 0, time.Hour)
	assert.Error(t, err)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	m := newTestTokens(t)
	p := Principal{UserID: 42, TenantID: uuid.New(), Role: rbac.RoleCompanyAdmin}

	pair, err := m.Issue(p)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(900), pair.ExpiresIn)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	got, err := m.Parse(pair.AccessToken, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	got, err = m.Parse(pair.RefreshToken, KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestTokenManager_SuperuserWithoutTenant(t *testing.T) {
	m := newTestTokens(t)
	pair, err := m.Issue(Principal{UserID: 1, Role: rbac.RoleSuperAdmin, Superuser: true})
	require.NoError(t, err)

	got, err := m.Parse(pair.AccessToken, KindAccess)
	require.NoError(t, err)
	assert.False(t, got.HasTenant())
	assert.True(t, got.Superuser)
}

func TestTokenManager_Rejects(t *testing.T) {
	m := newTestTokens(t)
	pair, err := m.Issue(Principal{UserID: 7, TenantID: uuid.New(), Role: rbac.RoleViewer})
	require.NoError(t, err)

	t.Run("wrong kind", func(t *testing.T) {
		_, err := m.Parse(pair.RefreshToken, KindAccess)
		assert.ErrorIs(t, err, ErrWrongTokenKind)
	})

	t.Run("tampered", func(t *testing.T) {
		parts := strings.Split(pair.AccessToken, ".")
		require.Len(t, parts, 3)
		sig := []byte(parts[2])
		if sig[0] == 'A' {
			sig[0] = 'B'
		} else {
			sig[0] = 'A'
		}
		_, err := m.Parse(parts[0]+"."+parts[1]+"."+string(sig), KindAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := NewTokenManager([]byte("ffffffffffffffffffffffffffffffff"), "pmapi-test", time.Minute, time.Hour)
		require.NoError(t, err)
		_, err = other.Parse(pair.AccessToken, KindAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other issuer", func(t *testing.T) {
		other, err := NewTokenManager(testSecret, "someone-else", time.Minute, time.Hour)
		require.NoError(t, err)
		_, err = other.Parse(pair.AccessToken, KindAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Parse("not.a.token", KindAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenManager_Expiry(t *testing.T) {
	m := newTestTokens(t)
	issued := time.Now()
	m.now = func() time.Time { return issued }

	pair, err := m.Issue(Principal{UserID: 3, Role: rbac.RoleStaff, TenantID: uuid.New()})
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(16 * time.Minute) }
	_, err = m.Parse(pair.AccessToken, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken, "access token must expire after 15m")

	_, err = m.Parse(pair.RefreshToken, KindRefresh)
	assert.NoError(t, err, "refresh token outlives the access token")
}
