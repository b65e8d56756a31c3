package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newSessions(t *testing.T) (*Sessions, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	signer := NewSigner("test-key", "membership", 15*time.Minute, time.Hour)
	signer.now = c.now
	rev := NewMemoryRevoker()
	rev.now = c.now
	return NewSessions("letmein", signer, rev, nil), c
}

func TestLoginChecksAccessCode(t *testing.T) {
	s, _ := newSessions(t)
	ctx := context.Background()

	_, err := s.Login(ctx, "wrong")
	assert.ErrorIs(t, err, ErrInvalidAccessCode)
	_, err = s.Login(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidAccessCode)

	pair, err := s.Login(ctx, "letmein")
	require.NoError(t, err)
	claims, err := s.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, Operator, claims.Subject)
	assert.Equal(t, KindAccess, claims.Kind)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	s, _ := newSessions(t)
	ctx := context.Background()
	pair, err := s.Login(ctx, "letmein")
	require.NoError(t, err)

	_, err = s.Authenticate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = s.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestForeignAndExpiredTokens(t *testing.T) {
	s, c := newSessions(t)
	ctx := context.Background()

	other := NewSigner("other-key", "membership", time.Minute, time.Minute)
	other.now = c.now
	foreign, err := other.Issue(Operator)
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, foreign.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := NewSigner("test-key", "someone-else", time.Minute, time.Minute)
	wrongIssuer.now = c.now
	pair, err := wrongIssuer.Issue(Operator)
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	pair, err = s.Login(ctx, "letmein")
	require.NoError(t, err)
	c.t = c.t.Add(16 * time.Minute)
	_, err = s.Authenticate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	s, _ := newSessions(t)
	ctx := context.Background()
	pair, err := s.Login(ctx, "letmein")
	require.NoError(t, err)

	next, err := s.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, next.AccessToken)

	_, err = s.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	s, c := newSessions(t)
	ctx := context.Background()
	pair, err := s.Login(ctx, "letmein")
	require.NoError(t, err)
	claims, err := s.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx, claims))
	_, err = s.Authenticate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrRevoked)

	rev := s.revoked.(*MemoryRevoker)
	c.t = c.t.Add(time.Hour)
	ok, _ := rev.Revoked(ctx, claims.ID)
	assert.False(t, ok, "revocations lapse with the token")
}

func TestOperatorAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s, _ := newSessions(t)
	pair, err := s.Login(context.Background(), "letmein")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/private", OperatorAuth(s), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.Subject)
	})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"refresh token", "Bearer " + pair.RefreshToken, http.StatusUnauthorized},
		{"valid", "bearer " + pair.AccessToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
