package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusroll/internal/model"
)

var prof = model.Account{ID: "0192f0c1-aaaa-7000-8000-000000000001", Role: model.RoleProfessor}

func TestIssueAndParse(t *testing.T) {
	s := NewSigner("campusroll", "k", time.Minute, time.Hour)
	pair, err := s.Issue(prof)
	require.NoError(t, err)
	assert.True(t, pair.RefreshExp.After(pair.AccessExp))

	claims, err := s.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, prof.ID, claims.AccountID())
	assert.Equal(t, model.RoleProfessor, claims.Role)

	_, err = s.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrWrongTokenKind)

	rotated, err := s.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	claims, err = s.ParseAccess(rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, prof.ID, claims.Subject)

	_, err = s.Refresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrWrongTokenKind)
}

func TestParseRejects(t *testing.T) {
	s := NewSigner("campusroll", "k", time.Minute, time.Hour)
	pair, err := s.Issue(prof)
	require.NoError(t, err)

	tests := []struct {
		name   string
		signer *Signer
		token  string
	}{
		{"other key", NewSigner("campusroll", "other", time.Minute, time.Hour), pair.AccessToken},
		{"other issuer", NewSigner("elsewhere", "k", time.Minute, time.Hour), pair.AccessToken},
		{"garbage", s, "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.signer.ParseAccess(tt.token)
			assert.Error(t, err)
		})
	}

	expired := NewSigner("campusroll", "k", time.Minute, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = expired.ParseAccess(pair.AccessToken)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewSigner("campusroll", "k", time.Minute, time.Hour)
	pair, err := s.Issue(prof)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/prof", Authenticate(s), RequireRole(model.RoleProfessor), func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.String(http.StatusOK, claims.Subject)
	})
	r.GET("/student", Authenticate(s), RequireRole(model.RoleStudent), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no token", "/prof", "", http.StatusUnauthorized},
		{"bad token", "/prof", "Bearer nope", http.StatusUnauthorized},
		{"refresh token", "/prof", "Bearer " + pair.RefreshToken, http.StatusUnauthorized},
		{"ok", "/prof", "Bearer " + pair.AccessToken, http.StatusOK},
		{"wrong role", "/student", "bearer " + pair.AccessToken, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK && tt.path == "/prof" {
				assert.Equal(t, prof.ID, w.Body.String())
			}
		})
	}
}
