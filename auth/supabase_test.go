package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSupabase(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userEndpointPath, r.URL.Path)
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"driver-42","email":"d@example.com"}`))
	}))
}

func TestAuthenticate(t *testing.T) {
	srv := newSupabase(t)
	defer srv.Close()
	a := NewSupabaseAuthenticator(srv.URL, "anon")

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	driver, err := a.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "driver-42", driver.ID)
	assert.Equal(t, "d@example.com", driver.Email)
}

func TestAuthenticate_Cookie(t *testing.T) {
	srv := newSupabase(t)
	defer srv.Close()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: "good"})
	driver, err := NewSupabaseAuthenticator(srv.URL, "anon").Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "driver-42", driver.ID)
}

func TestAuthenticate_Rejected(t *testing.T) {
	srv := newSupabase(t)
	defer srv.Close()
	a := NewSupabaseAuthenticator(srv.URL, "anon")

	noToken := httptest.NewRequest(http.MethodPost, "/", nil)
	_, err := a.Authenticate(noToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	badToken := httptest.NewRequest(http.MethodPost, "/", nil)
	badToken.Header.Set("Authorization", "Bearer expired")
	_, err = a.Authenticate(badToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	basic := httptest.NewRequest(http.MethodPost, "/", nil)
	basic.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	_, err = a.Authenticate(basic)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
