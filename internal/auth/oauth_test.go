package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGitHub serves the two GitHub endpoints Exchange talks to.
func fakeGitHub(t *testing.T, profile map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad_verification_code"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gh-token","token_type":"bearer"}`))
	})

	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newFakeProvider(srv *httptest.Server) *GitHubProvider {
	return NewGitHubProvider("client-id", "client-secret", "http://localhost/cb").
		withEndpoints(oauth2.Endpoint{
			AuthURL:   srv.URL + "/login/oauth/authorize",
			TokenURL:  srv.URL + "/login/oauth/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		}, srv.URL)
}

func TestAuthURL_CarriesStateAndClient(t *testing.T) {
	p := NewGitHubProvider("client-id", "secret", "http://localhost:8080/auth/github/callback")
	state := NewState()

	u, err := url.Parse(p.AuthURL(state))
	require.NoError(t, err)

	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, state, u.Query().Get("state"))
	assert.Equal(t, "client-id", u.Query().Get("client_id"))
	assert.Equal(t, "http://localhost:8080/auth/github/callback", u.Query().Get("redirect_uri"))
}

func TestNewState_Unique(t *testing.T) {
	assert.NotEqual(t, NewState(), NewState())
}

func TestExchange(t *testing.T) {
	srv := fakeGitHub(t, map[string]any{
		"id": 4242, "login": "octocat", "email": "octo@example.com", "avatar_url": "https://a/1.png",
	})
	p := newFakeProvider(srv)

	gh, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)

	assert.Equal(t, int64(4242), gh.ID)
	assert.Equal(t, "octocat", gh.Login)

	u := gh.ToUser()
	assert.Equal(t, int64(4242), u.GitHubID)
	assert.Equal(t, "octocat", u.Username)
	assert.Equal(t, "octo@example.com", u.Email)
	assert.Empty(t, u.ID)
}

func TestExchange_BadCode(t *testing.T) {
	srv := fakeGitHub(t, map[string]any{"id": 1, "login": "x"})

	_, err := newFakeProvider(srv).Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestExchange_IncompleteProfile(t *testing.T) {
	srv := fakeGitHub(t, map[string]any{"id": 0, "login": ""})

	_, err := newFakeProvider(srv).Exchange(context.Background(), "good-code")
	assert.Error(t, err)
}
