package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/sakif/greeting-cards/internal/model"
)

// newTestTokenService creates a TokenService with a fixed, known secret so
// tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func testUser(id string, role model.Role) *model.User {
	return &model.User{ID: id, Username: "user-" + id, Role: role}
}

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		ttl     time.Duration
		wantErr bool
	}{
		{"valid", "this-is-16-chars", time.Hour, false},
		{"short secret", "short", time.Hour, true},
		{"zero ttl", "this-is-16-chars", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := NewTokenService(tt.secret, tt.ttl)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewTokenService() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && ts.TTL() != tt.ttl {
				t.Errorf("TTL() = %v, want %v", ts.TTL(), tt.ttl)
			}
		})
	}
}

// =========================================================================
// GENERATE / VALIDATE TESTS
// =========================================================================

func TestGenerate_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate(testUser("u1", model.RoleMember))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	// header.payload.signature
	if got := strings.Count(token, "."); got != 2 {
		t.Errorf("token has %d dots, want 2: %s", got, token)
	}
}

func TestGenerate_RejectsIncompleteUser(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.Generate(nil); err == nil {
		t.Error("Generate(nil) should fail")
	}
	if _, err := ts.Generate(&model.User{Role: model.RoleAdmin}); err == nil {
		t.Error("Generate() without ID should fail")
	}
	if _, err := ts.Generate(&model.User{ID: "x", Role: "superuser"}); err == nil {
		t.Error("Generate() with unknown role should fail")
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	for _, role := range []model.Role{model.RoleMember, model.RoleReviewer, model.RoleAdmin} {
		t.Run(string(role), func(t *testing.T) {
			user := testUser("id-"+string(role), role)
			token, err := ts.Generate(user)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}

			actor, err := ts.Validate(token)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			want := model.Actor{ID: user.ID, Name: user.Username, Role: role}
			if actor != want {
				t.Errorf("Validate() = %+v, want %+v", actor, want)
			}
		})
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration(testUser("u1", model.RoleMember), -time.Minute)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	_, err = ts.Validate(token)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Errorf("Validate() error = %v, want expiry error", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	good, _ := ts.Generate(testUser("u1", model.RoleAdmin))

	other, _ := NewTokenService("a-completely-different-secret!", time.Hour)
	foreign, _ := other.Generate(testUser("u1", model.RoleAdmin))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"tampered", good[:len(good)-2] + "xx"},
		{"wrong secret", foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.Validate(tt.token); err == nil {
				t.Error("Validate() should have failed")
			}
		})
	}
}
