package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var authTestSecret = []byte("auth-test-secret")

func authApp() *fiber.App {
	app := fiber.New()
	app.Use(BearerAuth(authTestSecret))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id": c.Locals("user_id"),
			"role":    c.Locals("role"),
		})
	})
	app.Get("/admin", RequireRole("admin", "super_admin"), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	return app
}

func issueToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authRequest(t *testing.T, app *fiber.App, target, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("GET %s: %v", target, err)
	}
	return resp
}

func TestBearerAuth(t *testing.T) {
	app := authApp()
	sub := uuid.NewString()

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{
			name:   "valid token",
			token:  issueToken(t, authTestSecret, jwt.MapClaims{"sub": sub, "role": "user", "exp": time.Now().Add(time.Hour).Unix()}),
			status: http.StatusOK,
		},
		{
			name:   "missing header",
			token:  "",
			status: http.StatusUnauthorized,
		},
		{
			name:   "wrong secret",
			token:  issueToken(t, []byte("other-secret"), jwt.MapClaims{"sub": sub, "exp": time.Now().Add(time.Hour).Unix()}),
			status: http.StatusUnauthorized,
		},
		{
			name:   "expired",
			token:  issueToken(t, authTestSecret, jwt.MapClaims{"sub": sub, "exp": time.Now().Add(-time.Hour).Unix()}),
			status: http.StatusUnauthorized,
		},
		{
			name:   "missing subject",
			token:  issueToken(t, authTestSecret, jwt.MapClaims{"role": "user", "exp": time.Now().Add(time.Hour).Unix()}),
			status: http.StatusUnauthorized,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := authRequest(t, app, "/whoami", tc.token)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestBearerAuthRejectsUnsignedToken(t *testing.T) {
	app := authApp()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	resp := authRequest(t, app, "/whoami", signed)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("alg=none token: expected 401, got %d", resp.StatusCode)
	}
}

func TestRequireRole(t *testing.T) {
	app := authApp()

	admin := issueToken(t, authTestSecret, jwt.MapClaims{"sub": uuid.NewString(), "role": "super_admin", "exp": time.Now().Add(time.Hour).Unix()})
	resp := authRequest(t, app, "/admin", admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin role: expected 200, got %d", resp.StatusCode)
	}

	user := issueToken(t, authTestSecret, jwt.MapClaims{"sub": uuid.NewString(), "role": "user", "exp": time.Now().Add(time.Hour).Unix()})
	resp = authRequest(t, app, "/admin", user)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("user role: expected 403, got %d", resp.StatusCode)
	}
}
