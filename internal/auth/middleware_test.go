package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func identityApp(verifier *Verifier) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(verifier))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		id := FromContext(c)
		return c.JSON(fiber.Map{"user_id": id.UserID, "guest": id.Guest})
	})
	return app
}

func TestMiddleware_BearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "user-9"})
	}))
	defer srv.Close()

	app := identityApp(NewVerifier(srv.URL, ""))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer tok")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		UserID string `json:"user_id"`
		Guest  bool   `json:"guest"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.UserID != "user-9" || body.Guest {
		t.Errorf("identity = %+v, want authenticated user-9", body)
	}
}

func TestMiddleware_BadTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	app := identityApp(NewVerifier(srv.URL, ""))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer bad")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 not a guest downgrade", resp.StatusCode)
	}
}

func TestMiddleware_SessionHeaderIsGuest(t *testing.T) {
	app := identityApp(nil)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(SessionHeader, "guest_abc")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		UserID string `json:"user_id"`
		Guest  bool   `json:"guest"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.UserID != "guest_abc" || !body.Guest {
		t.Errorf("identity = %+v, want guest_abc guest", body)
	}
	if resp.Header.Get(SessionHeader) != "guest_abc" {
		t.Errorf("session header not echoed: %q", resp.Header.Get(SessionHeader))
	}
}

func TestRequireSession(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware(nil))
	app.Get("/history", RequireSession(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/history", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	req.Header.Set(SessionHeader, "guest_abc")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("guest session status = %d, want 200", resp.StatusCode)
	}
}

func TestMiddleware_MintsGuestSession(t *testing.T) {
	app := identityApp(nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	minted := resp.Header.Get(SessionHeader)
	if !strings.HasPrefix(minted, "guest_") {
		t.Errorf("minted session = %q, want guest_ prefix", minted)
	}

	var body struct {
		UserID string `json:"user_id"`
		Guest  bool   `json:"guest"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.UserID != minted || !body.Guest {
		t.Errorf("identity %+v does not match minted session %q", body, minted)
	}
}
