package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/krishi-mitra/backend/pkg/apierr"
)

// Identity is who a request acts as. Guests are server-minted session ids;
// account holders come back from the auth provider.
type Identity struct {
	UserID string
	Email  string
	Guest  bool
}

// Verifier checks bearer tokens against the auth provider's user endpoint.
// Tokens are opaque here; the provider is the only party that can judge them.
type Verifier struct {
	baseURL string
	anonKey string
	client  *http.Client
}

func NewVerifier(baseURL, anonKey string) *Verifier {
	return &Verifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (v *Verifier) Verify(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, apierr.Internal("Failed to build auth request.", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if v.anonKey != "" {
		req.Header.Set("apikey", v.anonKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, apierr.Unavailable("The auth service is unreachable.", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, apierr.Unauthorized("Invalid or expired session token.")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apierr.Unavailable(
			fmt.Sprintf("The auth service returned status %d.", resp.StatusCode),
			errors.New("unexpected auth service status"),
		)
	}

	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, apierr.Unavailable("The auth service returned a malformed response.", err)
	}
	if user.ID == "" {
		return nil, apierr.Unauthorized("Invalid or expired session token.")
	}

	return &Identity{UserID: user.ID, Email: user.Email}, nil
}
