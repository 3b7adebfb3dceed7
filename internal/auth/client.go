package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"iscevents/internal/model"
)

const profilePath = "/api/user-profile"

// ErrUnauthorized means the identity service explicitly rejected the
// credential. Transport failures are returned as distinct wrapped errors,
// though both surface to the caller as a 401.
var ErrUnauthorized = errors.New("unauthorized")

// Client talks to the external identity service. Every protected request is
// re-authenticated; no principal caching.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zerolog.Logger
}

func NewClient(baseURL string, log *zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		log:        log,
	}
}

type profileResponse struct {
	Success string `json:"success"`
	Data    struct {
		User model.Principal `json:"user"`
	} `json:"data"`
}

// Authenticate forwards the credential verbatim as the Authorization header
// of a profile lookup and returns the resolved principal.
func (c *Client) Authenticate(ctx context.Context, credential string) (*model.Principal, error) {
	if credential == "" {
		return nil, ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+profilePath, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity service unreachable: %w", err)
	}
	defer resp.Body.Close()

	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile response: %w", err)
	}

	if profile.Success != "true" || profile.Data.User.UserID == "" {
		return nil, ErrUnauthorized
	}

	principal := profile.Data.User
	return &principal, nil
}
