package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxBodyBytes = 1 << 20

// User mirrors the backend user object. CreatedAt stays a string so pages
// can decide how to render a missing or malformed value.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
}

// StatusCode reports the backend status of err, or 0 when err is not an APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("backend timeout must be > 0")
	}
	return &Client{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}, nil
}

// Health decodes the health body whatever the status code is, so a 503 with a
// JSON explanation still reaches the caller as a value.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/health", "", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	var out HealthStatus
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&out); err != nil {
		return HealthStatus{}, fmt.Errorf("decode health: %w", err)
	}
	return out, nil
}

func (c *Client) Signup(ctx context.Context, in SignupRequest) (User, error) {
	var out User
	if err := c.call(ctx, http.MethodPost, "/api/auth/signup", "", in, &out); err != nil {
		return User{}, err
	}
	return out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (Token, error) {
	body := map[string]string{"email": email, "password": password}
	var out Token
	if err := c.call(ctx, http.MethodPost, "/api/auth/login", "", body, &out); err != nil {
		return Token{}, err
	}
	if out.AccessToken == "" {
		return Token{}, fmt.Errorf("login response missing access token")
	}
	return out, nil
}

func (c *Client) CurrentUser(ctx context.Context, token string) (User, error) {
	var out User
	if err := c.call(ctx, http.MethodGet, "/api/auth/me", token, nil, &out); err != nil {
		return User{}, err
	}
	return out, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.call(ctx, http.MethodPost, "/api/auth/logout", token, nil, nil)
}

func (c *Client) call(ctx context.Context, method, path, token string, in, out any) error {
	resp, err := c.do(ctx, method, path, token, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, body)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func decodeAPIError(status int, body io.Reader) error {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	apiErr := &APIError{StatusCode: status}
	if err := json.NewDecoder(body).Decode(&payload); err != nil || len(payload.Detail) == 0 {
		return apiErr
	}
	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		apiErr.Detail = detail
	} else {
		apiErr.Detail = string(payload.Detail)
	}
	return apiErr
}
