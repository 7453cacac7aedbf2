package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// AuthClient talks to the auth surface of the hosted service. It needs no
// session itself; every request carries only the public API key.
type AuthClient struct {
	base   string
	apiKey string
	http   *http.Client
	logger *zap.Logger
}

func NewAuthClient(baseURL, apiKey string, logger *zap.Logger) *AuthClient {
	return &AuthClient{
		base:   strings.TrimRight(baseURL, "/"),
		apiKey: apiKey,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

type credentials struct {
	Email        string `json:"email,omitempty"`
	Password     string `json:"password,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         User   `json:"user"`
}

func (r sessionResponse) session() *Session {
	tok := oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    "Bearer",
	}
	if r.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return &Session{Token: tok, User: r.User}
}

func (c *AuthClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	return c.token(ctx, "/auth/v1/token?grant_type=password", credentials{Email: email, Password: password})
}

func (c *AuthClient) SignUp(ctx context.Context, email, password string) (*Session, error) {
	return c.token(ctx, "/auth/v1/signup", credentials{Email: email, Password: password})
}

func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	return c.token(ctx, "/auth/v1/token?grant_type=refresh_token", credentials{RefreshToken: refreshToken})
}

func (c *AuthClient) token(ctx context.Context, path string, creds credentials) (*Session, error) {
	var resp sessionResponse
	if err := c.post(ctx, path, "", creds, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &Error{Status: http.StatusBadGateway, Message: "service returned no access token"}
	}
	return resp.session(), nil
}

func (c *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	return c.post(ctx, "/auth/v1/logout", accessToken, nil, nil)
}

func (c *AuthClient) User(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var u User
	if err := doJSON(c.http, req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *AuthClient) post(ctx context.Context, path, bearer string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return doJSON(c.http, req, out)
}

// doJSON executes a request and decodes the JSON response into out. Non-2xx
// responses become *Error carrying the service's message.
func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("remote call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	json.Unmarshal(raw, &body)

	msg := body.ErrorDescription
	if msg == "" {
		msg = body.Msg
	}
	if msg == "" {
		msg = body.Message
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = resp.Status
	}
	return &Error{Status: resp.StatusCode, Message: msg}
}
