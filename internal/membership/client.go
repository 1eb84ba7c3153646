// Package membership talks to the league's legacy membership API, which owns
// member credentials and club rosters.
package membership

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrClubNotFound       = errors.New("club not found in membership system")
	ErrNotConfigured      = errors.New("membership API is not configured")
)

// Portal roles assigned to members signing in through the API.
const (
	RoleAdmin       = "admin"
	RoleClubManager = "club_manager"
	RoleMember      = "member"
)

type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	// HTTPClient overrides the default client; tests point it at httptest.
	HTTPClient *http.Client
}

// ExternalID accepts the member id as either a JSON string or number.
type ExternalID string

func (id *ExternalID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ExternalID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("member id: %w", err)
	}
	*id = ExternalID(n.String())
	return nil
}

type Member struct {
	ID        ExternalID `json:"id"`
	Username  string     `json:"username"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	ClubCode  string     `json:"club_code"`
	Roles     []string   `json:"roles"`
}

func (m Member) DisplayName() string {
	name := strings.TrimSpace(m.FirstName + " " + m.LastName)
	if name == "" {
		return m.Username
	}
	return name
}

// PortalRole maps the member's API roles to a portal role.
func (m Member) PortalRole() string {
	return MapRole(m.Roles)
}

func MapRole(roles []string) string {
	role := RoleMember
	for _, r := range roles {
		switch strings.ToLower(strings.TrimSpace(r)) {
		case "league_admin":
			return RoleAdmin
		case "club_secretary", "club_manager":
			role = RoleClubManager
		}
	}
	return role
}

type Client struct {
	baseURL *url.URL
	apiKey  string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse membership base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}, nil
}

// Authenticate checks credentials against the membership API and returns the
// member profile.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*Member, error) {
	payload, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("encode login request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrInvalidCredentials
	default:
		return nil, unexpectedStatus("login", resp)
	}

	var member Member
	if err := json.NewDecoder(resp.Body).Decode(&member); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if member.ID == "" {
		return nil, errors.New("membership API returned a member without an id")
	}
	return &member, nil
}

// ClubMemberCount returns the number of active members registered to a club.
func (c *Client) ClubMemberCount(ctx context.Context, clubCode string) (int, error) {
	clubCode = strings.TrimSpace(clubCode)
	if clubCode == "" {
		return 0, errors.New("club code is required")
	}

	resp, err := c.do(ctx, http.MethodGet, "/api/v1/clubs/"+url.PathEscape(clubCode)+"/members/count", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return 0, fmt.Errorf("%w: %s", ErrClubNotFound, clubCode)
	default:
		return 0, unexpectedStatus("member count", resp)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode member count: %w", err)
	}
	if body.Count < 0 {
		return 0, fmt.Errorf("membership API returned negative count %d", body.Count)
	}
	return body.Count, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("membership rate limit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build membership request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("membership %s %s: %w", method, path, err)
	}
	log.Ctx(ctx).Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Membership API call")

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the request timeout once the body has been read.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func unexpectedStatus(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("membership %s: unexpected status %s: %s", op, strconv.Itoa(resp.StatusCode), strings.TrimSpace(string(snippet)))
}
