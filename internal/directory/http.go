package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrBaseURLRequired = errors.New("directory: base url required")
	ErrTokenRequired   = errors.New("directory: api token required")
	ErrTeamNotFound    = errors.New("directory: team not found")
)

// HTTPClientConfig configures the blocking REST client.
type HTTPClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// HTTPClient talks to the directory's administration REST API. Every method
// is one request/response round trip with the configured timeout; there is
// no retry logic here, callers re-run against whatever state the directory
// is actually in.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrBaseURLRequired
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrTokenRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: base,
		token:   strings.TrimSpace(cfg.Token),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) GetAllTeams(ctx context.Context) ([]TeamRecord, error) {
	var out []TeamRecord
	if err := c.do(ctx, http.MethodGet, "/auth/Teams", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetAllUsers(ctx context.Context) ([]UserRecord, error) {
	var out []UserRecord
	if err := c.do(ctx, http.MethodGet, "/auth/Users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetAllRoles(ctx context.Context) ([]Role, error) {
	var out []Role
	if err := c.do(ctx, http.MethodGet, "/auth/Roles", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetAllAuthenticationProviders(ctx context.Context) ([]Provider, error) {
	var out []Provider
	if err := c.do(ctx, http.MethodGet, "/auth/AuthenticationProviders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetAllLDAPServers(ctx context.Context) ([]LDAPServer, error) {
	var out []LDAPServer
	if err := c.do(ctx, http.MethodGet, "/auth/LDAPServers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTeamIDByFullName lists teams and filters by full name; the service has
// no direct lookup endpoint.
func (c *HTTPClient) GetTeamIDByFullName(ctx context.Context, fullName string) (int, error) {
	teams, err := c.GetAllTeams(ctx)
	if err != nil {
		return 0, err
	}
	for _, team := range teams {
		if team.FullName == fullName {
			return team.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrTeamNotFound, fullName)
}

func (c *HTTPClient) CreateTeam(ctx context.Context, name string, parentID int) error {
	body := struct {
		Name     string `json:"name"`
		ParentID int    `json:"parentId"`
	}{Name: name, ParentID: parentID}
	return c.do(ctx, http.MethodPost, "/auth/Teams", body, nil)
}

func (c *HTTPClient) DeleteTeam(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/auth/Teams/%d", id), nil, nil)
}

func (c *HTTPClient) CreateUser(ctx context.Context, user NewUser) error {
	return c.do(ctx, http.MethodPost, "/auth/Users", user, nil)
}

func (c *HTTPClient) UpdateUser(ctx context.Context, id int, update UserUpdate) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/auth/Users/%d", id), update, nil)
}

func (c *HTTPClient) DeleteUser(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/auth/Users/%d", id), nil, nil)
}

func (c *HTTPClient) GetUserEntriesBySearchCriteria(ctx context.Context, ldapServerID int, usernameFragment string) ([]UserEntry, error) {
	path := fmt.Sprintf("/auth/LDAPServers/%d/UserEntries?userNameContainsPattern=%s",
		ldapServerID, url.QueryEscape(usernameFragment))
	var out []UserEntry
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("directory: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("directory: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("directory: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("directory: %s %s: status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("directory: decode %s %s: %w", method, path, err)
	}
	return nil
}
