// Package client is a typed Go client for the activities HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/activities/internal/domain"
)

// APIError is a non-2xx response. It matches the domain error kinds under errors.Is.
type APIError struct {
	Status  int
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d %s", e.Status, e.Code)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrConflict
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusBadRequest:
		if e.Code == "INVALID_OPERATION" {
			return domain.ErrInvalidOperation
		}
		return domain.ErrValidation
	}
	return nil
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	mu       sync.RWMutex
	token    string
	username string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Username is the signed-in user's name once Register, Login or Me succeeded.
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

type AuthResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

type RegisterInput struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type ActivityInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	City        string    `json:"city"`
	Venue       string    `json:"venue"`
}

type ProfileInput struct {
	DisplayName string  `json:"display_name"`
	Bio         *string `json:"bio,omitempty"`
}

// ListOptions pages with After and AfterID taken from the last activity of
// the previous page.
type ListOptions struct {
	After     *time.Time
	AfterID   *uuid.UUID
	StartDate *time.Time
	IsGoing   bool
	IsHost    bool
	Limit     int
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.After != nil {
		q.Set("after", o.After.UTC().Format(time.RFC3339Nano))
	}
	if o.AfterID != nil {
		q.Set("after_id", o.AfterID.String())
	}
	if o.StartDate != nil {
		q.Set("start_date", o.StartDate.UTC().Format(time.RFC3339))
	}
	if o.IsGoing {
		q.Set("is_going", "true")
	}
	if o.IsHost {
		q.Set("is_host", "true")
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	return q
}

func (c *Client) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", input, &resp); err != nil {
		return nil, err
	}
	c.signIn(&resp)
	return &resp, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", body, &resp); err != nil {
		return nil, err
	}
	c.signIn(&resp)
	return &resp, nil
}

func (c *Client) Me(ctx context.Context) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	c.signIn(&resp)
	return &resp, nil
}

func (c *Client) signIn(resp *AuthResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = resp.AccessToken
	if resp.User != nil {
		c.username = resp.User.Username
	}
}

func (c *Client) ListActivities(ctx context.Context, opts ListOptions) ([]domain.Activity, error) {
	path := "/api/v1/activities"
	if q := opts.query().Encode(); q != "" {
		path += "?" + q
	}
	var out []domain.Activity
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

func (c *Client) GetActivity(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	var out domain.Activity
	if err := c.do(ctx, http.MethodGet, "/api/v1/activities/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateActivity(ctx context.Context, input ActivityInput) (*domain.Activity, error) {
	var out domain.Activity
	if err := c.do(ctx, http.MethodPost, "/api/v1/activities", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateActivity(ctx context.Context, id uuid.UUID, input ActivityInput) (*domain.Activity, error) {
	var out domain.Activity
	if err := c.do(ctx, http.MethodPut, "/api/v1/activities/"+id.String(), input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteActivity(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/activities/"+id.String(), nil, nil)
}

func (c *Client) Attend(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/api/v1/activities/"+id.String()+"/attend", nil, nil)
}

func (c *Client) Unattend(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/activities/"+id.String()+"/attend", nil, nil)
}

func (c *Client) ListComments(ctx context.Context, activityID uuid.UUID) ([]domain.Comment, error) {
	var out []domain.Comment
	return out, c.do(ctx, http.MethodGet, "/api/v1/activities/"+activityID.String()+"/comments", nil, &out)
}

func (c *Client) PostComment(ctx context.Context, activityID uuid.UUID, body string) (*domain.Comment, error) {
	var out domain.Comment
	path := "/api/v1/activities/" + activityID.String() + "/comments"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"body": body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProfile(ctx context.Context, username string) (*domain.Profile, error) {
	var out domain.Profile
	if err := c.do(ctx, http.MethodGet, "/api/v1/profiles/"+url.PathEscape(username), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, input ProfileInput) (*domain.Profile, error) {
	var out domain.Profile
	if err := c.do(ctx, http.MethodPut, "/api/v1/profiles", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Follow(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/profiles/"+url.PathEscape(username)+"/follow", nil, nil)
}

func (c *Client) Unfollow(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/profiles/"+url.PathEscape(username)+"/follow", nil, nil)
}

func (c *Client) ListRelated(ctx context.Context, username string, direction domain.FollowDirection) ([]domain.Profile, error) {
	path := "/api/v1/profiles/" + url.PathEscape(username) + "/follow?predicate=" + url.QueryEscape(string(direction))
	var out []domain.Profile
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

func (c *Client) UploadPhoto(ctx context.Context, filename string, r io.Reader) (*domain.Photo, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/photos", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out domain.Photo
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetMainPhoto(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/api/v1/photos/"+id.String()+"/main", nil, nil)
}

func (c *Client) DeletePhoto(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/photos/"+id.String(), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(raw)
	}

	req, err := c.newRequest(ctx, method, path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var envelope struct {
			Error APIError `json:"error"`
		}
		// a body that fails to decode still yields the status
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		apiErr := envelope.Error
		apiErr.Status = resp.StatusCode
		return &apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
