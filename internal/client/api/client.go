// Package api is the REST client for the Reelproof server: authentication
// with rotating refresh tokens, and the media-record endpoints the upload
// queue drives.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/reelproof/reelproof/internal/client/uploader"
	"github.com/reelproof/reelproof/internal/common"
)

type Client struct {
	endpointURL string
	http        *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func NewClient(endpointURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpointURL: strings.TrimRight(endpointURL, "/"),
		http:        httpClient,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type createRecordRequest struct {
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
	Category string `json:"category"`
}

type recordResponse struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	UploadURL string `json:"upload_url"`
	Offset    int64  `json:"offset"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.call(ctx, http.MethodPost, "/api/auth/register",
		loginRequest{Username: username, Password: password}, nil, false)
}

// Login authenticates and stores the issued token pair.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var pair tokenPairResponse
	err := c.call(ctx, http.MethodPost, "/api/auth/login",
		loginRequest{Username: username, Password: password}, &pair, false)
	if err != nil {
		return err
	}
	c.setTokens(pair)
	return nil
}

// Authenticated reports whether a login has been performed.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken != ""
}

// AccessToken returns the current bearer token.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// Refresh exchanges the stored refresh token for a fresh rotating pair.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refreshToken
	c.mu.Unlock()
	if refresh == "" {
		return common.ErrorUnauthorized
	}

	var pair tokenPairResponse
	err := c.call(ctx, http.MethodPost, "/api/auth/refresh",
		refreshRequest{RefreshToken: refresh}, &pair, false)
	if err != nil {
		return err
	}
	c.setTokens(pair)
	return nil
}

func (c *Client) setTokens(pair tokenPairResponse) {
	c.mu.Lock()
	c.accessToken = pair.AccessToken
	c.refreshToken = pair.RefreshToken
	c.mu.Unlock()
}

// CreateRecord registers a placeholder media record and returns its upload
// resource.
func (c *Client) CreateRecord(ctx context.Context, meta uploader.RecordMeta) (*uploader.RecordRef, error) {
	var rec recordResponse
	err := c.call(ctx, http.MethodPost, "/api/records", createRecordRequest{
		FileName: meta.FileName,
		FileSize: meta.FileSize,
		MimeType: meta.MimeType,
		Category: string(meta.Category),
	}, &rec, true)
	if err != nil {
		return nil, err
	}
	return &uploader.RecordRef{ID: rec.ID, UploadURL: c.absoluteURL(rec.UploadURL)}, nil
}

// GetRecord reads the server's view of an existing record.
func (c *Client) GetRecord(ctx context.Context, id string) (*uploader.RecordInfo, error) {
	var rec recordResponse
	err := c.call(ctx, http.MethodGet, "/api/records/"+id, nil, &rec, true)
	if err != nil {
		return nil, err
	}
	return &uploader.RecordInfo{
		ID:        rec.ID,
		State:     uploader.RecordState(rec.State),
		UploadURL: c.absoluteURL(rec.UploadURL),
		Offset:    rec.Offset,
	}, nil
}

// DeleteRecord removes a placeholder record and any staged bytes.
func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/records/"+id, nil, nil, true)
}

// call performs one JSON round trip. Authenticated calls that come back 401
// get a single token refresh followed by one retry; a second 401 surfaces.
func (c *Client) call(ctx context.Context, method, path string, body, out any, authed bool) error {
	err := c.do(ctx, method, path, body, out, authed)
	if err == nil || !authed {
		return err
	}

	var he *common.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		return err
	}
	if rerr := c.Refresh(ctx); rerr != nil {
		return err
	}
	return c.do(ctx, method, path, body, out, authed)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpointURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+c.AccessToken())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// statusError turns an error response into an HTTPError carrying the
// server's message when one was provided.
func (c *Client) statusError(resp *http.Response) error {
	msg := resp.Status
	var er errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&er); err == nil && er.Message != "" {
		msg = er.Message
	}
	return common.NewHTTPError(resp.StatusCode, msg)
}

// absoluteURL resolves a server-relative upload path against the endpoint.
func (c *Client) absoluteURL(u string) string {
	if u == "" || strings.Contains(u, "://") {
		return u
	}
	return c.endpointURL + u
}
