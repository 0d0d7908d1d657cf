// Package instagram talks to the Instagram Graph API (posts, comments,
// comment replies, token validation) and the Messaging API (direct-message
// replies). Requests go through a retrying HTTP client; responses are parsed
// with gjson since the Graph API envelope is shallow and we only pluck a
// handful of fields.
package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const (
	graphBaseURL     = "https://graph.facebook.com/v18.0"
	instagramBaseURL = "https://graph.instagram.com"
)

// Post is one media object returned by the Graph API.
type Post struct {
	ID        string
	Caption   string
	MediaType string
	Permalink string
	Timestamp string
}

// Comment is one comment on a post.
type Comment struct {
	ID       string
	Text     string
	Username string
}

// Client calls the Graph and Messaging APIs. The zero value is not usable;
// construct with NewClient.
type Client struct {
	accessToken       string
	pageAccessToken   string
	businessAccountID string

	http *retryablehttp.Client

	// Overridable endpoints for tests.
	graphURL string
	baseURL  string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs overrides the Graph endpoints; used by tests.
func WithBaseURLs(graphURL, baseURL string) Option {
	return func(c *Client) {
		c.graphURL = graphURL
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the retrying transport; used by tests.
func WithHTTPClient(h *retryablehttp.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient constructs a Client with sane retry defaults.
func NewClient(accessToken, pageAccessToken, businessAccountID string, opts ...Option) *Client {
	h := retryablehttp.NewClient()
	h.RetryMax = 3
	h.RetryWaitMin = 500 * time.Millisecond
	h.RetryWaitMax = 5 * time.Second
	h.HTTPClient.Timeout = 15 * time.Second
	h.Logger = nil // zerolog handles request logging at call sites

	c := &Client{
		accessToken:       accessToken,
		pageAccessToken:   pageAccessToken,
		businessAccountID: businessAccountID,
		http:              h,
		graphURL:          graphBaseURL,
		baseURL:           instagramBaseURL,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// apiGet performs a GET and returns the body, surfacing Graph error envelopes.
func (c *Client) apiGet(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// apiPost performs a POST with an optional JSON body.
func (c *Client) apiPost(ctx context.Context, rawURL string, body any) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, rawURL, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req)
}

func (c *Client) do(req *retryablehttp.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	// The Graph API reports failures inside the body rather than purely via
	// status codes.
	if e := gjson.GetBytes(raw, "error"); e.Exists() {
		return nil, fmt.Errorf("graph api error: %s (code %d)",
			e.Get("message").String(), e.Get("code").Int())
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("graph api: unexpected status %d", resp.StatusCode)
	}
	return raw, nil
}

// ValidateToken checks the Graph token by fetching the account profile.
// Used at startup to decide whether comment monitoring can run at all.
func (c *Client) ValidateToken(ctx context.Context) error {
	u := fmt.Sprintf("%s/me?fields=id,username&access_token=%s", c.baseURL, url.QueryEscape(c.accessToken))
	raw, err := c.apiGet(ctx, u)
	if err != nil {
		return err
	}
	log.Info().
		Str("username", gjson.GetBytes(raw, "username").String()).
		Str("account_id", gjson.GetBytes(raw, "id").String()).
		Msg("instagram token valid")
	return nil
}

// GetRecentPosts fetches up to limit recent media objects for the business
// account. Returns an empty slice when credentials are not configured.
func (c *Client) GetRecentPosts(ctx context.Context, limit int) ([]Post, error) {
	if c.businessAccountID == "" || c.accessToken == "" {
		return nil, nil
	}
	u := fmt.Sprintf("%s/%s/media?fields=id,caption,media_type,permalink,timestamp&limit=%d&access_token=%s",
		c.graphURL, c.businessAccountID, limit, url.QueryEscape(c.accessToken))
	raw, err := c.apiGet(ctx, u)
	if err != nil {
		return nil, err
	}

	var posts []Post
	for _, p := range gjson.GetBytes(raw, "data").Array() {
		posts = append(posts, Post{
			ID:        p.Get("id").String(),
			Caption:   p.Get("caption").String(),
			MediaType: p.Get("media_type").String(),
			Permalink: p.Get("permalink").String(),
			Timestamp: p.Get("timestamp").String(),
		})
	}
	return posts, nil
}

// GetPostComments fetches the comments of one media object.
func (c *Client) GetPostComments(ctx context.Context, mediaID string) ([]Comment, error) {
	u := fmt.Sprintf("%s/%s/comments?fields=id,text,username,timestamp&access_token=%s",
		c.graphURL, mediaID, url.QueryEscape(c.accessToken))
	raw, err := c.apiGet(ctx, u)
	if err != nil {
		return nil, err
	}

	var comments []Comment
	for _, cm := range gjson.GetBytes(raw, "data").Array() {
		comments = append(comments, Comment{
			ID:       cm.Get("id").String(),
			Text:     cm.Get("text").String(),
			Username: cm.Get("username").String(),
		})
	}
	return comments, nil
}

// ReplyToComment posts a public reply under a comment.
func (c *Client) ReplyToComment(ctx context.Context, commentID, text string) error {
	u := fmt.Sprintf("%s/%s/replies?message=%s&access_token=%s",
		c.graphURL, commentID, url.QueryEscape(text), url.QueryEscape(c.accessToken))
	_, err := c.apiPost(ctx, u, nil)
	return err
}

// SendTextWithButton sends a direct message with a single web-URL button via
// the Messaging API button template. Uses the page token, not the Graph one.
func (c *Client) SendTextWithButton(ctx context.Context, recipientID, text, buttonLabel, buttonURL string) error {
	u := fmt.Sprintf("%s/me/messages?access_token=%s", c.graphURL, url.QueryEscape(c.pageAccessToken))
	payload := map[string]any{
		"recipient": map[string]any{"id": recipientID},
		"message": map[string]any{
			"attachment": map[string]any{
				"type": "template",
				"payload": map[string]any{
					"template_type": "button",
					"text":          text,
					"buttons": []map[string]any{
						{"type": "web_url", "url": buttonURL, "title": buttonLabel},
					},
				},
			},
		},
	}
	_, err := c.apiPost(ctx, u, payload)
	return err
}
