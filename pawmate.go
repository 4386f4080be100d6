// Package pawmate provides the official Go SDK for the PawMate Cloud API,
// the hosted backend of the PawMate pet-care platform.
//
// Covers authentication, profile and pet management, the service
// marketplace, bookings, the community feed, reviews, object storage and
// direct messaging with realtime delivery.
//
// Example:
//
//	client := pawmate.NewClient("https://acme.pawmate.cloud", "pk-pawmate-...")
//
//	session, _ := client.Auth.SignIn(ctx, "owner@example.com", "secret")
//
//	pets, _ := client.Pets.List(ctx, session.User.ID)
//
//	chat, _ := client.NewChatSession(ctx, "sitter-123", nil)
//	chat.Open(ctx)
//	defer chat.Close()
//	chat.Send(ctx, "Hi! Is Saturday still free?")
package pawmate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const DefaultTimeout = 30 * time.Second

// Sentinel errors returned by the SDK.
var (
	ErrNotAuthenticated = errors.New("pawmate: not authenticated")
	ErrBlankMessage     = errors.New("pawmate: message text is blank")
	ErrChannelClosed    = errors.New("pawmate: delivery channel is closed")
)

// ============================================================================
// Client
// ============================================================================

// Client is the entry point to the PawMate Cloud API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger

	mu          sync.RWMutex
	accessToken string
	currentUser *User

	Auth     *AuthClient
	Rows     *RowsClient
	Profiles *ProfilesClient
	Pets     *PetsClient
	Services *ServicesClient
	Bookings *BookingsClient
	Feed     *FeedClient
	Reviews  *ReviewsClient
	Messages *MessagesClient
	Storage  *StorageClient
}

type ClientOption func(*Client)

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// WithLogger attaches a structured logger. The default logger discards
// everything.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a new PawMate client for the given project URL and
// project API key.
func NewClient(projectURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(projectURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		log: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Auth = &AuthClient{client: c}
	c.Rows = &RowsClient{client: c}
	c.Profiles = &ProfilesClient{rows: c.Rows}
	c.Pets = &PetsClient{rows: c.Rows}
	c.Services = &ServicesClient{rows: c.Rows}
	c.Bookings = &BookingsClient{rows: c.Rows}
	c.Feed = &FeedClient{rows: c.Rows}
	c.Reviews = &ReviewsClient{client: c}
	c.Messages = &MessagesClient{client: c}
	c.Storage = &StorageClient{client: c}
	return c
}

// SetToken sets or replaces the access token, e.g. when restoring a saved
// session from disk.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.currentUser = nil
	c.mu.Unlock()
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// ============================================================================
// Internal request helper
// ============================================================================

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, query url.Values, headers map[string]string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", c.apiKey)
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, decodeAPIError(resp.StatusCode, data)
	}
	return data, nil
}

func decodeAPIError(status int, data []byte) error {
	var apiErr APIError
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
		if apiErr.Code == "" {
			apiErr.Code = fmt.Sprintf("HTTP_%d", status)
		}
		return &apiErr
	}
	return &APIError{Code: fmt.Sprintf("HTTP_%d", status), Message: http.StatusText(status)}
}

func decodeJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// ============================================================================
// Auth
// ============================================================================

// AuthClient handles identity: sign-up, sign-in and the current user.
type AuthClient struct {
	client *Client
}

// SignUp registers a new account and signs it in.
func (a *AuthClient) SignUp(ctx context.Context, email, password string) (*Session, error) {
	return a.tokenRequest(ctx, "/auth/v1/signup", email, password)
}

// SignIn exchanges credentials for a session token.
func (a *AuthClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	return a.tokenRequest(ctx, "/auth/v1/token", email, password)
}

func (a *AuthClient) tokenRequest(ctx context.Context, path, email, password string) (*Session, error) {
	data, err := a.client.doRequest(ctx, "POST", path,
		map[string]string{"email": email, "password": password},
		url.Values{"grant_type": {"password"}}, nil)
	if err != nil {
		return nil, err
	}
	session, err := decodeJSON[Session](data)
	if err != nil {
		return nil, err
	}
	a.client.mu.Lock()
	a.client.accessToken = session.AccessToken
	user := session.User
	a.client.currentUser = &user
	a.client.mu.Unlock()
	return session, nil
}

// SignOut drops the local session.
func (a *AuthClient) SignOut() {
	a.client.mu.Lock()
	a.client.accessToken = ""
	a.client.currentUser = nil
	a.client.mu.Unlock()
}

// CurrentUser returns the authenticated user, resolving it from the server
// on first use. Returns ErrNotAuthenticated when no session is active.
func (a *AuthClient) CurrentUser(ctx context.Context) (*User, error) {
	a.client.mu.RLock()
	cached := a.client.currentUser
	tok := a.client.accessToken
	a.client.mu.RUnlock()
	if cached != nil {
		u := *cached
		return &u, nil
	}
	if tok == "" {
		return nil, ErrNotAuthenticated
	}

	data, err := a.client.doRequest(ctx, "GET", "/auth/v1/user", nil, nil, nil)
	if err != nil {
		return nil, err
	}
	user, err := decodeJSON[User](data)
	if err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, ErrNotAuthenticated
	}
	a.client.mu.Lock()
	u := *user
	a.client.currentUser = &u
	a.client.mu.Unlock()
	return user, nil
}

// ============================================================================
// Profiles
// ============================================================================

// ProfilesClient manages user profiles.
type ProfilesClient struct{ rows *RowsClient }

func (p *ProfilesClient) Get(ctx context.Context, userID string) (*Profile, error) {
	var profiles []Profile
	err := p.rows.Select(ctx, "profiles", Query{Filter: Eq("id", userID)}, &profiles)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, &APIError{Code: "NOT_FOUND", Message: "profile not found"}
	}
	return &profiles[0], nil
}

func (p *ProfilesClient) Upsert(ctx context.Context, profile *Profile) (*Profile, error) {
	var out Profile
	if err := p.rows.Upsert(ctx, "profiles", profile, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ============================================================================
// Pets
// ============================================================================

// PetsClient manages pet profiles.
type PetsClient struct{ rows *RowsClient }

func (p *PetsClient) List(ctx context.Context, ownerID string) ([]Pet, error) {
	var pets []Pet
	err := p.rows.Select(ctx, "pets", Query{
		Filter: Eq("owner_id", ownerID),
		Order:  Asc("created_at"),
	}, &pets)
	return pets, err
}

func (p *PetsClient) Create(ctx context.Context, pet *Pet) (*Pet, error) {
	var out Pet
	if err := p.rows.Insert(ctx, "pets", pet, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *PetsClient) Update(ctx context.Context, petID string, changes map[string]any) error {
	return p.rows.Update(ctx, "pets", Eq("id", petID), changes)
}

func (p *PetsClient) Delete(ctx context.Context, petID string) error {
	return p.rows.Delete(ctx, "pets", Eq("id", petID))
}

// ============================================================================
// Services
// ============================================================================

// ServiceSearch filters marketplace listings.
type ServiceSearch struct {
	ServiceType  string
	Area         string
	OrderByPrice bool
}

// ServicesClient manages marketplace listings.
type ServicesClient struct{ rows *RowsClient }

func (s *ServicesClient) Search(ctx context.Context, search *ServiceSearch) ([]ServiceListing, error) {
	filter := Eq("published", "true")
	order := Asc("created_at")
	if search != nil {
		if search.ServiceType != "" {
			filter = filter.And(Eq("service_type", search.ServiceType))
		}
		if search.Area != "" {
			filter = filter.And(Eq("area", search.Area))
		}
		if search.OrderByPrice {
			order = Asc("price_per_day")
		}
	}
	var listings []ServiceListing
	err := s.rows.Select(ctx, "services", Query{Filter: filter, Order: order}, &listings)
	return listings, err
}

func (s *ServicesClient) Get(ctx context.Context, serviceID string) (*ServiceListing, error) {
	var listings []ServiceListing
	err := s.rows.Select(ctx, "services", Query{Filter: Eq("id", serviceID)}, &listings)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, &APIError{Code: "NOT_FOUND", Message: "service not found"}
	}
	return &listings[0], nil
}

func (s *ServicesClient) Publish(ctx context.Context, listing *ServiceListing) (*ServiceListing, error) {
	listing.Published = true
	var out ServiceListing
	if err := s.rows.Insert(ctx, "services", listing, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ServicesClient) Unpublish(ctx context.Context, serviceID string) error {
	return s.rows.Update(ctx, "services", Eq("id", serviceID), map[string]any{"published": false})
}

// ============================================================================
// Bookings
// ============================================================================

// BookingsClient manages booking requests between owners and sitters.
type BookingsClient struct{ rows *RowsClient }

func (b *BookingsClient) Request(ctx context.Context, booking *Booking) (*Booking, error) {
	booking.Status = "requested"
	var out Booking
	if err := b.rows.Insert(ctx, "bookings", booking, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *BookingsClient) ListForOwner(ctx context.Context, ownerID string) ([]Booking, error) {
	var bookings []Booking
	err := b.rows.Select(ctx, "bookings", Query{
		Filter: Eq("owner_id", ownerID),
		Order:  Desc("created_at"),
	}, &bookings)
	return bookings, err
}

func (b *BookingsClient) ListForSitter(ctx context.Context, sitterID string) ([]Booking, error) {
	var bookings []Booking
	err := b.rows.Select(ctx, "bookings", Query{
		Filter: Eq("sitter_id", sitterID),
		Order:  Desc("created_at"),
	}, &bookings)
	return bookings, err
}

func (b *BookingsClient) UpdateStatus(ctx context.Context, bookingID, status string) error {
	switch status {
	case "accepted", "declined", "completed":
	default:
		return &APIError{Code: "INVALID_STATUS", Message: "status must be accepted, declined or completed"}
	}
	return b.rows.Update(ctx, "bookings", Eq("id", bookingID), map[string]any{"status": status})
}

// ============================================================================
// Community Feed
// ============================================================================

// FeedClient manages the community feed: posts, comments and likes.
type FeedClient struct{ rows *RowsClient }

func (f *FeedClient) ListPosts(ctx context.Context, limit int) ([]Post, error) {
	q := Query{Order: Desc("created_at")}
	if limit > 0 {
		q.Limit = limit
	}
	var posts []Post
	err := f.rows.Select(ctx, "posts", q, &posts)
	return posts, err
}

func (f *FeedClient) CreatePost(ctx context.Context, post *Post) (*Post, error) {
	var out Post
	if err := f.rows.Insert(ctx, "posts", post, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (f *FeedClient) DeletePost(ctx context.Context, postID string) error {
	return f.rows.Delete(ctx, "posts", Eq("id", postID))
}

func (f *FeedClient) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	var comments []Comment
	err := f.rows.Select(ctx, "comments", Query{
		Filter: Eq("post_id", postID),
		Order:  Asc("created_at"),
	}, &comments)
	return comments, err
}

func (f *FeedClient) AddComment(ctx context.Context, comment *Comment) (*Comment, error) {
	var out Comment
	if err := f.rows.Insert(ctx, "comments", comment, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (f *FeedClient) Like(ctx context.Context, postID, userID string) error {
	return f.rows.Insert(ctx, "likes", &Like{PostID: postID, UserID: userID}, nil)
}

func (f *FeedClient) Unlike(ctx context.Context, postID, userID string) error {
	return f.rows.Delete(ctx, "likes", Eq("post_id", postID).And(Eq("user_id", userID)))
}

// ============================================================================
// Reviews
// ============================================================================

// ReviewsClient manages sitter reviews. Submission is a single insert with
// no optimistic local projection; failures surface directly to the caller.
type ReviewsClient struct{ client *Client }

func (r *ReviewsClient) ListForSitter(ctx context.Context, sitterID string) ([]Review, error) {
	var reviews []Review
	err := r.client.Rows.Select(ctx, "reviews", Query{
		Filter: Eq("sitter_id", sitterID),
		Order:  Desc("created_at"),
	}, &reviews)
	return reviews, err
}

// Submit inserts a review by the current user. Eligibility is decided by
// conversation ownership; see ChatSession.Ownership.
func (r *ReviewsClient) Submit(ctx context.Context, sitterID string, rating int, comment string) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, &APIError{Code: "INVALID_RATING", Message: "rating must be between 1 and 5"}
	}
	user, err := r.client.Auth.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	review := &Review{
		SitterID:   sitterID,
		ReviewerID: user.ID,
		Rating:     rating,
		Comment:    comment,
	}
	var out Review
	if err := r.client.Rows.Insert(ctx, "reviews", review, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ============================================================================
// Messages
// ============================================================================

// MessagesClient handles low-level message rows. The chat core
// (ChatSession) builds on these calls.
type MessagesClient struct{ client *Client }

// ListWith fetches the full conversation with peer, both orientations of
// the participant pair, ordered ascending by creation time.
func (m *MessagesClient) ListWith(ctx context.Context, userID, peerID string) ([]Message, error) {
	var messages []Message
	err := m.client.Rows.Select(ctx, "messages", Query{
		Filter: PairFilter("sender_id", "recipient_id", userID, peerID),
		Order:  Asc("created_at"),
	}, &messages)
	return messages, err
}

// Insert creates a message row and returns the server's representation.
func (m *MessagesClient) Insert(ctx context.Context, senderID, recipientID, content string) (*Message, error) {
	row := map[string]any{
		"sender_id":    senderID,
		"recipient_id": recipientID,
		"content":      content,
		"read":         false,
	}
	var out Message
	if err := m.client.Rows.Insert(ctx, "messages", row, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead flags every message from peer to userID as read.
func (m *MessagesClient) MarkRead(ctx context.Context, userID, peerID string) error {
	filter := Eq("sender_id", peerID).And(Eq("recipient_id", userID)).And(Eq("read", "false"))
	return m.client.Rows.Update(ctx, "messages", filter, map[string]any{"read": true})
}

// ============================================================================
// Storage
// ============================================================================

// StorageClient uploads objects (avatars, pet photos) to a bucket.
type StorageClient struct{ client *Client }

// Upload stores data under bucket/path and returns the public URL.
func (s *StorageClient) Upload(ctx context.Context, bucket, path string, data []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = guessMimeType(path)
	}

	u := s.client.baseURL + "/storage/v1/object/" + bucket + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("apikey", s.client.apiKey)
	if tok := s.client.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload failed (%d): %s", resp.StatusCode, string(body))
	}

	return s.PublicURL(bucket, path), nil
}

// PublicURL returns the public download URL for an object.
func (s *StorageClient) PublicURL(bucket, path string) string {
	return s.client.baseURL + "/storage/v1/object/public/" + bucket + "/" + strings.TrimLeft(path, "/")
}

// guessMimeType returns MIME type from file extension.
func guessMimeType(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		return "application/octet-stream"
	}
	// Fallback for types not in Go's builtin registry
	fallback := map[string]string{
		".webp": "image/webp", ".heic": "image/heic",
	}
	if m, ok := fallback[ext]; ok {
		return m
	}
	t := mime.TypeByExtension(ext)
	if t != "" {
		if idx := strings.Index(t, ";"); idx > 0 {
			t = strings.TrimSpace(t[:idx])
		}
		return t
	}
	return "application/octet-stream"
}
