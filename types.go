package pawmate

import "time"

// ============================================================================
// Shared Types
// ============================================================================

// APIError represents an error returned by the platform API.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// User is the authenticated identity.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an authenticated session returned by the token endpoint.
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        User   `json:"user"`
}

// ============================================================================
// Row Types
// ============================================================================

// Message is one row of the messages table.
//
// A message created locally by the optimistic send pipeline carries a
// temporary identifier until the server acknowledges the insert; see
// ChatSession.Send.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Content     string    `json:"content"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Profile is a user profile row (owner or sitter).
type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	IsSitter    bool      `json:"is_sitter"`
	Area        string    `json:"area,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Pet is a pet profile row.
type Pet struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Species   string    `json:"species"`
	Breed     string    `json:"breed,omitempty"`
	AgeYears  int       `json:"age_years,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ServiceListing is a sitter's published service.
type ServiceListing struct {
	ID          string    `json:"id"`
	SitterID    string    `json:"sitter_id"`
	Title       string    `json:"title"`
	ServiceType string    `json:"service_type"` // walking | sitting | boarding | grooming
	Description string    `json:"description,omitempty"`
	Area        string    `json:"area,omitempty"`
	PricePerDay float64   `json:"price_per_day"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Booking links an owner, a sitter and a service over a date range.
type Booking struct {
	ID        string    `json:"id"`
	ServiceID string    `json:"service_id"`
	OwnerID   string    `json:"owner_id"`
	SitterID  string    `json:"sitter_id"`
	PetID     string    `json:"pet_id,omitempty"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Status    string    `json:"status"` // requested | accepted | declined | completed
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Post is a community feed post.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url,omitempty"`
	LikeCount int       `json:"like_count,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Comment is a comment on a feed post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Like marks a user's like on a post.
type Like struct {
	PostID string `json:"post_id"`
	UserID string `json:"user_id"`
}

// Review is a rating left by the conversation owner for a sitter.
type Review struct {
	ID         string    `json:"id,omitempty"`
	SitterID   string    `json:"sitter_id"`
	ReviewerID string    `json:"reviewer_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Ownership is the result of resolving a conversation's owner.
//
// The owner is the participant whose message has the earliest creation
// timestamp; only the owner may leave a review for the counterpart.
type Ownership struct {
	OwnerID   string
	CanReview bool
}
