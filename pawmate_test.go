package pawmate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient(t *testing.T) {
	t.Run("trims trailing slash", func(t *testing.T) {
		client := NewClient("https://acme.pawmate.cloud/", "pk-test")
		if client.baseURL != "https://acme.pawmate.cloud" {
			t.Errorf("expected trimmed base URL, got %q", client.baseURL)
		}
	})

	t.Run("sub-clients are wired", func(t *testing.T) {
		client := NewClient("https://acme.pawmate.cloud", "pk-test")
		if client.Auth == nil || client.Rows == nil || client.Messages == nil ||
			client.Pets == nil || client.Services == nil || client.Bookings == nil ||
			client.Feed == nil || client.Reviews == nil || client.Storage == nil ||
			client.Profiles == nil {
			t.Fatal("expected all sub-clients to be initialized")
		}
	})
}

func TestAuth(t *testing.T) {
	newAuthServer := func(t *testing.T) *httptest.Server {
		t.Helper()
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/auth/v1/token", "/auth/v1/signup":
				if r.URL.Query().Get("grant_type") != "password" {
					t.Errorf("expected grant_type=password, got %q", r.URL.Query().Get("grant_type"))
				}
				json.NewEncoder(w).Encode(Session{
					AccessToken: "jwt-abc",
					TokenType:   "bearer",
					User:        User{ID: "u1", Email: "owner@example.com"},
				})
			case "/auth/v1/user":
				if r.Header.Get("Authorization") != "Bearer jwt-abc" {
					w.WriteHeader(http.StatusUnauthorized)
					w.Write([]byte(`{"code":"UNAUTHORIZED","message":"bad token"}`))
					return
				}
				json.NewEncoder(w).Encode(User{ID: "u1", Email: "owner@example.com"})
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
	}

	t.Run("sign in stores the session", func(t *testing.T) {
		server := newAuthServer(t)
		defer server.Close()

		client := NewClient(server.URL, "pk-test")
		session, err := client.Auth.SignIn(context.Background(), "owner@example.com", "secret")
		if err != nil {
			t.Fatalf("SignIn returned error: %v", err)
		}
		if session.AccessToken != "jwt-abc" {
			t.Errorf("expected jwt-abc, got %q", session.AccessToken)
		}

		user, err := client.Auth.CurrentUser(context.Background())
		if err != nil {
			t.Fatalf("CurrentUser returned error: %v", err)
		}
		if user.ID != "u1" {
			t.Errorf("expected u1, got %q", user.ID)
		}
	})

	t.Run("current user without a session", func(t *testing.T) {
		client := NewClient("https://acme.pawmate.cloud", "pk-test")
		_, err := client.Auth.CurrentUser(context.Background())
		if !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("restored token resolves the user remotely", func(t *testing.T) {
		server := newAuthServer(t)
		defer server.Close()

		client := NewClient(server.URL, "pk-test")
		client.SetToken("jwt-abc")
		user, err := client.Auth.CurrentUser(context.Background())
		if err != nil {
			t.Fatalf("CurrentUser returned error: %v", err)
		}
		if user.ID != "u1" {
			t.Errorf("expected u1, got %q", user.ID)
		}
	})

	t.Run("sign out drops the session", func(t *testing.T) {
		server := newAuthServer(t)
		defer server.Close()

		client := NewClient(server.URL, "pk-test")
		if _, err := client.Auth.SignIn(context.Background(), "owner@example.com", "secret"); err != nil {
			t.Fatalf("SignIn returned error: %v", err)
		}
		client.Auth.SignOut()
		if _, err := client.Auth.CurrentUser(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated after sign out, got %v", err)
		}
	})
}

func TestAPIErrorDecoding(t *testing.T) {
	t.Run("structured error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"code":"DUPLICATE","message":"already exists"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "pk-test")
		err := client.Rows.Select(context.Background(), "pets", Query{}, nil)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Code != "DUPLICATE" || apiErr.Message != "already exists" {
			t.Errorf("unexpected error: %+v", apiErr)
		}
	})

	t.Run("opaque error body falls back to the status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`<html>gateway</html>`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "pk-test")
		err := client.Rows.Select(context.Background(), "pets", Query{}, nil)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Code != "HTTP_502" {
			t.Errorf("expected HTTP_502, got %q", apiErr.Code)
		}
	})

	t.Run("api key header is always sent", func(t *testing.T) {
		var gotKey string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.Header.Get("apikey")
			w.Write([]byte(`[]`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "pk-test")
		if err := client.Rows.Select(context.Background(), "pets", Query{}, nil); err != nil {
			t.Fatalf("Select returned error: %v", err)
		}
		if gotKey != "pk-test" {
			t.Errorf("expected apikey header, got %q", gotKey)
		}
	})
}

func TestBookingsUpdateStatus(t *testing.T) {
	client := NewClient("https://acme.pawmate.cloud", "pk-test")
	err := client.Bookings.UpdateStatus(context.Background(), "b1", "cancelled")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "INVALID_STATUS" {
		t.Errorf("expected INVALID_STATUS for unknown status, got %v", err)
	}
}

func TestReviewsSubmitValidation(t *testing.T) {
	client := NewClient("https://acme.pawmate.cloud", "pk-test")

	t.Run("rating out of range", func(t *testing.T) {
		for _, rating := range []int{0, 6, -1} {
			_, err := client.Reviews.Submit(context.Background(), "sitter-1", rating, "")
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Code != "INVALID_RATING" {
				t.Errorf("rating %d: expected INVALID_RATING, got %v", rating, err)
			}
		}
	})

	t.Run("requires authentication", func(t *testing.T) {
		_, err := client.Reviews.Submit(context.Background(), "sitter-1", 5, "great")
		if !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestStorage(t *testing.T) {
	t.Run("upload posts the object and returns the public url", func(t *testing.T) {
		var gotPath, gotMime string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotMime = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewClient(server.URL, "pk-test")
		url, err := client.Storage.Upload(context.Background(), "pet-photos", "u1/rex.jpg", []byte("jpeg"), "")
		if err != nil {
			t.Fatalf("Upload returned error: %v", err)
		}
		if gotPath != "/storage/v1/object/pet-photos/u1/rex.jpg" {
			t.Errorf("unexpected upload path %q", gotPath)
		}
		if gotMime != "image/jpeg" {
			t.Errorf("expected image/jpeg, got %q", gotMime)
		}
		want := server.URL + "/storage/v1/object/public/pet-photos/u1/rex.jpg"
		if url != want {
			t.Errorf("expected %q, got %q", want, url)
		}
	})

	t.Run("upload surfaces server failures", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		client := NewClient(server.URL, "pk-test")
		if _, err := client.Storage.Upload(context.Background(), "pet-photos", "u1/rex.jpg", nil, ""); err == nil {
			t.Fatal("expected an error for a rejected upload")
		}
	})
}

func TestGuessMimeType(t *testing.T) {
	cases := map[string]string{
		"rex.jpg":   "image/jpeg",
		"rex.png":   "image/png",
		"rex.webp":  "image/webp",
		"rex.heic":  "image/heic",
		"noext":     "application/octet-stream",
		"weird.zzz": "application/octet-stream",
	}
	for name, want := range cases {
		if got := guessMimeType(name); got != want {
			t.Errorf("%s: expected %s, got %s", name, want, got)
		}
	}
}
