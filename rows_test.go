package pawmate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestFilterEncoding(t *testing.T) {
	t.Run("eq condition", func(t *testing.T) {
		q := url.Values{}
		Eq("owner_id", "u1").apply(q)
		if got := q.Get("owner_id"); got != "eq.u1" {
			t.Errorf("expected eq.u1, got %q", got)
		}
	})

	t.Run("and combines conditions", func(t *testing.T) {
		q := url.Values{}
		Eq("sender_id", "u1").And(Eq("read", "false")).apply(q)
		if q.Get("sender_id") != "eq.u1" || q.Get("read") != "eq.false" {
			t.Errorf("unexpected encoding: %v", q)
		}
	})

	t.Run("pair filter covers both orientations", func(t *testing.T) {
		q := url.Values{}
		PairFilter("sender_id", "recipient_id", "u1", "u2").apply(q)
		want := "(and(sender_id.eq.u1,recipient_id.eq.u2),and(sender_id.eq.u2,recipient_id.eq.u1))"
		if got := q.Get("or"); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})
}

func TestRowsSelect(t *testing.T) {
	var gotQuery url.Values
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"p1","owner_id":"u1","name":"Rex","species":"dog"}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "pk-test")
	var pets []Pet
	err := client.Rows.Select(context.Background(), "pets", Query{
		Filter: Eq("owner_id", "u1"),
		Order:  Asc("created_at"),
		Limit:  10,
	}, &pets)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	if gotPath != "/rest/v1/pets" {
		t.Errorf("expected /rest/v1/pets, got %s", gotPath)
	}
	if gotQuery.Get("owner_id") != "eq.u1" {
		t.Errorf("missing filter, got %v", gotQuery)
	}
	if gotQuery.Get("order") != "created_at.asc" {
		t.Errorf("expected order=created_at.asc, got %q", gotQuery.Get("order"))
	}
	if gotQuery.Get("limit") != "10" {
		t.Errorf("expected limit=10, got %q", gotQuery.Get("limit"))
	}
	if len(pets) != 1 || pets[0].Name != "Rex" {
		t.Errorf("unexpected rows: %+v", pets)
	}
}

func TestRowsInsert(t *testing.T) {
	t.Run("decodes array representation", func(t *testing.T) {
		var gotPrefer string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPrefer = r.Header.Get("Prefer")
			w.Write([]byte(`[{"id":"p1","name":"Rex"}]`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "pk-test")
		var out Pet
		if err := client.Rows.Insert(context.Background(), "pets", &Pet{Name: "Rex"}, &out); err != nil {
			t.Fatalf("Insert returned error: %v", err)
		}
		if gotPrefer != "return=representation" {
			t.Errorf("expected Prefer header, got %q", gotPrefer)
		}
		if out.ID != "p1" {
			t.Errorf("expected id p1, got %q", out.ID)
		}
	})

	t.Run("decodes bare object representation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"p2","name":"Mia"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "pk-test")
		var out Pet
		if err := client.Rows.Insert(context.Background(), "pets", &Pet{Name: "Mia"}, &out); err != nil {
			t.Fatalf("Insert returned error: %v", err)
		}
		if out.ID != "p2" {
			t.Errorf("expected id p2, got %q", out.ID)
		}
	})

	t.Run("empty array is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "pk-test")
		var out Pet
		err := client.Rows.Insert(context.Background(), "pets", &Pet{Name: "Rex"}, &out)
		if err == nil {
			t.Fatal("expected an error for an empty representation")
		}
	})

	t.Run("nil dest skips decoding", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "pk-test")
		if err := client.Rows.Insert(context.Background(), "likes", &Like{PostID: "p1", UserID: "u1"}, nil); err != nil {
			t.Fatalf("Insert returned error: %v", err)
		}
	})
}

func TestRowsUpdateDelete(t *testing.T) {
	var gotMethod string
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.Query()
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "pk-test")

	if err := client.Rows.Update(context.Background(), "pets", Eq("id", "p1"), map[string]any{"name": "Rexy"}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if gotMethod != "PATCH" || gotQuery.Get("id") != "eq.p1" {
		t.Errorf("unexpected update request: %s %v", gotMethod, gotQuery)
	}

	if err := client.Rows.Delete(context.Background(), "pets", Eq("id", "p1")); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if gotMethod != "DELETE" || gotQuery.Get("id") != "eq.p1" {
		t.Errorf("unexpected delete request: %s %v", gotMethod, gotQuery)
	}
}
