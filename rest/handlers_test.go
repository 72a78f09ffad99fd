package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	entitle "github.com/jobdeck/entitle"
	"github.com/jobdeck/entitle/claims"
	"github.com/jobdeck/entitle/id"
	"github.com/jobdeck/entitle/ratelimit"
	"github.com/jobdeck/entitle/store/memory"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()

	cfg := ratelimit.Config{MaxRequests: 2, Window: time.Hour, MaxKeys: 100}
	engine := entitle.New(memory.New(), claims.NewMemoryStore(),
		entitle.WithRateLimiter(ratelimit.NewMemoryLimiter(cfg)),
	)
	return New(engine, cfg, nil)
}

func postJob(t *testing.T, mux *http.ServeMux, userID, title string) *httptest.ResponseRecorder {
	t.Helper()

	body, _ := json.Marshal(createJobRequest{Title: title, Company: "Acme"})
	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body))
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCreateJobEndpoint(t *testing.T) {
	h := newTestHandlers(t)
	mux := h.Mux()

	t.Run("Created", func(t *testing.T) {
		rec := postJob(t, mux, "user_1", "Backend Engineer")
		if rec.Code != http.StatusCreated {
			t.Fatalf("status=%d, want=%d, body=%q", rec.Code, http.StatusCreated, rec.Body.String())
		}

		var resp createJobResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Job == nil || resp.Job.Title != "Backend Engineer" {
			t.Fatalf("unexpected job: %+v", resp.Job)
		}
	})

	t.Run("DuplicateReturns200", func(t *testing.T) {
		rec := postJob(t, mux, "user_1", "Backend Engineer")
		if rec.Code != http.StatusOK {
			t.Fatalf("status=%d, want=%d", rec.Code, http.StatusOK)
		}

		var resp createJobResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Message == "" {
			t.Fatal("duplicate response must carry an explanatory message")
		}
	})

	t.Run("MissingIdentity", func(t *testing.T) {
		rec := postJob(t, mux, "", "Backend Engineer")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status=%d, want=%d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("MissingTitle", func(t *testing.T) {
		rec := postJob(t, mux, "user_1", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status=%d, want=%d", rec.Code, http.StatusBadRequest)
		}
	})
}

func TestExportEndpoint(t *testing.T) {
	h := newTestHandlers(t)
	mux := h.Mux()

	if rec := postJob(t, mux, "user_1", "Backend Engineer"); rec.Code != http.StatusCreated {
		t.Fatalf("seed job: status=%d", rec.Code)
	}

	export := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/jobs/export", nil)
		req.Header.Set(userIDHeader, "user_1")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		rec := export()
		if rec.Code != http.StatusOK {
			t.Fatalf("export %d: status=%d, body=%q", i+1, rec.Code, rec.Body.String())
		}
		var resp exportResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(resp.Jobs) != 1 {
			t.Fatalf("export %d: expected 1 job, got %d", i+1, len(resp.Jobs))
		}
		if resp.ExportID.Prefix() != id.PrefixExport {
			t.Fatalf("export %d: export_id = %q, want %q receipt", i+1, resp.ExportID.String(), id.PrefixExport)
		}
	}

	rec := export()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want=%d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("denial must carry Retry-After")
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Fatalf("X-RateLimit-Limit=%q, want 2", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("X-RateLimit-Remaining=%q, want 0", got)
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Fatal("denial must carry X-RateLimit-Reset")
	}
}

func TestEntitlementEndpoint(t *testing.T) {
	cfg := ratelimit.Config{MaxRequests: 5, Window: time.Hour}
	cs := claims.NewMemoryStore()
	engine := entitle.New(memory.New(), cs)
	h := New(engine, cfg, nil)
	mux := h.Mux()

	check := func(want bool) {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/me/entitlement", nil)
		req.Header.Set(userIDHeader, "user_1")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status=%d", rec.Code)
		}
		var resp entitlementResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Entitled != want {
			t.Fatalf("entitled=%v, want %v", resp.Entitled, want)
		}
	}

	check(false)

	if err := cs.Set(context.Background(), "user_1", claims.Claims{claims.KeySubActive: true}); err != nil {
		t.Fatalf("seed claims: %v", err)
	}
	check(true)
}
