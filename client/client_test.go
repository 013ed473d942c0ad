package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// newTestServer creates a test server that routes to the given handler map.
// Keys are "METHOD /path", values are handler funcs.
func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := New(srv.URL, WithAPIKey("test-key"), WithActor("guest", "g1"))
	return srv, c
}

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func TestHealth(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/health": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, HealthResponse{Status: "ok", Version: "1.2.0", SchemaVersion: 1})
		},
	})
	resp, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error: %v", err)
	}
	if resp.Status != "ok" || resp.SchemaVersion != 1 {
		t.Errorf("got %+v", resp)
	}
}

func TestHeaders(t *testing.T) {
	var got http.Header
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/proposals/p1/accept": func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Clone()
			jsonResponse(w, 200, Proposal{ID: "p1", Status: "host_review"})
		},
	})

	if _, err := c.As("host", "h1").Proposals.Accept(context.Background(), "p1"); err != nil {
		t.Fatalf("Accept error: %v", err)
	}

	if got.Get("Authorization") != "Bearer test-key" {
		t.Errorf("Authorization = %q", got.Get("Authorization"))
	}
	if got.Get(headerActorRole) != "host" || got.Get(headerActorID) != "h1" {
		t.Errorf("actor headers = %q/%q", got.Get(headerActorRole), got.Get(headerActorID))
	}
	if got.Get(headerActorOverride) != "" {
		t.Errorf("override header sent without WithOverride")
	}

	if c.role != "guest" {
		t.Errorf("As mutated the original client: role %q", c.role)
	}
}

func TestProposalLifecycle(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/proposals": func(w http.ResponseWriter, r *http.Request) {
			var req CreateProposalRequest
			json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
			jsonResponse(w, 201, Proposal{ID: "p1", GuestID: req.GuestID, Status: "pending", Revision: 1})
		},
		"POST /api/v1/proposals/p1/submit": func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Terms Terms `json:"terms"`
			}
			json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
			jsonResponse(w, 200, Proposal{ID: "p1", Status: "host_review", Terms: body.Terms, Revision: 2})
		},
		"POST /api/v1/proposals/p1/counter": func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Changes map[string]json.RawMessage `json:"changes"`
			}
			json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
			if string(body.Changes["nightly_price"]) != `"150"` {
				jsonResponse(w, 400, map[string]string{"code": "validation_error", "message": string(body.Changes["nightly_price"])})
				return
			}
			jsonResponse(w, 200, Proposal{ID: "p1", Status: "host_counteroffer_submitted", Revision: 3})
		},
		"GET /api/v1/proposals/p1": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, Proposal{ID: "p1", Status: "host_counteroffer_submitted", Revision: 3})
		},
	})

	ctx := context.Background()

	p, err := c.Proposals.Create(ctx, &CreateProposalRequest{GuestID: "g1", HostID: "h1", ListingID: "l1"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if p.Status != "pending" || p.GuestID != "g1" {
		t.Errorf("Create: got %+v", p)
	}

	p, err = c.Proposals.Submit(ctx, "p1", Terms{NightlyPrice: decimal.RequireFromString("142.50"), ReservationWeeks: 8})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if !p.Terms.NightlyPrice.Equal(decimal.RequireFromString("142.5")) {
		t.Errorf("Submit: nightly price %s", p.Terms.NightlyPrice)
	}

	p, err = c.As("host", "h1").Proposals.Counter(ctx, "p1", map[string]any{"nightly_price": "150"})
	if err != nil {
		t.Fatalf("Counter error: %v", err)
	}
	if p.Revision != 3 {
		t.Errorf("Counter: revision %d", p.Revision)
	}

	p, err = c.Proposals.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if p.Status != "host_counteroffer_submitted" {
		t.Errorf("Get: status %q", p.Status)
	}
}

func TestList(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/proposals": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("host_id") != "h1" || q.Get("status") != "host_review" || q.Get("limit") != "10" {
				jsonResponse(w, 400, map[string]string{"code": "bad_query", "message": r.URL.RawQuery})
				return
			}
			jsonResponse(w, 200, map[string]any{"proposals": []Proposal{{ID: "p1"}}, "has_more": true})
		},
	})

	proposals, hasMore, err := c.Proposals.List(context.Background(), &ListOptions{HostID: "h1", Status: "host_review", Limit: 10})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(proposals) != 1 || !hasMore {
		t.Errorf("List: got %d proposals, hasMore=%v", len(proposals), hasMore)
	}
}

func TestMeetings(t *testing.T) {
	date := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)

	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/proposals/p1/meeting": func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Dates []time.Time `json:"suggested_dates"`
			}
			json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
			jsonResponse(w, 200, Proposal{ID: "p1", VirtualMeeting: &VirtualMeeting{State: "requested_by_guest", SuggestedDates: body.Dates}})
		},
		"POST /api/v1/proposals/p1/meeting/book": func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Date time.Time `json:"date"`
			}
			json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
			jsonResponse(w, 200, Proposal{ID: "p1", VirtualMeeting: &VirtualMeeting{State: "booked_awaiting_confirmation", BookedDate: &body.Date}})
		},
	})

	ctx := context.Background()

	p, err := c.Meetings.Request(ctx, "p1", date)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if len(p.VirtualMeeting.SuggestedDates) != 1 || !p.VirtualMeeting.SuggestedDates[0].Equal(date) {
		t.Errorf("Request: got %+v", p.VirtualMeeting)
	}

	p, err = c.As("host", "h1").Meetings.Book(ctx, "p1", date)
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if p.VirtualMeeting.BookedDate == nil || !p.VirtualMeeting.BookedDate.Equal(date) {
		t.Errorf("Book: got %+v", p.VirtualMeeting)
	}
}

func TestAdminExpire(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/admin/expire": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
			if body["older_than"] != "72h0m0s" {
				jsonResponse(w, 400, map[string]string{"code": "validation_error", "message": "older_than"})
				return
			}
			jsonResponse(w, 200, ExpireResult{Scanned: 2, Cancelled: []string{"p1"}, Skipped: []string{"p2"}})
		},
	})

	res, err := c.As("platform", "ops").Admin.Expire(context.Background(), &ExpireOptions{OlderThan: 72 * time.Hour})
	if err != nil {
		t.Fatalf("Expire error: %v", err)
	}
	if res.Scanned != 2 || len(res.Cancelled) != 1 {
		t.Errorf("Expire: got %+v", res)
	}
}

func TestAPIErrors(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/proposals/p1/accept": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 409, map[string]any{
				"code":       CodeInvalidTransition,
				"message":    "operation accept by guest is not allowed in status pending",
				"request_id": "req-1",
				"details":    map[string]string{"Status": "pending"},
			})
		},
		"POST /api/v1/proposals/p1/remind": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 429, map[string]string{"code": CodeThrottleExceeded, "message": "reminder limit reached"})
		},
		"POST /api/v1/proposals/p1/cancel": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 409, map[string]string{"code": CodeConcurrentModification, "message": "busy"})
		},
		"GET /api/v1/proposals/missing": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(404)
			w.Write([]byte("gone")) //nolint:errcheck
		},
	})

	ctx := context.Background()

	_, err := c.Proposals.Accept(ctx, "p1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if !IsConflict(err) || !HasCode(err, CodeInvalidTransition) || IsRetryable(err) {
		t.Errorf("classification wrong for %v", err)
	}
	if apiErr.Details["Status"] != "pending" || apiErr.RequestID != "req-1" {
		t.Errorf("got %+v", apiErr)
	}

	_, err = c.Proposals.Remind(ctx, "p1")
	if !IsRateLimited(err) || !HasCode(err, CodeThrottleExceeded) {
		t.Errorf("remind: got %v", err)
	}

	_, err = c.Proposals.Cancel(ctx, "p1", "")
	if !IsRetryable(err) {
		t.Errorf("cancel: expected retryable, got %v", err)
	}

	_, err = c.Proposals.Get(ctx, "missing")
	if !IsNotFound(err) {
		t.Errorf("get: expected not found, got %v", err)
	}
	if !HasCode(err, "unknown") {
		t.Errorf("non-JSON body should decode as unknown, got %v", err)
	}
}

func TestRetriesLeaseConflicts(t *testing.T) {
	attempts := 0
	srv, _ := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/proposals/p1/accept": func(w http.ResponseWriter, _ *http.Request) {
			attempts++
			if attempts < 3 {
				w.Header().Set(headerRequestID, "req-busy")
				jsonResponse(w, 409, map[string]string{"code": CodeConcurrentModification, "message": "busy"})
				return
			}
			jsonResponse(w, 200, Proposal{ID: "p1", Status: "host_review"})
		},
		"POST /api/v1/proposals/p1/reject": func(w http.ResponseWriter, _ *http.Request) {
			attempts++
			jsonResponse(w, 409, map[string]string{"code": CodeInvalidTransition, "message": "no"})
		},
	})

	c := New(srv.URL, WithActor("host", "h1"), WithRetries(3))

	p, err := c.Proposals.Accept(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	if p.ID != "p1" || attempts != 3 {
		t.Errorf("got %s after %d attempts", p.ID, attempts)
	}

	attempts = 0
	if _, err := c.Proposals.Reject(context.Background(), "p1", ""); !HasCode(err, CodeInvalidTransition) {
		t.Errorf("reject: got %v", err)
	}
	if attempts != 1 {
		t.Errorf("non-retryable error sent %d times", attempts)
	}

	noRetry := New(srv.URL, WithActor("host", "h1"))
	attempts = 0
	_, err = noRetry.Proposals.Accept(context.Background(), "p1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.RequestID != "req-busy" {
		t.Errorf("expected request id from header, got %v", err)
	}
}

func TestStatuses(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/statuses": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, map[string]any{
				"statuses": []map[string]any{
					{"status": "host_review", "stage_index": 2, "usual_order": 3, "guest_action_label": "Remind Host"},
				},
				"transitions": []map[string]any{
					{"from": "host_review", "operation": "accept", "actors": []string{"host"}, "to": "accepted_drafting_documents"},
				},
			})
		},
	})

	reg, err := c.Admin.Statuses(context.Background())
	if err != nil {
		t.Fatalf("Statuses error: %v", err)
	}
	if len(reg.Statuses) != 1 || reg.Statuses[0].GuestActionLabel != "Remind Host" {
		t.Errorf("statuses = %+v", reg.Statuses)
	}
	if len(reg.Transitions) != 1 || reg.Transitions[0].Actors[0] != "host" {
		t.Errorf("transitions = %+v", reg.Transitions)
	}
}
