package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRespondErrorDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	c.Set("request_id", "req-1")

	RespondErrorDetails(c, http.StatusConflict, "invalid_transition", "nope", map[string]string{"Status": "pending"})

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if !c.IsAborted() {
		t.Error("context not aborted")
	}

	var body ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if body.RequestID != "req-1" || body.Details["Status"] != "pending" {
		t.Errorf("body = %+v", body)
	}
}

func TestRespondError_OmitsEmptyFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)

	RespondError(c, http.StatusNotFound, "not_found", "proposal not found")

	var raw map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if _, ok := raw["details"]; ok {
		t.Error("details should be omitted")
	}
	if _, ok := raw["request_id"]; ok {
		t.Error("request_id should be omitted")
	}
}
