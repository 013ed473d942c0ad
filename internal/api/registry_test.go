package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/splitlease/proposals/internal/api"
	"github.com/splitlease/proposals/internal/models"
)

func TestStatuses(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.GET("/statuses", api.Statuses)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/statuses", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Statuses []struct {
			Status   string `json:"status"`
			Terminal bool   `json:"terminal"`
		} `json:"statuses"`
		Transitions []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"transitions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(body.Statuses) != len(models.AllStatuses) {
		t.Errorf("statuses = %d, want %d", len(body.Statuses), len(models.AllStatuses))
	}
	if body.Statuses[0].Status != string(models.AllStatuses[0]) {
		t.Errorf("first status = %q, want %q", body.Statuses[0].Status, models.AllStatuses[0])
	}
	if len(body.Transitions) == 0 {
		t.Error("expected transitions")
	}
}
