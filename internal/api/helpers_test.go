package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

// newTestRouter creates a gin engine that resolves the actor from headers.
func newTestRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Actor())

	return r
}

// doAs performs a request as the given role (none when empty).
func doAs(r *gin.Engine, role, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}

	if role != "" {
		req.Header.Set(middleware.ActorRoleHeader, role)
		req.Header.Set(middleware.ActorIDHeader, role+"-1")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

// doRequest performs an HTTP request against the test router and returns the recorder.
func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	return doAs(r, "", method, path, body)
}
