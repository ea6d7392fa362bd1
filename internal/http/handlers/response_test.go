package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-review-catalog/internal/authz"
	"github.com/tbourn/go-review-catalog/internal/services"
)

func Test_fail_500_LogsAndBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-500")
		c.Set("logger", &logger)
		c.Next()
	})

	r.GET("/boom", func(c *gin.Context) {
		fail(c, http.StatusInternalServerError, "internal_error", "kaboom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.RequestID != "rid-500" || resp.Code != "internal_error" || resp.Message != "kaboom" {
		t.Fatalf("unexpected body: %+v", resp)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error log, got: %s", buf.String())
	}
}

func Test_Fail_404_And_SuccessHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-404")
		c.Next()
	})
	r.GET("/missing", func(c *gin.Context) { Fail(c, http.StatusNotFound, "not_found", "nope") })
	r.GET("/ok", func(c *gin.Context) { ok(c, http.StatusCreated, gin.H{"ok": true}) })
	r.DELETE("/gone", func(c *gin.Context) { noContent(c) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json 404: %v", err)
	}
	if w.Code != http.StatusNotFound || er.RequestID != "rid-404" || er.Code != "not_found" {
		t.Fatalf("unexpected 404: %d %+v", w.Code, er)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("ok helper: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/gone", nil))
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("noContent: %d", w.Code)
	}
}

func Test_writeError_Mapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"validation", &services.ValidationError{Field: "score", Message: "too high"}, 400, ErrCodeBadRequest, "score: too high"},
		{"wrapped validation", fmt.Errorf("bind: %w", services.ErrValidation), 400, ErrCodeBadRequest, ""},
		{"unknown account", services.ErrUnknownAccount, 400, ErrCodeInvalidCredentials, credentialsMessage},
		{"bad code", services.ErrInvalidConfirmationCode, 400, ErrCodeInvalidCredentials, credentialsMessage},
		{"bad token", fmt.Errorf("%w: expired", services.ErrInvalidToken), 401, ErrCodeUnauthorized, ""},
		{"anonymous", authz.ErrNotAuthenticated, 401, ErrCodeUnauthorized, ""},
		{"forbidden", authz.ErrForbidden, 403, ErrCodeForbidden, ""},
		{"not found", services.ErrReviewNotFound, 404, ErrCodeNotFound, "review not found"},
		{"duplicate", services.ErrDuplicateReview, 409, ErrCodeConflict, ""},
		{"other", errors.New("disk on fire"), 500, ErrCodeInternal, "internal error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", func(c *gin.Context) { writeError(c, tc.err) })
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			if w.Code != tc.wantStatus {
				t.Fatalf("status=%d want %d", w.Code, tc.wantStatus)
			}
			var er ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
				t.Fatalf("json: %v", err)
			}
			if er.Code != tc.wantCode {
				t.Fatalf("code=%q want %q", er.Code, tc.wantCode)
			}
			if tc.wantMsg != "" && er.Message != tc.wantMsg {
				t.Fatalf("message=%q want %q", er.Message, tc.wantMsg)
			}
			if tc.wantStatus == 401 && w.Header().Get("WWW-Authenticate") == "" {
				t.Fatalf("401 without WWW-Authenticate")
			}
		})
	}
}
