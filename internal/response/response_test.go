package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) {
		if zerolog.Ctx(c.Request.Context()).GetLevel() == zerolog.Disabled {
			t.Error("request has no scoped logger")
		}
		Fail(c, http.StatusNotFound, ErrNotFound)
	})

	known := uuid.New().String()
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"client uuid is kept", known, true},
		{"garbage is replaced", "<script>", false},
		{"missing is generated", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("X-Request-ID %q is not a uuid", got)
			}
			if tt.keep != (got == tt.header) {
				t.Errorf("X-Request-ID = %q, header was %q", got, tt.header)
			}

			var body Response
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Metadata.RequestID != got {
				t.Errorf("metadata request_id = %q, want %q", body.Metadata.RequestID, got)
			}
			if body.Error == nil || body.Error.Code != ErrNotFound || body.Error.Message == "" {
				t.Errorf("error = %+v", body.Error)
			}
		})
	}
}
