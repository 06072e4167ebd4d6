package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func identityProbe() (http.Handler, *string) {
	var seen string
	h := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUsername(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return h, &seen
}

func TestIdentitySources(t *testing.T) {
	tests := []struct {
		name       string
		prep       func(r *http.Request)
		wantStatus int
		wantUser   string
	}{
		{
			name:       "header",
			prep:       func(r *http.Request) { r.Header.Set("X-Username", "alice") },
			wantStatus: http.StatusOK,
			wantUser:   "alice",
		},
		{
			name:       "cookie",
			prep:       func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "connectra_user", Value: "bob"}) },
			wantStatus: http.StatusOK,
			wantUser:   "bob",
		},
		{
			name:       "query parameter",
			prep:       func(r *http.Request) { r.URL.RawQuery = "username=carol" },
			wantStatus: http.StatusOK,
			wantUser:   "carol",
		},
		{
			name: "header wins over cookie",
			prep: func(r *http.Request) {
				r.Header.Set("X-Username", "alice")
				r.AddCookie(&http.Cookie{Name: "connectra_user", Value: "bob"})
			},
			wantStatus: http.StatusOK,
			wantUser:   "alice",
		},
		{
			name:       "missing identity",
			prep:       func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "rejects invalid characters",
			prep:       func(r *http.Request) { r.Header.Set("X-Username", "a b; drop") },
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, seen := identityProbe()
			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			tt.prep(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && *seen != tt.wantUser {
				t.Fatalf("username = %q, want %q", *seen, tt.wantUser)
			}
		})
	}
}
