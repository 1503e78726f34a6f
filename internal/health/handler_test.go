package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"teamup/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type pingFunc func(ctx context.Context, rp *readpref.ReadPref) error

func (f pingFunc) Ping(ctx context.Context, rp *readpref.ReadPref) error {
	return f(ctx, rp)
}

func serve(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	router := httprouter.New()
	h.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealth_AlwaysOK(t *testing.T) {
	down := pingFunc(func(ctx context.Context, rp *readpref.ReadPref) error { return errors.New("no primary") })

	rec, body := serve(t, NewHandler(down, false, logger.Discard()), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body.Status)
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		kafka      bool
		wantStatus int
		want       Response
	}{
		{
			name:       "database up",
			wantStatus: http.StatusOK,
			want:       Response{Status: "ready", Database: "ok", Events: "in-process"},
		},
		{
			name:       "database down",
			pingErr:    errors.New("server selection timeout"),
			kafka:      true,
			wantStatus: http.StatusServiceUnavailable,
			want:       Response{Status: "unavailable", Database: "error", Events: "kafka"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := pingFunc(func(ctx context.Context, rp *readpref.ReadPref) error {
				_, hasDeadline := ctx.Deadline()
				assert.True(t, hasDeadline)
				return tt.pingErr
			})

			rec, body := serve(t, NewHandler(db, tt.kafka, logger.Discard()), "/ready")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.want, body)
		})
	}
}
