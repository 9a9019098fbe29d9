package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/repository"
)

func TestPageFromQuery(t *testing.T) {
	tests := []struct {
		query string
		want  repository.Page
	}{
		{"", repository.Page{Limit: repository.DefaultPageSize}},
		{"limit=5&offset=10", repository.Page{Limit: 5, Offset: 10}},
		{"limit=100000", repository.Page{Limit: repository.MaxPageSize}},
		{"limit=-1&offset=-4", repository.Page{Limit: repository.DefaultPageSize}},
		{"limit=abc", repository.Page{Limit: repository.DefaultPageSize}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/orders?"+tt.query, nil)
			assert.Equal(t, tt.want, pageFromQuery(r))
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("date", "2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, 4, d.Day())

	_, err = parseDate("from", "")
	require.Error(t, err)
	assert.Contains(t, domain.GetValidationFields(err), "from")

	_, err = parseDate("to", "2026-13-01")
	require.Error(t, err)
	assert.Contains(t, domain.GetValidationFields(err), "to")
}

func TestCanAccess(t *testing.T) {
	owner := uuid.New()

	ctx := domain.NewContextWithActor(context.Background(), &domain.Actor{UserID: owner, Role: domain.RoleCustomer})
	assert.True(t, canAccess(ctx, owner))
	assert.False(t, canAccess(ctx, uuid.New()))

	staff := domain.NewContextWithActor(context.Background(), &domain.Actor{UserID: uuid.New(), Role: domain.RoleStaff})
	assert.True(t, canAccess(staff, owner))

	assert.False(t, canAccess(context.Background(), owner))
}

func TestPathUUID(t *testing.T) {
	mux := http.NewServeMux()
	var (
		got uuid.UUID
		err error
	)
	mux.HandleFunc("GET /things/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, err = pathUUID(r, "id")
	})

	id := uuid.New()
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/"+id.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/not-a-uuid", nil))
	assert.True(t, domain.IsCode(err, domain.EINVALID))
}

func TestDecodeOptional(t *testing.T) {
	var req cancelRequest
	require.NoError(t, decodeOptional(httptest.NewRequest(http.MethodPost, "/x", nil), &req))
	assert.Empty(t, req.Reason)

	r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"reason":"changed my mind"}`))
	require.NoError(t, decodeOptional(r, &req))
	assert.Equal(t, "changed my mind", req.Reason)

	r = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"nope":1}`))
	assert.Error(t, decodeOptional(r, &req))
}

func TestSessionOwner(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	_, err := sessionOwner(r)
	assert.True(t, domain.IsCode(err, domain.EUNAUTHORIZED))

	r.Header.Set(SessionIDHeader, strings.Repeat("s", maxSessionIDLength+1))
	_, err = sessionOwner(r)
	assert.True(t, domain.IsCode(err, domain.EINVALID))

	r.Header.Set(SessionIDHeader, "sess-42")
	o, err := sessionOwner(r)
	require.NoError(t, err)
	assert.Equal(t, "sess-42", o.SessionID)
	assert.Nil(t, o.UserID)
}
