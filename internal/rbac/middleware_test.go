package rbac_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txgate/txgate/internal/rbac"
	"github.com/txgate/txgate/internal/shared"
)

type staticResolver struct {
	perms rbac.PermissionSet
	err   error
}

func (s staticResolver) EffectivePermissions(context.Context, uuid.UUID) (rbac.PermissionSet, error) {
	return s.perms, s.err
}

func serveGate(t *testing.T, resolver rbac.Resolver, withPrincipal bool, perms ...string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	mw := rbac.Middleware{Resolver: resolver}
	h := mw.RequireAll(perms...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", nil)
	if withPrincipal {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: uuid.New(), Email: "a@example.com"}))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr, reached
}

func TestRequireAllAllowsWhenGranted(t *testing.T) {
	resolver := staticResolver{perms: rbac.NewPermissionSet(shared.PermTransactionsView, shared.PermTransactionsInput)}
	rr, reached := serveGate(t, resolver, true, shared.PermTransactionsInput)
	assert.True(t, reached)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRequireAllForbidsMissingCapability(t *testing.T) {
	resolver := staticResolver{perms: rbac.NewPermissionSet(shared.PermTransactionsView)}
	rr, reached := serveGate(t, resolver, true, shared.PermTransactionsView, shared.PermTransactionsInput)
	assert.False(t, reached)
	require.Equal(t, http.StatusForbidden, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body["message"], shared.PermTransactionsInput)
}

func TestRequireAllWithoutPrincipal(t *testing.T) {
	rr, reached := serveGate(t, staticResolver{}, false, shared.PermTransactionsView)
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireAllResolverFailure(t *testing.T) {
	rr, reached := serveGate(t, staticResolver{err: errors.New("db down")}, true, shared.PermTransactionsView)
	assert.False(t, reached)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRequireAllNoRequirement(t *testing.T) {
	rr, reached := serveGate(t, staticResolver{}, false)
	assert.True(t, reached)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
