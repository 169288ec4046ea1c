package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/clinic/internal/platform/apperr"
)

func TestPrincipal_IsAuthenticated(t *testing.T) {
	assert.False(t, Principal{}.IsAuthenticated())
	assert.True(t, Principal{ID: uuid.New()}.IsAuthenticated())
}

func TestRequireAuthenticated(t *testing.T) {
	_, err := RequireAuthenticated(context.Background())
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	p := testPrincipal()
	sid := uuid.New()
	ctx := WithPrincipal(context.Background(), p, sid)

	got, err := RequireAuthenticated(ctx)
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Equal(t, sid, SessionIDFromContext(ctx))
	assert.Equal(t, p.ID.String(), UserIDFromContext(ctx))
	assert.Equal(t, "", UserIDFromContext(context.Background()))
}
