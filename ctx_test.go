package identity

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUserContextRoundTrip(t *testing.T) {
	user := &User{ID: uuid.New(), Username: "alice"}

	ctx := WithContext(context.Background(), user)

	got, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, user, got)
}

func TestFromContextMissing(t *testing.T) {
	got, ok := FromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestGetClaims(t *testing.T) {
	tests := []struct {
		name     string
		setupCtx func() context.Context
		wantOK   bool
	}{
		{
			name: "should return claims when present in context",
			setupCtx: func() context.Context {
				claims := &JWTClaims{
					RegisteredClaims: jwt.RegisteredClaims{
						Subject: "user123",
					},
					UID:      "user123",
					TokenUse: TokenUseAccess,
				}
				return WithClaimsContext(context.Background(), claims)
			},
			wantOK: true,
		},
		{
			name: "should return false when no claims in context",
			setupCtx: func() context.Context {
				return context.Background()
			},
			wantOK: false,
		},
		{
			name: "should return false when context has wrong type",
			setupCtx: func() context.Context {
				return context.WithValue(context.Background(), claimsCtxKey, "not-a-claims-object")
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, ok := GetClaims(tt.setupCtx())
			assert.Equal(t, tt.wantOK, ok)

			if tt.wantOK {
				assert.Equal(t, "user123", claims.UserID())
			} else {
				assert.Nil(t, claims)
			}
		})
	}
}
