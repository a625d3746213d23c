package service_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentagger/tagstore/internal/domain"
	"github.com/opentagger/tagstore/internal/service"
)

// TestAuthorize covers the full decision matrix: identity × owner × path kind.
// Read paths allow anonymous access to public data; write paths never allow
// anonymous; private namespaces require the exact matching identity.
func TestAuthorize(t *testing.T) {
	tests := []struct {
		name           string
		identity       string
		owner          string
		allowAnonymous bool
		wantErr        error
	}{
		{"anonymous read of public", "", "", true, nil},
		{"anonymous write of public", "", "", false, domain.ErrUnauthorized},
		{"anonymous read of private", "", "alice", true, domain.ErrUnauthorized},
		{"anonymous write of private", "", "alice", false, domain.ErrUnauthorized},
		{"authenticated read of public", "alice", "", true, nil},
		{"authenticated write of public", "alice", "", false, nil},
		{"owner reads own namespace", "alice", "alice", true, nil},
		{"owner writes own namespace", "alice", "alice", false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.Authorize(tt.identity, tt.owner, tt.allowAnonymous)

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

// TestAuthorize_OwnerMismatch asserts the wrong-identity case is reported as
// an ownership mismatch (422-class), not as missing authentication (401),
// and that the error names the expected owner.
func TestAuthorize_OwnerMismatch(t *testing.T) {
	err := service.Authorize("bob", "alice", true)

	var mismatch *domain.OwnerMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "alice", mismatch.Owner)
	assert.Equal(t, "bob", mismatch.Identity)
	assert.False(t, errors.Is(err, domain.ErrUnauthorized))
	assert.Contains(t, err.Error(), "alice")
}
