package task

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseIDRoundTrip verifies both id shapes survive the persisted
// string form.
func TestParseIDRoundTrip(t *testing.T) {
	internal := NewID()
	got, err := ParseID(internal.String())
	require.NoError(t, err)
	assert.Equal(t, internal, got)
	assert.False(t, got.IsUser())

	user, err := ParseUserID("nightly-backup")
	require.NoError(t, err)
	got, err = ParseID(user.String())
	require.NoError(t, err)
	assert.Equal(t, user, got)
	assert.True(t, got.IsUser())
}

// TestParseIDRejectsMalformed verifies a corrupted persisted id
// surfaces as an error instead of loading as a zero id.
func TestParseIDRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "has space", "tab\tseparated"} {
		_, err := ParseID(s)
		assert.ErrorIs(t, err, ErrInvalidUserID, "id %q", s)
	}

	assert.True(t, ID{}.IsZero())
	assert.Equal(t, uuid.Nil.String(), ID{}.String())
}
