package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "timetrail/pkg/domain-errors"
)

func TestParseIDs(t *testing.T) {
	valid := uuid.NewString()

	t.Run("accepts well-formed ids", func(t *testing.T) {
		companyID, err := ParseCompanyID(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, companyID.String())

		userID, err := ParseUserID(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, userID.String())

		eventID, err := ParseEventID(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, eventID.String())

		entryID, err := ParseEntryID(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, entryID.String())
	})

	t.Run("rejects empty, malformed, and nil ids", func(t *testing.T) {
		for _, raw := range []string{"", "not-a-uuid", uuid.Nil.String()} {
			_, err := ParseCompanyID(raw)
			require.Error(t, err, "input %q", raw)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})
}

func TestNewEventIDIsTimeOrdered(t *testing.T) {
	first := NewEventID()
	second := NewEventID()

	assert.False(t, first.IsNil())
	assert.NotEqual(t, first, second)

	// UUIDv7 sorts by creation time, which backs cursor tie-breaking.
	assert.Equal(t, uuid.Version(7), uuid.UUID(first).Version())
}

func TestActorPermissions(t *testing.T) {
	actor := NewActor(UserID(uuid.New()), CompanyID(uuid.New()), PermViewOrgHistory)

	assert.True(t, actor.Can(PermViewOrgHistory))
	assert.False(t, actor.Can(PermApproveTimesheets))
	assert.False(t, NewActor(UserID(uuid.New()), CompanyID(uuid.New())).Can(PermViewOrgHistory))
}
