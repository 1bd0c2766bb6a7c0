package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrail/pkg/domain"
	dErrors "timetrail/pkg/domain-errors"
	"timetrail/pkg/testutil"
)

func TestTokenRoundTrip(t *testing.T) {
	service := NewJWTService("test-signing-key", "timetrail", "timetrail")
	userID := testutil.NewUserID()
	companyID := testutil.NewCompanyID()

	token, err := service.GenerateAccessToken(userID, companyID,
		[]string{domain.PermViewOrgHistory}, time.Hour)
	require.NoError(t, err)

	actor, err := service.ActorFromToken(token)
	require.NoError(t, err)

	assert.Equal(t, userID, actor.ID)
	assert.Equal(t, companyID, actor.CompanyID)
	assert.True(t, actor.Can(domain.PermViewOrgHistory))
	assert.False(t, actor.Can(domain.PermApproveTimesheets))
}

func TestTokenPermissionNormalization(t *testing.T) {
	service := NewJWTService("test-signing-key", "timetrail", "timetrail")

	token, err := service.GenerateAccessToken(testutil.NewUserID(), testutil.NewCompanyID(),
		[]string{" Timesheet:Approve ", "timesheet:approve"}, time.Hour)
	require.NoError(t, err)

	actor, err := service.ActorFromToken(token)
	require.NoError(t, err)
	assert.True(t, actor.Can(domain.PermApproveTimesheets))
}

func TestTokenRejection(t *testing.T) {
	service := NewJWTService("test-signing-key", "timetrail", "timetrail")

	t.Run("expired token", func(t *testing.T) {
		token, err := service.GenerateAccessToken(testutil.NewUserID(), testutil.NewCompanyID(), nil, -time.Minute)
		require.NoError(t, err)

		_, err = service.ActorFromToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewJWTService("a-different-key", "timetrail", "timetrail")
		token, err := other.GenerateAccessToken(testutil.NewUserID(), testutil.NewCompanyID(), nil, time.Hour)
		require.NoError(t, err)

		_, err = service.ActorFromToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := service.ActorFromToken("not.a.token")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
