package history

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"timetrail/pkg/testutil"
)

func newRecordRequest() RecordRequest {
	actor := testutil.NewActor()
	return RecordRequest{
		CompanyID:   actor.CompanyID,
		TargetType:  TargetTimesheetEntry,
		TargetID:    "entry-1",
		Action:      ActionSubmitted,
		UserID:      actor.ID,
		ActorUserID: actor.ID,
	}
}

func TestResolveIdempotencyKey(t *testing.T) {
	t.Run("explicit key wins over nonce", func(t *testing.T) {
		req := newRecordRequest()
		req.IdempotencyKey = "client-key-1"
		req.IdempotencyNonce = "nonce-1"

		assert.Equal(t, "client-key-1", ResolveIdempotencyKey(req))
	})

	t.Run("explicit key is trimmed", func(t *testing.T) {
		req := newRecordRequest()
		req.IdempotencyKey = "  padded-key  "

		assert.Equal(t, "padded-key", ResolveIdempotencyKey(req))
	})

	t.Run("nonce derives a deterministic key", func(t *testing.T) {
		req := newRecordRequest()
		req.IdempotencyNonce = "nonce-1"

		first := ResolveIdempotencyKey(req)
		second := ResolveIdempotencyKey(req)

		assert.NotEmpty(t, first)
		assert.Equal(t, first, second)
		assert.NotEqual(t, "nonce-1", first, "nonce must be hashed, not used raw")
	})

	t.Run("no key and no nonce yields no deduplication", func(t *testing.T) {
		req := newRecordRequest()
		assert.Empty(t, ResolveIdempotencyKey(req))
	})

	t.Run("whitespace-only inputs count as absent", func(t *testing.T) {
		req := newRecordRequest()
		req.IdempotencyKey = "   "
		req.IdempotencyNonce = "\t\n"

		assert.Empty(t, ResolveIdempotencyKey(req))
	})
}

func TestDeriveIdempotencyKey(t *testing.T) {
	t.Run("changes when any tuple field changes", func(t *testing.T) {
		base := newRecordRequest()
		baseKey := DeriveIdempotencyKey("nonce", base)

		variants := map[string]RecordRequest{}

		v := base
		v.TargetType = TargetLeaveRequest
		variants["target type"] = v

		v = base
		v.TargetID = "entry-2"
		variants["target id"] = v

		v = base
		v.Action = ActionApproved
		variants["action"] = v

		v = base
		v.ActorUserID = testutil.NewUserID()
		variants["actor"] = v

		v = base
		v.CompanyID = testutil.NewCompanyID()
		variants["company"] = v

		for name, variant := range variants {
			assert.NotEqual(t, baseKey, DeriveIdempotencyKey("nonce", variant),
				"different %s must derive a different key", name)
		}
	})

	t.Run("changes with the nonce", func(t *testing.T) {
		req := newRecordRequest()
		assert.NotEqual(t,
			DeriveIdempotencyKey("nonce-a", req),
			DeriveIdempotencyKey("nonce-b", req),
		)
	})

	t.Run("ignores non-identifying payload", func(t *testing.T) {
		req := newRecordRequest()
		key := DeriveIdempotencyKey("nonce", req)

		req.Reason = "late approval"
		req.Diff = map[string]any{"hours": 8}

		assert.Equal(t, key, DeriveIdempotencyKey("nonce", req))
	})
}
