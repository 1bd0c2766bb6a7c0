package history

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrail/pkg/domain"
	dErrors "timetrail/pkg/domain-errors"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	id := domain.NewEventID()

	encoded := EncodeCursor(Cursor{OccurredAt: at, ID: id})
	decoded, err := DecodeCursor(encoded)

	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.True(t, at.Equal(decoded.OccurredAt), "nanosecond precision must survive the round trip")
	assert.Equal(t, id, decoded.ID)
}

func TestDecodeCursorEmpty(t *testing.T) {
	decoded, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, decoded, "empty cursor means first page")
}

func TestDecodeCursorMalformed(t *testing.T) {
	encode := func(raw string) string {
		return base64.RawURLEncoding.EncodeToString([]byte(raw))
	}

	cases := map[string]string{
		"not base64":           "%%%not-base64%%%",
		"no separator":         encode("123456789"),
		"non-numeric time":     encode("yesterday:" + domain.NewEventID().String()),
		"garbage id":           encode("1700000000000000000:not-a-uuid"),
		"nil id":               encode("1700000000000000000:00000000-0000-0000-0000-000000000000"),
		"trailing separator":   encode("1700000000000000000:"),
		"random user payload":  encode(`{"page":2}`),
		"tampered valid chars": "AAAAAAAA",
	}

	for name, cursor := range cases {
		t.Run(name, func(t *testing.T) {
			decoded, err := DecodeCursor(cursor)
			require.Error(t, err)
			assert.Nil(t, decoded)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCursor),
				"malformed cursors fail loudly, they are never treated as page one")
		})
	}
}
