package history

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"timetrail/pkg/domain"
	dErrors "timetrail/pkg/domain-errors"
)

// Cursors encode the keyset position as base64url("unixNanos:eventID").
// Clients must treat the string as opaque; anything that does not decode to
// a well-formed pair is rejected with CodeInvalidCursor rather than being
// silently treated as "no cursor".

// EncodeCursor serializes the (occurredAt, id) pair of a page's last row.
func EncodeCursor(c Cursor) string {
	raw := fmt.Sprintf("%d:%s", c.OccurredAt.UnixNano(), c.ID.String())
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses an opaque cursor string. An empty input returns a nil
// cursor (first page); malformed input returns an invalid-cursor error.
func DecodeCursor(encoded string) (*Cursor, error) {
	if encoded == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidCursor, "cursor is not valid")
	}
	nanos, idPart, ok := strings.Cut(string(raw), ":")
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidCursor, "cursor is not valid")
	}
	unixNanos, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidCursor, "cursor is not valid")
	}
	parsed, err := uuid.Parse(idPart)
	if err != nil || parsed == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvalidCursor, "cursor is not valid")
	}
	return &Cursor{
		OccurredAt: time.Unix(0, unixNanos).UTC(),
		ID:         domain.EventID(parsed),
	}, nil
}
