package intake

import "errors"

// ErrInvalidPayload is returned when a webhook payload is missing a
// required field (spec §4.4); surfaced as 400 at the HTTP edge.
var ErrInvalidPayload = errors.New("intake: invalid payload")
