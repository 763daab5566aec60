package feed

import (
	"net/url"
	"strconv"
	"strings"
)

// Descending values for Params. The upstream API treats any non-empty value
// as descending, and emits "1" itself.
const (
	Forward  = ""
	Backward = "1"
)

// Params are the feed query parameters, passed by value per request.
type Params struct {
	Feed       string
	Descending string // Forward or Backward
	Offset     Offset
	Limit      int
	OptFields  []string
	Mode       string
}

// DefaultParams returns the changes-feed parameter set with the given page
// size, opt_fields and mode.
func DefaultParams(limit int, optFields []string, mode string) Params {
	return Params{
		Feed:      "changes",
		Limit:     limit,
		OptFields: optFields,
		Mode:      mode,
	}
}

// WithOffset returns a copy positioned at the given cursor.
func (p Params) WithOffset(offset Offset) Params {
	p.Offset = offset
	return p
}

// WithDescending returns a copy traversing in the given direction.
func (p Params) WithDescending(descending string) Params {
	p.Descending = descending
	return p
}

// IsBackward reports whether the params describe the descending traversal.
func (p Params) IsBackward() bool {
	return p.Descending != Forward
}

// Query encodes the parameters. All keys are always present; the server
// distinguishes an empty offset/descending from an absent one.
func (p Params) Query() url.Values {
	q := url.Values{}
	q.Set("feed", p.Feed)
	q.Set("descending", p.Descending)
	q.Set("offset", string(p.Offset))
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("opt_fields", strings.Join(p.OptFields, ","))
	q.Set("mode", p.Mode)
	return q
}
