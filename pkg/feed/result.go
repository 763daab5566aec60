package feed

import (
	"bytes"
	"encoding/json"
)

// Result classifies one feed request. The crawler loop switches on the
// concrete type, so the classification table stays exhaustive at compile time.
type Result interface {
	feedResult()
}

// Page is a successful feed page (HTTP 200).
type Page struct {
	Data       []Item
	NextOffset Offset
	PrevOffset Offset
}

// TransientError covers transport failures and body/JSON decode failures.
type TransientError struct {
	Err error
}

// TooManyRequests is an HTTP 429.
type TooManyRequests struct{}

// PreconditionFailed is an HTTP 412; the request is retried as-is.
type PreconditionFailed struct{}

// OffsetInvalid is an HTTP 404: the server no longer accepts the cursor.
type OffsetInvalid struct{}

// UnexpectedStatus is any other non-2xx reply.
type UnexpectedStatus struct {
	Code int
	Body string
}

func (*Page) feedResult()               {}
func (*TransientError) feedResult()     {}
func (*TooManyRequests) feedResult()    {}
func (*PreconditionFailed) feedResult() {}
func (*OffsetInvalid) feedResult()      {}
func (*UnexpectedStatus) feedResult()   {}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Item is one feed entry. Raw carries the complete item document for the
// data handler; ID, DateModified and Status are lifted out because the
// position writer and the stop barrier need them.
type Item struct {
	ID           string
	DateModified string
	Status       string
	Raw          json.RawMessage
}

// UnmarshalJSON keeps the raw document alongside the lifted fields.
func (it *Item) UnmarshalJSON(data []byte) error {
	var envelope struct {
		ID           string `json:"id"`
		DateModified string `json:"dateModified"`
		Status       string `json:"status"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	it.ID = envelope.ID
	it.DateModified = envelope.DateModified
	it.Status = envelope.Status
	it.Raw = append(it.Raw[:0], data...)
	return nil
}

// MarshalJSON emits the original document.
func (it Item) MarshalJSON() ([]byte, error) {
	if it.Raw != nil {
		return it.Raw, nil
	}
	return json.Marshal(struct {
		ID           string `json:"id"`
		DateModified string `json:"dateModified,omitempty"`
		Status       string `json:"status,omitempty"`
	}{it.ID, it.DateModified, it.Status})
}

// Offset is the server's opaque feed cursor. The wire value may be a JSON
// string or a JSON number; numbers are kept as their literal text because
// cursors like "1731103209.0000000001" do not survive float64.
type Offset string

// UnmarshalJSON accepts both string and number cursors.
func (o *Offset) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*o = Offset(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*o = ""
		return nil
	}
	*o = Offset(data)
	return nil
}

// MarshalJSON always emits the cursor as a string; the server accepts it verbatim.
func (o Offset) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(o))
}

// pageWire is the feed's 200-response envelope.
type pageWire struct {
	Data     []Item  `json:"data"`
	NextPage pageRef `json:"next_page"`
	PrevPage pageRef `json:"prev_page"`
}

type pageRef struct {
	Offset Offset `json:"offset"`
}
