package feed

import (
	"encoding/json"
	"testing"
	"time"
)

func TestOffsetPreservesNumberPrecision(t *testing.T) {
	var page pageWire
	body := `{"data":[],"next_page":{"offset":1731103209.0000000001},"prev_page":{"offset":"abc.1.2.def"}}`
	if err := json.Unmarshal([]byte(body), &page); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	// float64 would collapse the increment digits; the literal must survive
	if got := string(page.NextPage.Offset); got != "1731103209.0000000001" {
		t.Errorf("numeric offset = %q, want literal 1731103209.0000000001", got)
	}
	if got := string(page.PrevPage.Offset); got != "abc.1.2.def" {
		t.Errorf("string offset = %q", got)
	}
}

func TestOffsetNullAndRoundTrip(t *testing.T) {
	var ref pageRef
	if err := json.Unmarshal([]byte(`{"offset":null}`), &ref); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if ref.Offset != "" {
		t.Errorf("null offset = %q, want empty", ref.Offset)
	}

	out, err := json.Marshal(Offset("123.0"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != `"123.0"` {
		t.Errorf("marshaled offset = %s, want \"123.0\"", out)
	}
}

func TestItemKeepsRawDocument(t *testing.T) {
	raw := `{"id":"t-1","dateModified":"2024-05-01T10:00:00+03:00","status":"active.tendering","value":{"amount":1000}}`
	var item Item
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if item.ID != "t-1" || item.Status != "active.tendering" {
		t.Errorf("lifted fields = %q/%q", item.ID, item.Status)
	}
	if item.DateModified != "2024-05-01T10:00:00+03:00" {
		t.Errorf("dateModified = %q", item.DateModified)
	}

	// the handler must see the complete document, not just the lifted fields
	var doc map[string]any
	if err := json.Unmarshal(item.Raw, &doc); err != nil {
		t.Fatalf("raw is not valid JSON: %v", err)
	}
	if _, ok := doc["value"]; !ok {
		t.Error("raw document lost the value field")
	}

	out, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != raw {
		t.Errorf("marshal = %s, want original document", out)
	}
}

func TestOffsetAge(t *testing.T) {
	now := time.Unix(1731103210, 0)

	age, ok := OffsetAge("1731103209.0000000001", now)
	if !ok {
		t.Fatal("OffsetAge rejected a valid two-part offset")
	}
	if age < 900*time.Millisecond || age > 1100*time.Millisecond {
		t.Errorf("age = %s, want ~1s", age)
	}

	for _, bad := range []Offset{
		"",
		"not-a-timestamp",
		"173110.3209.0000.0001", // composite cursor, no wall-clock prefix
		"abc.123",
	} {
		if _, ok := OffsetAge(bad, now); ok {
			t.Errorf("OffsetAge accepted malformed offset %q", bad)
		}
	}
}

func TestTransientErrorUnwraps(t *testing.T) {
	inner := json.Unmarshal([]byte("{"), &struct{}{})
	e := &TransientError{Err: inner}
	if e.Unwrap() != inner {
		t.Error("Unwrap did not return the inner error")
	}
	if e.Error() == "" {
		t.Error("Error() is empty")
	}
}
