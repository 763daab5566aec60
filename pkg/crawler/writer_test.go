package crawler

import (
	"testing"

	"github.com/opentender/feedcrawler/pkg/feed"
)

func TestDerivedDateModified(t *testing.T) {
	skip := []string{"active.tendering"}
	cases := []struct {
		name  string
		items []feed.Item
		want  string
	}{
		{
			name: "tail item qualifies",
			items: []feed.Item{
				{DateModified: "A", Status: "complete"},
				{DateModified: "B", Status: "complete"},
			},
			want: "B",
		},
		{
			name: "tail item skipped",
			items: []feed.Item{
				{DateModified: "A", Status: "complete"},
				{DateModified: "B", Status: "active.tendering"},
			},
			want: "A",
		},
		{
			name: "all skipped",
			items: []feed.Item{
				{DateModified: "A", Status: "active.tendering"},
			},
			want: "",
		},
		{
			name:  "empty page",
			items: nil,
			want:  "",
		},
		{
			name: "missing status never skipped",
			items: []feed.Item{
				{DateModified: "A"},
			},
			want: "A",
		},
		{
			name: "missing dateModified keeps scanning",
			items: []feed.Item{
				{DateModified: "A", Status: "complete"},
				{Status: "complete"},
			},
			want: "A",
		},
		{
			name: "no dateModified anywhere",
			items: []feed.Item{
				{Status: "complete"},
				{Status: "complete"},
			},
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := derivedDateModified(tc.items, skip); got != tc.want {
				t.Errorf("derivedDateModified() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResultClass(t *testing.T) {
	cases := []struct {
		result feed.Result
		want   string
	}{
		{&feed.Page{}, "page"},
		{&feed.TransientError{}, "transient_error"},
		{&feed.TooManyRequests{}, "too_many_requests"},
		{&feed.PreconditionFailed{}, "precondition_failed"},
		{&feed.OffsetInvalid{}, "offset_invalid"},
		{&feed.UnexpectedStatus{Code: 502}, "unexpected_status"},
	}
	for _, tc := range cases {
		if got := resultClass(tc.result); got != tc.want {
			t.Errorf("resultClass(%T) = %q, want %q", tc.result, got, tc.want)
		}
	}
}
