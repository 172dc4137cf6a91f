package services

import (
	"testing"

	types "github.com/clipforge/clipforge-backend/internal/domain"
)

func TestNormalizeSegmentsOrdersAndReassignsIDs(t *testing.T) {
	segs := []types.Segment{
		{Start: 10, End: 14, Text: "third"},
		{Start: 0, End: 4, Text: "first"},
		{Start: 5, End: 9, Text: "second"},
	}

	out := NormalizeSegments(segs)
	if len(out) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(out))
	}
	wantText := []string{"first", "second", "third"}
	for i, s := range out {
		if s.Text != wantText[i] {
			t.Fatalf("segment %d: got %q want %q", i, s.Text, wantText[i])
		}
		wantID := "seg_" + string(rune('0'+i))
		if s.ID != wantID {
			t.Fatalf("segment %d: got id %q want %q", i, s.ID, wantID)
		}
		if i > 0 && out[i-1].End > s.Start {
			t.Fatalf("segment %d overlaps previous (%v > %v)", i, out[i-1].End, s.Start)
		}
	}
}

func TestNormalizeSegmentsTruncatesOverlaps(t *testing.T) {
	segs := []types.Segment{
		{Start: 0, End: 6, Text: "a"},
		{Start: 4, End: 10, Text: "b"},
	}

	out := NormalizeSegments(segs)
	if len(out) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(out))
	}
	if out[0].End != 4 {
		t.Fatalf("expected first segment truncated at 4, got %v", out[0].End)
	}
}

func TestNormalizeSegmentsDropsInvalid(t *testing.T) {
	segs := []types.Segment{
		{Start: 0, End: 2, Text: "   "},
		{Start: 5, End: 3, Text: "inverted"},
		{Start: -1, End: 2, Text: "negative"},
		{Start: 2, End: 4, Text: "keep"},
	}

	out := NormalizeSegments(segs)
	if len(out) != 1 || out[0].Text != "keep" {
		t.Fatalf("expected only the valid segment, got %+v", out)
	}
}

func TestNormalizeSegmentsDropsFullyCoveredSegment(t *testing.T) {
	// The second segment starts at the same offset but the first fully
	// collapses once truncated, so it must be removed.
	segs := []types.Segment{
		{Start: 2, End: 8, Text: "a"},
		{Start: 2, End: 10, Text: "b"},
	}

	out := NormalizeSegments(segs)
	if len(out) != 1 {
		t.Fatalf("expected 1 segment, got %d: %+v", len(out), out)
	}
	if out[0].Text != "b" {
		t.Fatalf("expected surviving segment b, got %q", out[0].Text)
	}
}

func TestToGCSURI(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "passthrough", in: "gs://bucket/videos/a.mp4", want: "gs://bucket/videos/a.mp4"},
		{name: "public url", in: "https://storage.googleapis.com/bucket/videos/a.mp4", want: "gs://bucket/videos/a.mp4"},
		{name: "foreign host", in: "https://example.com/a.mp4", wantErr: true},
		{name: "missing key", in: "https://storage.googleapis.com/bucket", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := toGCSURI(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}
