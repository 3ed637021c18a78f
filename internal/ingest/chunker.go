package ingest

import "strings"

const (
	// windowLines is the fixed partition width: boundaries are line-count
	// based, not sentence- or token-aware. This bounds chunk size
	// predictably for downstream embedding cost without semantic
	// segmentation.
	windowLines = 40

	// minChunkLen is the surviving-segment threshold: any window whose
	// joined text is this long or shorter is discarded and never persisted.
	minChunkLen = 80
)

// SplitWindows partitions text into fixed 40-line windows, joins each
// window's lines with newlines, and drops segments of 80 characters or
// fewer. The returned order is the partition order; chunk ordinals are
// assigned over surviving segments only.
func SplitWindows(text string) []string {
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")

	var segments []string
	for start := 0; start < len(lines); start += windowLines {
		end := start + windowLines
		if end > len(lines) {
			end = len(lines)
		}

		segment := strings.Join(lines[start:end], "\n")
		if len(segment) <= minChunkLen {
			continue
		}
		segments = append(segments, segment)
	}

	return segments
}
