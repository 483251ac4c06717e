// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package internal_transcription

import (
	"fmt"
	"strings"

	internal_type "github.com/glimpsehq/glimpse/internal/type"
)

// SubtitleFormat selects the subtitle dialect.
type SubtitleFormat string

const (
	FormatSRT SubtitleFormat = "srt"
	FormatVTT SubtitleFormat = "vtt"
)

// ParseSubtitleFormat maps a request string onto a format.
func ParseSubtitleFormat(s string) (SubtitleFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "srt":
		return FormatSRT, nil
	case "vtt", "webvtt":
		return FormatVTT, nil
	default:
		return "", fmt.Errorf("unknown subtitle format %q", s)
	}
}

// ToSubtitle renders the segments as SRT or WebVTT. Pure: the segments are
// not modified and the output depends only on the input. Cues are numbered
// from 1 in segment order; SRT uses comma millisecond separators, WebVTT
// uses dots and leads with the WEBVTT header.
func ToSubtitle(segments []internal_type.TranscriptSegment, format SubtitleFormat) string {
	var b strings.Builder
	sep := ","
	if format == FormatVTT {
		sep = "."
		b.WriteString("WEBVTT\n\n")
	}
	for i, seg := range segments {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", subtitleTimestamp(seg.StartSec, sep), subtitleTimestamp(seg.EndSec, sep))
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteString("\n")
	}
	return b.String()
}

func subtitleTimestamp(sec float64, msSep string) string {
	if sec < 0 {
		sec = 0
	}
	totalMs := int64(sec*1000 + 0.5)
	h := totalMs / 3600000
	m := (totalMs % 3600000) / 60000
	s := (totalMs % 60000) / 1000
	ms := totalMs % 1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, msSep, ms)
}

// Search returns the segments whose text contains the query,
// case-insensitively, preserving segment order. An empty query matches
// nothing.
func Search(segments []internal_type.TranscriptSegment, query string) []internal_type.TranscriptSegment {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	var out []internal_type.TranscriptSegment
	for _, seg := range segments {
		if strings.Contains(strings.ToLower(seg.Text), query) {
			out = append(out, seg)
		}
	}
	return out
}

// ExcerptAround returns the segments overlapping the window
// [ts-window, ts+window], in segment order. A segment overlaps when its
// span intersects the window at all, boundary touches included.
func ExcerptAround(segments []internal_type.TranscriptSegment, tsSec, windowSec float64) []internal_type.TranscriptSegment {
	lo := tsSec - windowSec
	hi := tsSec + windowSec
	var out []internal_type.TranscriptSegment
	for _, seg := range segments {
		if seg.EndSec >= lo && seg.StartSec <= hi {
			out = append(out, seg)
		}
	}
	return out
}
