// Package documents answers questions about a pasted document. The text is
// split into overlapping chunks, the chunks closest to the question are
// found by embedding similarity, and a chat model answers from those alone.
package documents

import (
	"strings"
	"unicode/utf8"
)

// separators are tried in order; the empty separator splits into runes
var separators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into chunks of at most Size runes. Consecutive chunks
// share up to Overlap runes so a sentence cut at a boundary survives whole
// in one of them.
type Splitter struct {
	Size    int
	Overlap int
}

// Split returns the chunks of text, trimmed and never empty
func (s Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	size, overlap := s.Size, s.Overlap
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return splitter{size: size, overlap: overlap}.split(text, separators)
}

type splitter struct {
	size, overlap int
}

func (s splitter) split(text string, seps []string) []string {
	sep, rest := seps[len(seps)-1], []string(nil)
	for i, candidate := range seps {
		if candidate == "" || strings.Contains(text, candidate) {
			sep, rest = candidate, seps[i+1:]
			break
		}
	}

	var chunks, small []string
	for _, piece := range splitKeep(text, sep) {
		if runeLen(piece) < s.size {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			chunks = append(chunks, s.merge(small)...)
			small = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(small) > 0 {
		chunks = append(chunks, s.merge(small)...)
	}
	return chunks
}

// merge packs pieces into chunks up to size, carrying the tail of each chunk
// into the next one up to overlap
func (s splitter) merge(pieces []string) []string {
	var chunks, window []string
	total := 0

	for _, p := range pieces {
		n := runeLen(p)
		if total+n > s.size && len(window) > 0 {
			if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for len(window) > 0 && (total > s.overlap || total+n > s.size) {
				total -= runeLen(window[0])
				window = window[1:]
			}
		}
		window = append(window, p)
		total += n
	}

	if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitKeep splits on sep and keeps the separator at the start of the
// piece that follows it
func splitKeep(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
