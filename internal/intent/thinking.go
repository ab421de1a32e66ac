package intent

import (
	"strings"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// segmentScanner splits a streamed response into thinking segments and
// visible text. Reasoning models interleave <think>...</think> blocks
// with their answer, and a tag can arrive split across chunk boundaries,
// so the scanner buffers until a tag is confirmed or ruled out.
//
// A segment is emitted only once its closing tag has been seen. A stream
// that ends inside an open block drops the unterminated thought rather
// than reporting half a sentence.
type segmentScanner struct {
	emit    func(string)
	buf     []byte
	inThink bool
	visible strings.Builder
}

func newSegmentScanner(emit func(string)) *segmentScanner {
	return &segmentScanner{emit: emit}
}

// Feed consumes the next stream chunk.
func (s *segmentScanner) Feed(chunk string) {
	s.buf = append(s.buf, chunk...)
	for {
		if s.inThink {
			i := strings.Index(string(s.buf), thinkClose)
			if i < 0 {
				return
			}
			seg := strings.TrimSpace(string(s.buf[:i]))
			if seg != "" && s.emit != nil {
				s.emit(seg)
			}
			s.buf = s.buf[i+len(thinkClose):]
			s.inThink = false
			continue
		}

		i := strings.Index(string(s.buf), thinkOpen)
		if i >= 0 {
			s.visible.Write(s.buf[:i])
			s.buf = s.buf[i+len(thinkOpen):]
			s.inThink = true
			continue
		}

		// Everything except a possible split-tag suffix is visible.
		keep := partialTagLen(s.buf, thinkOpen)
		s.visible.Write(s.buf[:len(s.buf)-keep])
		s.buf = s.buf[len(s.buf)-keep:]
		return
	}
}

// Visible finalizes the scan and returns the non-thinking text. Any
// buffered bytes outside a think block are flushed; bytes inside an
// unterminated block are discarded.
func (s *segmentScanner) Visible() string {
	if !s.inThink {
		s.visible.Write(s.buf)
	}
	s.buf = nil
	return s.visible.String()
}

// partialTagLen returns the length of the longest suffix of buf that is a
// proper prefix of tag. Those bytes might be the start of a tag split
// across chunks, so they must stay buffered.
func partialTagLen(buf []byte, tag string) int {
	max := len(tag) - 1
	if max > len(buf) {
		max = len(buf)
	}
	for n := max; n > 0; n-- {
		if string(buf[len(buf)-n:]) == tag[:n] {
			return n
		}
	}
	return 0
}
