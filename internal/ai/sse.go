package ai

import (
	"bufio"
	"io"
	"strings"
)

// doneSentinel is the reserved payload marking normal end of stream.
const doneSentinel = "[DONE]"

// sseScanner incrementally splits a server-sent-event byte stream into
// data payloads. It buffers partial lines across reads, so the frames it
// produces do not depend on how the network chunks the bytes.
//
// The scanner is forward-only and tied to one response body.
type sseScanner struct {
	r       *bufio.Reader
	sawDone bool
	eof     bool
}

func newSSEScanner(r io.Reader) *sseScanner {
	return &sseScanner{r: bufio.NewReader(r)}
}

// Next returns the next data payload. Blank lines, comments and non-data
// SSE fields are skipped. io.EOF signals the end of the stream — either
// the [DONE] sentinel (which is never returned as a payload) or the body
// closing; SawDone distinguishes the two. Any other error is a read
// failure mid-stream.
func (s *sseScanner) Next() (string, error) {
	if s.sawDone || s.eof {
		return "", io.EOF
	}
	for {
		line, err := s.r.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		atEOF := err == io.EOF

		if payload, ok := dataPayload(line); ok {
			if payload == doneSentinel {
				s.sawDone = true
				return "", io.EOF
			}
			// An unterminated final line still counts as a frame.
			s.eof = atEOF
			return payload, nil
		}
		if atEOF {
			s.eof = true
			return "", io.EOF
		}
	}
}

// SawDone reports whether the stream ended with the [DONE] sentinel.
// Providers vary: a body that closes without it is still treated as
// normal completion, but the distinction matters for diagnostics.
func (s *sseScanner) SawDone() bool { return s.sawDone }

// dataPayload extracts the payload of a "data:" line. Blank lines,
// ": comment" lines and other SSE fields (event:, id:, retry:) yield
// ok=false. Both "data: x" and "data:x" forms are accepted.
func dataPayload(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	rest, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
