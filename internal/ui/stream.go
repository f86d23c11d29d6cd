// Package ui provides terminal rendering helpers.
package ui

import (
	"fmt"
	"io"
	"strings"

	"azchat/internal/ai"
)

// flusher is implemented by buffered writers that need an explicit flush
// for fragments to appear immediately.
type flusher interface {
	Flush() error
}

// RenderStream writes reply tokens from ch to w in arrival order, with no
// added separators, so fragments concatenate into fluent text on screen.
// Each fragment is written (and flushed, if w is buffered) as soon as it
// arrives. prefix is printed once, before the first token. Returns the
// accumulated reply text and the stream error, if any.
func RenderStream(w io.Writer, ch <-chan ai.StreamDelta, prefix string) (string, error) {
	var full strings.Builder
	first := true

	for delta := range ch {
		if delta.Err != nil {
			if !first {
				fmt.Fprintln(w)
			}
			return full.String(), delta.Err
		}
		if delta.Done {
			break
		}
		if delta.Token == "" {
			continue
		}

		if first {
			fmt.Fprint(w, prefix)
			first = false
		}
		fmt.Fprint(w, delta.Token)
		if f, ok := w.(flusher); ok {
			f.Flush()
		}
		full.WriteString(delta.Token)
	}

	// End the reply on its own line.
	if full.Len() > 0 && !strings.HasSuffix(full.String(), "\n") {
		fmt.Fprintln(w)
	}

	return strings.TrimSpace(full.String()), nil
}
