package ai

import (
	"encoding/json"
	"fmt"
)

// frameKind classifies one decoded SSE payload.
type frameKind int

const (
	// frameDelta carries a text fragment of the reply.
	frameDelta frameKind = iota
	// frameSkip marks an ignorable payload: malformed JSON (stray
	// keep-alive noise), an empty data line, or a chunk with no choices.
	// Skipping keeps a single bad frame from aborting the whole turn.
	frameSkip
	// frameError is an in-band API error; the turn is over.
	frameError
)

// frame is the parse result for one raw payload.
type frame struct {
	kind frameKind
	text string
	err  error // diagnostic for frameSkip, the cause for frameError
}

// parseFrame decodes one raw SSE payload into a tagged frame.
func parseFrame(payload string) frame {
	if payload == "" {
		return frame{kind: frameSkip}
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return frame{kind: frameSkip, err: fmt.Errorf("malformed frame: %w", err)}
	}
	if chunk.Error != nil {
		return frame{kind: frameError, err: &APIError{Code: chunk.Error.Code, Message: chunk.Error.Message}}
	}
	// Azure sends housekeeping chunks (content filter results) with an
	// empty choices array; they carry no text.
	if len(chunk.Choices) == 0 {
		return frame{kind: frameSkip}
	}
	return frame{kind: frameDelta, text: chunk.Choices[0].Delta.Content}
}
