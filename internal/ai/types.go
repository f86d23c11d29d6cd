package ai

// chatRequest is the request body for both streaming and buffered calls.
type chatRequest struct {
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

// chatResponse is the buffered (stream=false) response body.
type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *apiErrorBody `json:"error"`
}

// streamChunk is the JSON payload of one streamed SSE frame.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiErrorBody `json:"error"`
}

// apiErrorBody is the server's structured error detail.
type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
