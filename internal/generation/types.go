package generation

// PromptRequest is the body of POST /generate-question.
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// ContentResponse carries the generated question text.
type ContentResponse struct {
	Content string `json:"content"`
}

// ErrorResponse is returned by the generation service on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
