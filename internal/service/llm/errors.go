package llm

import "fmt"

// ModelNotFoundError is returned when a catalog model id does not exist
type ModelNotFoundError struct {
	ModelID string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("Model not found: %s", e.ModelID)
}

// UnknownProviderError is returned for an unrecognized custom provider name
type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("Unknown provider: %s", e.Provider)
}

// GenerationError wraps a provider failure, either building the client or while streaming
type GenerationError struct {
	Provider string
	Model    string
	Cause    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s/%s): %v", e.Provider, e.Model, e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// APIError is a non-success HTTP status returned by a provider endpoint
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}
