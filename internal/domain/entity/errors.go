package entity

import (
	"errors"
	"fmt"
)

// ChatError separates the user-facing message from the internal
// diagnostic; the delivery layer must never send the latter to a client.
type ChatError struct {
	Code        string
	UserMessage string
	Internal    string
	HTTPStatus  int
	cause       error
}

func (e *ChatError) Error() string { return e.Internal }

func (e *ChatError) Unwrap() error { return e.cause }

// WithCause returns a copy carrying cause in the internal diagnostic.
// The user-facing message is left untouched.
func (e *ChatError) WithCause(cause error) *ChatError {
	return &ChatError{
		Code:        e.Code,
		UserMessage: e.UserMessage,
		Internal:    fmt.Sprintf("%s: %v", e.Internal, cause),
		HTTPStatus:  e.HTTPStatus,
		cause:       cause,
	}
}

// Is lets errors.Is match a derived error against its sentinel.
func (e *ChatError) Is(target error) bool {
	t, ok := target.(*ChatError)
	return ok && t.Code == e.Code
}

func newChatError(code, userMessage, internal string, status int) *ChatError {
	return &ChatError{Code: code, UserMessage: userMessage, Internal: internal, HTTPStatus: status}
}

// Standard domain errors
var (
	ErrRateLimitExceeded = newChatError("RATE_LIMIT_EXCEEDED",
		"Has excedido el límite de mensajes por minuto. Por favor, espera un momento.",
		"rate limit exceeded", 429)
	ErrInvalidMessage = newChatError("INVALID_CONVERSATION",
		"El formato del mensaje no es válido.",
		"invalid message content", 400)
	ErrContentModeration = newChatError("CONTENT_MODERATION",
		"Tu mensaje contiene contenido que no puede ser procesado. Por favor, reformula tu consulta.",
		"content moderation triggered", 400)
	ErrConversationNotFound = newChatError("CONVERSATION_NOT_FOUND",
		"No se pudo encontrar la conversación solicitada.",
		"conversation not found", 404)
	ErrModelUnavailable = newChatError("MODEL_UNAVAILABLE",
		"El asistente no está disponible en este momento. Por favor, inténtalo más tarde.",
		"AI provider is not available", 503)
	ErrGenerationFailed = newChatError("AI_MODEL_ERROR",
		"Lo siento, hubo un problema procesando tu mensaje. Por favor, inténtalo de nuevo.",
		"AI response generation failed", 500)
)

// AsChatError extracts the typed error from a (possibly wrapped) chain.
func AsChatError(err error) (*ChatError, bool) {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
