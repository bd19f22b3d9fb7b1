package client

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"chatbot-gateway/internal/domain/entity"
)

const mockModelVersion = "mock-1.0"

// MockProvider serves canned Spanish replies selected by keyword
// matching, with simulated latency and a perturbed confidence score.
// It is also the substitute bound when a primary provider fails to
// initialize, so it must never depend on the network.
type MockProvider struct {
	maxTokens      int
	baseConfidence float64
	initialized    atomic.Bool
	logger         *slog.Logger
}

func NewMockProvider(maxTokens int, baseConfidence float64, logger *slog.Logger) *MockProvider {
	return &MockProvider{maxTokens: maxTokens, baseConfidence: baseConfidence, logger: logger}
}

func (m *MockProvider) Initialize(ctx context.Context) error {
	m.logger.Info("initializing mock AI provider")
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	m.initialized.Store(true)
	return nil
}

func (m *MockProvider) Generate(ctx context.Context, req entity.GenerationRequest) (*entity.GenerationResult, error) {
	if !m.initialized.Load() {
		return nil, errors.New("mock AI provider not initialized")
	}

	// Simulated inference latency, 50-250ms.
	delay := time.Duration(50+rand.Intn(200)) * time.Millisecond
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	input := strings.ToLower(req.Input)
	response := m.cannedResponse(input)
	confidence := m.mockConfidence(input, response)

	m.logger.Debug("mock response generated",
		"chars", len(response), "confidence", confidence)

	return &entity.GenerationResult{
		Response:     response,
		Confidence:   confidence,
		ModelVersion: mockModelVersion,
	}, nil
}

func (m *MockProvider) HealthCheck(ctx context.Context) error {
	if !m.initialized.Load() {
		return errors.New("mock AI provider not initialized")
	}
	return nil
}

func (m *MockProvider) ModelVersion() string { return mockModelVersion }

func (m *MockProvider) Shutdown() {
	m.logger.Info("shutting down mock AI provider")
	m.initialized.Store(false)
}

func (m *MockProvider) cannedResponse(input string) string {
	switch {
	case strings.Contains(input, "hola") || strings.Contains(input, "hello"):
		return "¡Hola! Es un placer saludarte. ¿En qué puedo ayudarte hoy?"
	case strings.Contains(input, "nombre") || strings.Contains(input, "name"):
		return "Soy un asistente de inteligencia artificial creado para ayudarte con tus consultas. ¿Qué te gustaría saber?"
	case strings.Contains(input, "tiempo") || strings.Contains(input, "weather"):
		return "No tengo acceso a información meteorológica en tiempo real, pero puedo ayudarte con muchas otras cosas. ¿Hay algo más en lo que pueda asistirte?"
	case strings.Contains(input, "ayuda") || strings.Contains(input, "help"):
		return "Por supuesto, estoy aquí para ayudarte. Puedo responder preguntas, explicar conceptos, ayudar con cálculos básicos y mucho más. ¿Qué necesitas específicamente?"
	case strings.Contains(input, "adiós") || strings.Contains(input, "bye"):
		return "¡Hasta luego! Ha sido un placer ayudarte. No dudes en volver si tienes más preguntas."
	case utf8.RuneCountInString(input) > 100:
		return "Veo que tienes una consulta detallada. Aunque soy un modelo de demostración, puedo decirte que entiendo la importancia de tu pregunta. En un sistema real, esto se procesaría con mayor eficiencia."
	case strings.Contains(input, "?"):
		return "Esa es una buena pregunta. Como soy un modelo de demostración, te puedo decir que en un sistema real se analizaría tu consulta con mayor detalle para darte una respuesta más precisa."
	}

	generic := []string{
		"Entiendo tu consulta. Como asistente de demostración, puedo ayudarte de manera básica con este tipo de preguntas.",
		"Es interesante lo que mencionas. Aunque soy un modelo simplificado, puedo ofrecerte algunas reflexiones sobre el tema.",
		"Tu consulta es válida. En un sistema completo, esto se analizaría con algoritmos más avanzados, pero puedo darte una respuesta general.",
		"Gracias por tu pregunta. Como sistema de demostración, puedo proporcionarte una respuesta básica sobre este tema.",
	}
	return generic[stableHash(input)%uint32(len(generic))]
}

func (m *MockProvider) mockConfidence(input, response string) float64 {
	confidence := m.baseConfidence
	if utf8.RuneCountInString(input) < 5 {
		confidence *= 0.7
	}
	if utf8.RuneCountInString(response) > 50 {
		confidence += 0.1
	}
	confidence += (rand.Float64() - 0.5) * 0.2

	return clamp(confidence, 0.1, 1.0)
}

// stableHash picks a deterministic bucket for a given input so repeated
// questions reuse the same canned reply.
func stableHash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
