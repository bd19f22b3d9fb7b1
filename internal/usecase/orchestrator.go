package usecase

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"chatbot-gateway/internal/config"
	"chatbot-gateway/internal/domain/entity"
	"chatbot-gateway/internal/domain/repository"

	"golang.org/x/sync/singleflight"
)

// ProviderState tracks readiness of the bound generation backend.
type ProviderState int32

const (
	StateUninitialized ProviderState = iota
	StateInitializing
	StateReady
	StateFallbackReady
	StateFailed
)

func (s ProviderState) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateReady:
		return "READY"
	case StateFallbackReady:
		return "FALLBACK_READY"
	case StateFailed:
		return "FAILED"
	default:
		return "UNINITIALIZED"
	}
}

const (
	maxInputLength      = 4000
	healthProbeInterval = 5 * time.Minute
	healthProbeTimeout  = 5 * time.Second
)

var (
	rolePrefixPattern = regexp.MustCompile(`^(Asistente:|AI:|Bot:|Assistant:)\s*`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	sentenceEnd       = regexp.MustCompile(`[.!?]$`)
)

var fallbackResponses = []string{
	"Disculpa, no pude procesar completamente tu consulta. ¿Podrías reformularla de manera diferente?",
	"Es una pregunta interesante. ¿Podrías darme un poco más de contexto para ayudarte mejor?",
	"No estoy completamente seguro de cómo responder a eso. ¿Hay algo específico que te gustaría saber?",
	"Me gustaría ayudarte mejor. ¿Podrías ser más específico en tu pregunta?",
	"Parece que necesito más información para darte una respuesta útil. ¿Puedes ampliar tu consulta?",
}

// GenerationOutcome is what an async generation settles to.
type GenerationOutcome struct {
	Response *entity.AIResponse
	Err      error
}

type generationTask struct {
	ctx     context.Context
	input   string
	convCtx string
	result  chan GenerationOutcome
}

// Orchestrator owns the active provider's lifecycle, validates and
// preprocesses input, dispatches generation to a bounded worker pool,
// post-processes output and applies the confidence gate. The provider
// reference is written during Initialize only (primary, or the fallback
// substitution) and read-only afterwards.
type Orchestrator struct {
	cfg    config.Config
	screen *regexp.Regexp
	logger *slog.Logger

	newPrimary func(ctx context.Context) (repository.AIProvider, error)
	fallback   repository.AIProvider

	provider repository.AIProvider
	state    atomic.Int32

	tasks    chan generationTask
	sendMu   sync.RWMutex
	draining bool
	wg       sync.WaitGroup
	shutOnce sync.Once

	healthMu   sync.Mutex
	healthAt   time.Time
	healthLast entity.HealthState
	probes     singleflight.Group
}

// NewOrchestrator wires the orchestrator but does not touch the
// provider; call Initialize before serving. newPrimary builds the
// configured provider and may fail (unknown type, missing credential);
// fallback is the mock substitute bound when it does.
func NewOrchestrator(
	cfg config.Config,
	newPrimary func(ctx context.Context) (repository.AIProvider, error),
	fallback repository.AIProvider,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		screen:     regexp.MustCompile(cfg.ScreenPattern),
		logger:     logger,
		newPrimary: newPrimary,
		fallback:   fallback,
		tasks:      make(chan generationTask, cfg.QueueSize),
	}
}

// Initialize binds the configured provider, or substitutes the fallback
// when the primary cannot come up. Only a double failure is fatal.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.state.Store(int32(StateInitializing))
	o.logger.Info("initializing AI provider", "provider", o.cfg.ProviderType)

	primary, err := o.newPrimary(ctx)
	if err == nil {
		err = primary.Initialize(ctx)
	}
	if err == nil {
		o.provider = primary
		o.state.Store(int32(StateReady))
	} else {
		o.logger.Warn("primary AI provider failed to initialize, falling back to mock",
			"provider", o.cfg.ProviderType, "error", err)
		if fbErr := o.fallback.Initialize(ctx); fbErr != nil {
			o.state.Store(int32(StateFailed))
			return fmt.Errorf("failed to initialize both primary and fallback AI providers: %v: %w", err, fbErr)
		}
		o.provider = o.fallback
		o.state.Store(int32(StateFallbackReady))
	}

	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker()
	}

	o.logger.Info("AI provider initialized", "state", o.State().String(),
		"version", o.provider.ModelVersion())
	return nil
}

func (o *Orchestrator) State() ProviderState {
	return ProviderState(o.state.Load())
}

func (o *Orchestrator) ready() bool {
	s := o.State()
	return s == StateReady || s == StateFallbackReady
}

// IsValidInput screens locally; it never calls the provider.
func (o *Orchestrator) IsValidInput(input string) bool {
	if strings.TrimSpace(input) == "" {
		o.logger.Debug("input validation failed: blank")
		return false
	}
	if utf8.RuneCountInString(input) > maxInputLength {
		o.logger.Warn("input validation failed: too long", "chars", utf8.RuneCountInString(input))
		return false
	}
	if o.screen.MatchString(input) {
		o.logger.Warn("input validation failed: flagged content")
		return false
	}
	return true
}

// Generate runs the full pipeline synchronously.
func (o *Orchestrator) Generate(ctx context.Context, input, conversationContext string) (*entity.AIResponse, error) {
	if !o.ready() {
		return nil, entity.ErrModelUnavailable
	}
	return o.generate(ctx, input, conversationContext)
}

// GenerateAsync dispatches to the worker pool and returns a settled-once
// channel. When the queue is saturated the work runs on the calling
// goroutine instead of being dropped.
func (o *Orchestrator) GenerateAsync(ctx context.Context, input, conversationContext string) <-chan GenerationOutcome {
	result := make(chan GenerationOutcome, 1)
	if !o.ready() {
		result <- GenerationOutcome{Err: entity.ErrModelUnavailable}
		return result
	}

	t := generationTask{ctx: ctx, input: input, convCtx: conversationContext, result: result}
	switch o.submit(t) {
	case submitQueued:
	case submitRejected:
		result <- GenerationOutcome{Err: entity.ErrModelUnavailable}
	case submitSaturated:
		o.logger.Debug("generation queue saturated, running on caller")
		o.run(t)
	}
	return result
}

type submitState int

const (
	submitQueued submitState = iota
	submitSaturated
	submitRejected
)

// submit enqueues under a shared lock so a send can never race the
// queue being closed by Shutdown.
func (o *Orchestrator) submit(t generationTask) submitState {
	o.sendMu.RLock()
	defer o.sendMu.RUnlock()
	if o.draining {
		return submitRejected
	}
	select {
	case o.tasks <- t:
		return submitQueued
	default:
		return submitSaturated
	}
}

func (o *Orchestrator) worker() {
	defer o.wg.Done()
	for t := range o.tasks {
		o.run(t)
	}
}

func (o *Orchestrator) run(t generationTask) {
	if err := t.ctx.Err(); err != nil {
		t.result <- GenerationOutcome{Err: entity.ErrGenerationFailed.WithCause(err)}
		return
	}
	resp, err := o.generate(t.ctx, t.input, t.convCtx)
	t.result <- GenerationOutcome{Response: resp, Err: err}
}

func (o *Orchestrator) generate(ctx context.Context, input, conversationContext string) (*entity.AIResponse, error) {
	start := time.Now()

	if !o.IsValidInput(input) {
		return nil, entity.ErrInvalidMessage
	}

	processed := preprocessInput(input)
	fullContext := buildFullContext(processed, conversationContext)

	genCtx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	result, err := o.provider.Generate(genCtx, entity.GenerationRequest{
		Input:     processed,
		Context:   fullContext,
		MaxTokens: o.cfg.MaxTokens,
		Timeout:   o.cfg.GenerationTimeout,
	})
	if err != nil {
		o.logger.Error("AI generation failed", "elapsed_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, entity.ErrGenerationFailed.WithCause(err)
	}

	finalResponse := o.postProcessResponse(result.Response)
	confidence := o.finalConfidence(result.Confidence, finalResponse, processed)
	fallbackUsed := false

	if confidence < o.cfg.ConfidenceThreshold {
		o.logger.Warn("low confidence response, substituting fallback",
			"confidence", confidence, "threshold", o.cfg.ConfidenceThreshold)
		finalResponse = fallbackResponse(processed)
		confidence = 1.0
		fallbackUsed = true
	}

	return &entity.AIResponse{
		Content:          finalResponse,
		Confidence:       confidence,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		ModelVersion:     o.effectiveModelVersion(),
		FallbackUsed:     fallbackUsed,
	}, nil
}

// Health returns a cached status, refreshing it by probing the provider
// at most once per five minutes. Concurrent refreshes collapse into one.
func (o *Orchestrator) Health() entity.ModelHealth {
	now := time.Now()
	if !o.ready() {
		return entity.ModelHealth{
			Loaded:    false,
			Version:   o.cfg.ModelVersion,
			Status:    entity.HealthUnhealthy,
			Timestamp: now.UnixMilli(),
		}
	}

	o.healthMu.Lock()
	cached, fresh := o.healthLast, now.Sub(o.healthAt) < healthProbeInterval
	o.healthMu.Unlock()

	status := cached
	if !fresh || cached == "" {
		v, _, _ := o.probes.Do("health", func() (any, error) {
			probeCtx, cancel := context.WithTimeout(context.Background(), healthProbeTimeout)
			defer cancel()

			st := entity.HealthHealthy
			if err := o.provider.HealthCheck(probeCtx); err != nil {
				o.logger.Warn("AI provider health check failed", "error", err)
				st = entity.HealthDegraded
			}
			o.healthMu.Lock()
			o.healthLast, o.healthAt = st, time.Now()
			o.healthMu.Unlock()
			return st, nil
		})
		status = v.(entity.HealthState)
	}

	return entity.ModelHealth{
		Loaded:    true,
		Version:   o.effectiveModelVersion(),
		Status:    status,
		Timestamp: now.UnixMilli(),
	}
}

// Shutdown stops the provider, then drains the worker pool within the
// configured grace period.
func (o *Orchestrator) Shutdown() {
	o.shutOnce.Do(func() {
		o.logger.Info("shutting down AI orchestrator")
		if o.provider != nil {
			o.provider.Shutdown()
		}
		o.sendMu.Lock()
		o.draining = true
		close(o.tasks)
		o.sendMu.Unlock()

		done := make(chan struct{})
		go func() {
			o.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(o.cfg.ShutdownGrace):
			o.logger.Warn("worker pool did not drain within grace period",
				"grace", o.cfg.ShutdownGrace)
		}
		o.state.Store(int32(StateUninitialized))
	})
}

func (o *Orchestrator) effectiveModelVersion() string {
	if o.provider != nil {
		if v := strings.TrimSpace(o.provider.ModelVersion()); v != "" {
			return v
		}
	}
	return o.cfg.ModelVersion
}

func preprocessInput(input string) string {
	processed := whitespacePattern.ReplaceAllString(strings.TrimSpace(input), " ")
	if runes := []rune(processed); len(runes) > maxInputLength {
		processed = string(runes[:maxInputLength]) + "..."
	}
	return processed
}

func buildFullContext(input, conversationContext string) string {
	var b strings.Builder
	if trimmed := strings.TrimSpace(conversationContext); trimmed != "" {
		b.WriteString("Contexto de la conversación:\n")
		b.WriteString(trimmed)
		b.WriteString("\n\n")
	}
	b.WriteString("Usuario: ")
	b.WriteString(input)
	b.WriteString("\nAsistente:")
	return b.String()
}

func (o *Orchestrator) postProcessResponse(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return fallbackResponse("error")
	}
	processed := rolePrefixPattern.ReplaceAllString(strings.TrimSpace(raw), "")
	processed = whitespacePattern.ReplaceAllString(processed, " ")

	// Truncate preferring a sentence boundary near the cutoff. Counted in
	// runes so the cut never lands inside a multi-byte character.
	limit := o.cfg.MaxTokens * 4
	if runes := []rune(processed); len(runes) > limit {
		lastSentenceEnd := -1
		for i := limit - 1; i >= 0 && i > limit-100; i-- {
			if runes[i] == '.' {
				lastSentenceEnd = i
				break
			}
		}
		if lastSentenceEnd >= 0 {
			processed = string(runes[:lastSentenceEnd+1])
		} else {
			processed = string(runes[:limit]) + "..."
		}
	}
	return processed
}

func (o *Orchestrator) finalConfidence(providerConfidence float64, response, input string) float64 {
	confidence := providerConfidence
	w := o.cfg.Confidence
	responseLen := utf8.RuneCountInString(response)

	if responseLen < 10 {
		confidence *= w.ShortOutput
	}
	lower := strings.ToLower(response)
	if strings.Contains(lower, "no sé") || strings.Contains(lower, "no estoy seguro") {
		confidence *= w.Hedging
	}
	if sentenceEnd.MatchString(response) {
		confidence = minFloat(1.0, confidence+w.TerminalBonus)
	}
	if utf8.RuneCountInString(input) > 20 && responseLen < 20 {
		confidence *= w.TerseAnswer
	}

	if confidence < 0 {
		return 0
	}
	return minFloat(1.0, confidence)
}

// fallbackResponse picks a safe clarification phrase, stable per input.
func fallbackResponse(input string) string {
	h := fnv.New32a()
	h.Write([]byte(input))
	return fallbackResponses[h.Sum32()%uint32(len(fallbackResponses))]
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
