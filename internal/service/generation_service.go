package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/generator"
	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Credit costs per generation kind. Policy constants, not derived.
const (
	CreditCostImage = 1
	CreditCostVideo = 3
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAccountNotFound     = errors.New("account not found")
	ErrGenerationFailed    = errors.New("generation failed")
	ErrGenerationNotFound  = errors.New("generation not found")
	ErrAvatarNotFound      = errors.New("avatar not found")
	ErrNotOwner            = errors.New("not the owner")
	ErrInvalidPromptSpec   = errors.New("exactly one of prompt or attributes must be set")
	ErrUnsupportedKind     = errors.New("unsupported generation kind")
)

// CostFor returns the credit cost of a generation kind.
func CostFor(kind model.GenerationKind) int {
	if kind == model.KindVideo {
		return CreditCostVideo
	}
	return CreditCostImage
}

// GenerateRequest is the transient value object describing one generation
// request. Exactly one of Prompt and Attributes is set.
type GenerateRequest struct {
	UserID           string
	AvatarID         *string
	Kind             model.GenerationKind
	Prompt           string
	Attributes       *generator.Attributes
	SceneDescription string
	Style            string
	ExtraParams      map[string]any
}

// GenerateResult is returned on successful completion.
type GenerateResult struct {
	Generation       *model.Generation
	CreditsRemaining int
}

// GenerationService turns a generation request into a billed, recorded and
// retrievable artifact reference.
type GenerationService interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	List(ctx context.Context, userID string, avatarID *string, kind *model.GenerationKind) ([]model.Generation, error)
	Delete(ctx context.Context, userID, generationID string) error
}

// ArtifactMirror copies a generated artifact into durable storage.
// Implemented by storage.S3Store; nil disables mirroring.
type ArtifactMirror interface {
	Mirror(ctx context.Context, key, sourceURL string) (string, error)
}

// UsageEnqueuer hands failed usage-log writes to the retry queue.
// Implemented by pgmq.Client.
type UsageEnqueuer interface {
	Send(ctx context.Context, queue string, payload []byte) error
}

// UsageRetryPolicy bounds the inline usage-log write retries before an
// entry is handed to the retry queue.
type UsageRetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

type generationService struct {
	ledger      repository.LedgerRepository
	generations repository.GenerationRepository
	avatars     repository.AvatarRepository
	usage       repository.UsageRepository
	backend     generator.Generator
	artifacts   ArtifactMirror   // may be nil
	enqueuer    UsageEnqueuer    // may be nil
	publisher   pubsub.Publisher // may be nil
	eventsTopic string
	retryQueue  string
	retry       UsageRetryPolicy
	logger      zerolog.Logger
}

// NewGenerationService creates the generation orchestrator. artifacts and
// publisher are optional collaborators; pass nil to disable them.
func NewGenerationService(
	ledger repository.LedgerRepository,
	generations repository.GenerationRepository,
	avatars repository.AvatarRepository,
	usage repository.UsageRepository,
	backend generator.Generator,
	artifacts ArtifactMirror,
	enqueuer UsageEnqueuer,
	publisher pubsub.Publisher,
	eventsTopic, retryQueue string,
	retry UsageRetryPolicy,
	logger zerolog.Logger,
) GenerationService {
	if retry.MaxRetries <= 0 {
		retry.MaxRetries = 3
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = 100 * time.Millisecond
	}
	return &generationService{
		ledger:      ledger,
		generations: generations,
		avatars:     avatars,
		usage:       usage,
		backend:     backend,
		artifacts:   artifacts,
		enqueuer:    enqueuer,
		publisher:   publisher,
		eventsTopic: eventsTopic,
		retryQueue:  retryQueue,
		retry:       retry,
		logger:      logger.With().Str("service", "GenerationService").Logger(),
	}
}

// Generate walks the request through debit, generation and persistence.
// The debit commits before the backend call so no lock or transaction
// spans it; any failure after the debit refunds through an idempotency
// token derived from the request id.
func (s *generationService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if (req.Prompt == "") == (req.Attributes == nil) {
		return nil, ErrInvalidPromptSpec
	}
	if !req.Kind.Valid() {
		return nil, ErrUnsupportedKind
	}

	cost := CostFor(req.Kind)
	requestID := uuid.New()
	lg := s.logger.With().Str("request_id", requestID.String()).Str("user_id", req.UserID).Logger()

	remaining, err := s.ledger.Debit(ctx, req.UserID, cost)
	switch {
	case errors.Is(err, repository.ErrInsufficientCredits):
		return nil, ErrInsufficientCredits
	case errors.Is(err, repository.ErrAccountNotFound):
		return nil, ErrAccountNotFound
	case err != nil:
		return nil, fmt.Errorf("debiting account: %w", err)
	}

	// From here on a client disconnect must not abort the flow: the debit
	// has committed, so the request runs to a terminal state server-side.
	ctx = context.WithoutCancel(ctx)

	var avatar *model.Avatar
	if req.AvatarID != nil {
		avatar, err = s.avatars.GetByID(ctx, *req.AvatarID)
		if err != nil {
			s.refund(ctx, lg, requestID, req.UserID, cost)
			return nil, fmt.Errorf("fetching avatar: %w", err)
		}
		if avatar == nil || avatar.UserID != req.UserID {
			s.refund(ctx, lg, requestID, req.UserID, cost)
			return nil, ErrAvatarNotFound
		}
	}

	var spec generator.PromptSpec
	if req.Attributes != nil {
		spec = generator.AttributeSpec(*req.Attributes, req.Style)
	} else {
		spec = generator.TextSpec(req.Prompt, req.SceneDescription, req.Style)
		if avatar != nil {
			spec = spec.WithAvatarContext(generator.Attributes{
				Gender:       avatar.Gender,
				Ethnicity:    avatar.Ethnicity,
				Age:          avatar.Age,
				BodyType:     avatar.BodyType,
				HairStyle:    avatar.HairStyle,
				HairColor:    avatar.HairColor,
				EyeColor:     avatar.EyeColor,
				FashionStyle: avatar.FashionStyle,
			})
		}
	}
	prompt := spec.Resolve()

	url, err := s.backend.Generate(ctx, req.Kind, prompt)
	if err != nil {
		lg.Error().Err(err).Str("kind", string(req.Kind)).Msg("Generation backend failed, refunding")
		s.refund(ctx, lg, requestID, req.UserID, cost)
		s.publish(ctx, lg, pubsub.Event{
			Type:       "generation.failed",
			UserID:     req.UserID,
			RequestID:  requestID.String(),
			Kind:       string(req.Kind),
			Detail:     err.Error(),
			OccurredAt: time.Now().UTC(),
		})
		return nil, fmt.Errorf("%w: %s", ErrGenerationFailed, err)
	}

	if s.artifacts != nil {
		key := fmt.Sprintf("generations/%s/%s", req.UserID, requestID)
		if mirrored, mirrorErr := s.artifacts.Mirror(ctx, key, url); mirrorErr != nil {
			// Keep the backend URL rather than failing a paid generation.
			lg.Warn().Err(mirrorErr).Msg("Artifact mirror failed, storing backend URL")
		} else {
			url = mirrored
		}
	}

	gen := &model.Generation{
		UserID:           req.UserID,
		AvatarID:         req.AvatarID,
		Kind:             req.Kind,
		URL:              url,
		Prompt:           prompt,
		SceneDescription: req.SceneDescription,
		Style:            req.Style,
		ExtraParams:      req.ExtraParams,
	}
	if err := s.generations.Create(ctx, gen); err != nil {
		lg.Error().Err(err).Msg("Failed to persist generation, refunding")
		s.refund(ctx, lg, requestID, req.UserID, cost)
		return nil, fmt.Errorf("persisting generation: %w", err)
	}

	if avatar != nil && req.Kind == model.KindImage {
		if err := s.avatars.UpdatePrimaryImage(ctx, avatar.ID, url); err != nil {
			lg.Error().Err(err).Str("avatar_id", avatar.ID).Msg("Failed to update avatar primary image")
		}
	}

	s.recordUsage(ctx, lg, requestID, gen, cost)
	s.publish(ctx, lg, pubsub.Event{
		Type:       "generation.completed",
		UserID:     req.UserID,
		RequestID:  requestID.String(),
		Kind:       string(req.Kind),
		Credits:    cost,
		OccurredAt: time.Now().UTC(),
	})

	return &GenerateResult{Generation: gen, CreditsRemaining: remaining}, nil
}

// refund credits the cost back, keyed on the request id so a replay can
// never double-credit. A refund failure after a committed debit is the one
// state the service cannot repair itself; it is logged at error level for
// operator reconciliation.
func (s *generationService) refund(ctx context.Context, lg zerolog.Logger, requestID uuid.UUID, userID string, cost int) {
	replayed, err := s.ledger.Refund(ctx, requestID, userID, cost)
	if err != nil {
		lg.Error().Err(err).Int("credits", cost).Msg("Refund failed after debit; manual reconciliation required")
		return
	}
	if replayed {
		lg.Warn().Msg("Refund replay detected, no credits applied")
	}
}

// recordUsage appends the audit entry. The operation already succeeded
// from the caller's perspective, so write failures retry inline with
// exponential backoff and then fall back to the durable retry queue.
func (s *generationService) recordUsage(ctx context.Context, lg zerolog.Logger, requestID uuid.UUID, gen *model.Generation, cost int) {
	action := model.ActionGenerateImage
	if gen.Kind == model.KindVideo {
		action = model.ActionGenerateVideo
	}
	entry := &model.UsageLogEntry{
		UserID:      gen.UserID,
		Action:      action,
		CreditsUsed: cost,
		Details: map[string]any{
			"request_id": requestID.String(),
			"prompt":     gen.Prompt,
			"style":      gen.Style,
			"avatar_id":  gen.AvatarID,
		},
	}

	backoff := s.retry.InitialBackoff
	var writeErr error
	for attempt := 1; attempt <= s.retry.MaxRetries; attempt++ {
		if writeErr = s.usage.Record(ctx, entry); writeErr == nil {
			return
		}
		lg.Error().Err(writeErr).Int("attempt", attempt).Msg("Usage log write failed, retrying")
		time.Sleep(backoff)
		backoff *= 2
	}

	if s.enqueuer == nil {
		lg.Error().Err(writeErr).Msg("Usage log write exhausted retries and no retry queue is configured; audit trail incomplete")
		return
	}
	payload, err := entry.MarshalQueuePayload()
	if err != nil {
		lg.Error().Err(err).Msg("Failed to marshal usage entry for retry queue; audit trail incomplete")
		return
	}
	if err := s.enqueuer.Send(ctx, s.retryQueue, payload); err != nil {
		lg.Error().Err(err).Msg("Failed to enqueue usage entry for retry; audit trail incomplete")
		return
	}
	lg.Warn().Str("queue", s.retryQueue).Msg("Usage log entry handed to retry queue")
}

func (s *generationService) publish(ctx context.Context, lg zerolog.Logger, e pubsub.Event) {
	if s.publisher == nil {
		return
	}
	payload, err := e.Marshal()
	if err != nil {
		lg.Error().Err(err).Str("event_type", e.Type).Msg("Failed to marshal event")
		return
	}
	if _, err := s.publisher.Publish(ctx, s.eventsTopic, payload); err != nil {
		lg.Error().Err(err).Str("event_type", e.Type).Msg("Failed to publish event")
	}
}

func (s *generationService) List(ctx context.Context, userID string, avatarID *string, kind *model.GenerationKind) ([]model.Generation, error) {
	return s.generations.List(ctx, repository.GenerationFilter{
		AccountID: userID,
		AvatarID:  avatarID,
		Kind:      kind,
	})
}

func (s *generationService) Delete(ctx context.Context, userID, generationID string) error {
	gen, err := s.generations.GetByID(ctx, generationID)
	if err != nil {
		return err
	}
	if gen == nil {
		return ErrGenerationNotFound
	}
	if gen.UserID != userID {
		return ErrNotOwner
	}
	return s.generations.Delete(ctx, generationID)
}
