package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"app/internal/generator"
	"app/internal/model"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// fakeLedger keeps balances in memory with the same semantics as the
// Postgres-backed repository: conditional debit, idempotent refund.
type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]int
	refunds  map[uuid.UUID]bool
	debits   int
	debitErr error
}

func newFakeLedger(balance int) *fakeLedger {
	return &fakeLedger{
		balances: map[string]int{"user-1": balance},
		refunds:  map[uuid.UUID]bool{},
	}
}

func (f *fakeLedger) Debit(ctx context.Context, accountID string, amount int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.debitErr != nil {
		return 0, f.debitErr
	}
	balance, ok := f.balances[accountID]
	if !ok {
		return 0, repository.ErrAccountNotFound
	}
	if balance < amount {
		return 0, repository.ErrInsufficientCredits
	}
	f.balances[accountID] = balance - amount
	f.debits++
	return balance - amount, nil
}

func (f *fakeLedger) Refund(ctx context.Context, requestID uuid.UUID, accountID string, amount int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refunds[requestID] {
		return true, nil
	}
	f.refunds[requestID] = true
	f.balances[accountID] += amount
	return false, nil
}

func (f *fakeLedger) Credit(ctx context.Context, accountID string, amount int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[accountID] += amount
	return f.balances[accountID], nil
}

func (f *fakeLedger) Balance(ctx context.Context, accountID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[accountID], nil
}

type fakeGenerationRepo struct {
	mu        sync.Mutex
	created   []*model.Generation
	createErr error
	byID      map[string]*model.Generation
}

func (f *fakeGenerationRepo) Create(ctx context.Context, g *model.Generation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	g.ID = fmt.Sprintf("gen-%d", len(f.created)+1)
	g.CreatedAt = time.Now()
	f.created = append(f.created, g)
	return nil
}

func (f *fakeGenerationRepo) GetByID(ctx context.Context, id string) (*model.Generation, error) {
	if f.byID == nil {
		return nil, nil
	}
	return f.byID[id], nil
}

func (f *fakeGenerationRepo) List(ctx context.Context, filter repository.GenerationFilter) ([]model.Generation, error) {
	return nil, nil
}

func (f *fakeGenerationRepo) Delete(ctx context.Context, id string) error { return nil }

type fakeAvatarRepo struct {
	avatars      map[string]*model.Avatar
	primaryImage string
}

func (f *fakeAvatarRepo) Create(ctx context.Context, a *model.Avatar) error { return nil }

func (f *fakeAvatarRepo) GetByID(ctx context.Context, id string) (*model.Avatar, error) {
	return f.avatars[id], nil
}

func (f *fakeAvatarRepo) ListByUser(ctx context.Context, userID string) ([]model.Avatar, error) {
	return nil, nil
}

func (f *fakeAvatarRepo) Update(ctx context.Context, a *model.Avatar) error { return nil }
func (f *fakeAvatarRepo) Delete(ctx context.Context, id string) error       { return nil }

func (f *fakeAvatarRepo) UpdatePrimaryImage(ctx context.Context, id, url string) error {
	f.primaryImage = url
	return nil
}

type fakeUsageRepo struct {
	mu       sync.Mutex
	entries  []*model.UsageLogEntry
	failures int // fail this many Record calls before succeeding
}

func (f *fakeUsageRepo) Record(ctx context.Context, e *model.UsageLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("usage table unavailable")
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeUsageRepo) ListByAccount(ctx context.Context, accountID string, limit int) ([]model.UsageLogEntry, error) {
	return nil, nil
}

type fakeBackend struct {
	mu    sync.Mutex
	calls int
	url   string
	err   error
	// lastPrompt records the most recent resolved prompt.
	lastPrompt string
}

func (f *fakeBackend) Generate(ctx context.Context, kind model.GenerationKind, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (f *fakeEnqueuer) Send(ctx context.Context, queue string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

type fixture struct {
	ledger   *fakeLedger
	gens     *fakeGenerationRepo
	avatars  *fakeAvatarRepo
	usage    *fakeUsageRepo
	backend  *fakeBackend
	enqueuer *fakeEnqueuer
	svc      GenerationService
}

func newFixture(balance int) *fixture {
	f := &fixture{
		ledger:   newFakeLedger(balance),
		gens:     &fakeGenerationRepo{},
		avatars:  &fakeAvatarRepo{avatars: map[string]*model.Avatar{}},
		usage:    &fakeUsageRepo{},
		backend:  &fakeBackend{url: "https://backend.example.com/artifact.png"},
		enqueuer: &fakeEnqueuer{},
	}
	f.svc = NewGenerationService(
		f.ledger, f.gens, f.avatars, f.usage, f.backend,
		nil, f.enqueuer, nil, "", "usage_log_retry",
		UsageRetryPolicy{MaxRetries: 2, InitialBackoff: time.Millisecond},
		zerolog.Nop(),
	)
	return f
}

func imageRequest() GenerateRequest {
	return GenerateRequest{
		UserID: "user-1",
		Kind:   model.KindImage,
		Prompt: "a lighthouse at dusk",
	}
}

func TestGenerateSuccessDebitsAndRecords(t *testing.T) {
	f := newFixture(5)

	res, err := f.svc.Generate(context.Background(), imageRequest())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if res.CreditsRemaining != 4 {
		t.Fatalf("expected 4 credits remaining, got %d", res.CreditsRemaining)
	}
	if res.Generation.URL != "https://backend.example.com/artifact.png" {
		t.Fatalf("unexpected artifact URL: %q", res.Generation.URL)
	}
	if len(f.gens.created) != 1 {
		t.Fatalf("expected 1 persisted generation, got %d", len(f.gens.created))
	}
	if len(f.usage.entries) != 1 {
		t.Fatalf("expected 1 usage entry, got %d", len(f.usage.entries))
	}
	entry := f.usage.entries[0]
	if entry.Action != model.ActionGenerateImage || entry.CreditsUsed != CreditCostImage {
		t.Fatalf("unexpected usage entry: %+v", entry)
	}
}

func TestGenerateVideoCostsThree(t *testing.T) {
	f := newFixture(3)

	req := imageRequest()
	req.Kind = model.KindVideo
	res, err := f.svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if res.CreditsRemaining != 0 {
		t.Fatalf("expected 0 credits remaining, got %d", res.CreditsRemaining)
	}
	if f.usage.entries[0].Action != model.ActionGenerateVideo {
		t.Fatalf("unexpected action: %s", f.usage.entries[0].Action)
	}
}

func TestGenerateInsufficientCredits(t *testing.T) {
	f := newFixture(2)

	req := imageRequest()
	req.Kind = model.KindVideo // costs 3
	_, err := f.svc.Generate(context.Background(), req)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if f.backend.calls != 0 {
		t.Fatal("backend must not be called when the debit is rejected")
	}
	if balance, _ := f.ledger.Balance(context.Background(), "user-1"); balance != 2 {
		t.Fatalf("balance changed on rejected debit: %d", balance)
	}
}

func TestGenerateUnknownAccount(t *testing.T) {
	f := newFixture(5)

	req := imageRequest()
	req.UserID = "nobody"
	_, err := f.svc.Generate(context.Background(), req)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestGeneratePromptSpecXOR(t *testing.T) {
	f := newFixture(5)

	both := imageRequest()
	both.Attributes = &generator.Attributes{Gender: "feminine"}
	if _, err := f.svc.Generate(context.Background(), both); !errors.Is(err, ErrInvalidPromptSpec) {
		t.Fatalf("expected ErrInvalidPromptSpec for both, got %v", err)
	}

	neither := imageRequest()
	neither.Prompt = ""
	if _, err := f.svc.Generate(context.Background(), neither); !errors.Is(err, ErrInvalidPromptSpec) {
		t.Fatalf("expected ErrInvalidPromptSpec for neither, got %v", err)
	}
	if f.ledger.debits != 0 {
		t.Fatal("invalid requests must not touch the ledger")
	}
}

func TestGenerateUnsupportedKind(t *testing.T) {
	f := newFixture(5)

	req := imageRequest()
	req.Kind = "hologram"
	if _, err := f.svc.Generate(context.Background(), req); !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}
}

func TestGenerateBackendFailureRefunds(t *testing.T) {
	f := newFixture(5)
	f.backend.err = generator.ErrGenerationFailed

	_, err := f.svc.Generate(context.Background(), imageRequest())
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if balance, _ := f.ledger.Balance(context.Background(), "user-1"); balance != 5 {
		t.Fatalf("expected full refund, balance = %d", balance)
	}
	if len(f.gens.created) != 0 {
		t.Fatal("no generation must be persisted on backend failure")
	}
	if len(f.usage.entries) != 0 {
		t.Fatal("no usage entry must be written on backend failure")
	}
}

func TestGeneratePersistFailureRefunds(t *testing.T) {
	f := newFixture(5)
	f.gens.createErr = errors.New("disk full")

	_, err := f.svc.Generate(context.Background(), imageRequest())
	if err == nil {
		t.Fatal("expected error when persistence fails")
	}
	if balance, _ := f.ledger.Balance(context.Background(), "user-1"); balance != 5 {
		t.Fatalf("expected full refund, balance = %d", balance)
	}
}

func TestGenerateAvatarOwnership(t *testing.T) {
	f := newFixture(5)
	otherAvatar := "avatar-2"
	f.avatars.avatars[otherAvatar] = &model.Avatar{ID: otherAvatar, UserID: "user-2"}

	req := imageRequest()
	req.AvatarID = &otherAvatar
	_, err := f.svc.Generate(context.Background(), req)
	if !errors.Is(err, ErrAvatarNotFound) {
		t.Fatalf("expected ErrAvatarNotFound for another user's avatar, got %v", err)
	}
	if balance, _ := f.ledger.Balance(context.Background(), "user-1"); balance != 5 {
		t.Fatalf("expected full refund, balance = %d", balance)
	}
}

func TestGenerateAvatarEnrichesPromptAndPrimaryImage(t *testing.T) {
	f := newFixture(5)
	avatarID := "avatar-1"
	f.avatars.avatars[avatarID] = &model.Avatar{
		ID:        avatarID,
		UserID:    "user-1",
		Gender:    "feminine",
		HairStyle: "short",
		HairColor: "silver",
	}

	req := imageRequest()
	req.AvatarID = &avatarID
	if _, err := f.svc.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	want := "a lighthouse at dusk with a feminine person with short silver hair"
	if f.backend.lastPrompt != want {
		t.Fatalf("prompt = %q, want %q", f.backend.lastPrompt, want)
	}
	if f.avatars.primaryImage != "https://backend.example.com/artifact.png" {
		t.Fatalf("primary image not updated: %q", f.avatars.primaryImage)
	}
}

func TestGenerateVideoDoesNotTouchPrimaryImage(t *testing.T) {
	f := newFixture(5)
	avatarID := "avatar-1"
	f.avatars.avatars[avatarID] = &model.Avatar{ID: avatarID, UserID: "user-1"}

	req := imageRequest()
	req.Kind = model.KindVideo
	req.AvatarID = &avatarID
	if _, err := f.svc.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if f.avatars.primaryImage != "" {
		t.Fatal("video generation must not update the avatar primary image")
	}
}

func TestGenerateUsageWriteFallsBackToQueue(t *testing.T) {
	f := newFixture(5)
	f.usage.failures = 10 // more than MaxRetries, every inline write fails

	res, err := f.svc.Generate(context.Background(), imageRequest())
	if err != nil {
		t.Fatalf("Generate must succeed despite usage-log failure, got %v", err)
	}
	if res.CreditsRemaining != 4 {
		t.Fatalf("expected debit to stand, remaining = %d", res.CreditsRemaining)
	}
	if len(f.enqueuer.payloads) != 1 {
		t.Fatalf("expected 1 queued usage entry, got %d", len(f.enqueuer.payloads))
	}
}

func TestGenerateUsageWriteRecoversInline(t *testing.T) {
	f := newFixture(5)
	f.usage.failures = 1 // first write fails, retry succeeds

	if _, err := f.svc.Generate(context.Background(), imageRequest()); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(f.usage.entries) != 1 {
		t.Fatalf("expected recovered usage entry, got %d", len(f.usage.entries))
	}
	if len(f.enqueuer.payloads) != 0 {
		t.Fatal("queue must not be used when inline retry succeeds")
	}
}

func TestGenerateClientDisconnectDoesNotAbort(t *testing.T) {
	f := newFixture(5)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	f.backend.err = nil
	backend := f.backend
	f.svc = NewGenerationService(
		f.ledger, f.gens, f.avatars, f.usage,
		generatorFunc(func(c context.Context, kind model.GenerationKind, prompt string) (string, error) {
			close(started)
			// The caller's cancellation must not reach the backend call.
			select {
			case <-c.Done():
				return "", c.Err()
			case <-time.After(50 * time.Millisecond):
			}
			return backend.url, nil
		}),
		nil, f.enqueuer, nil, "", "usage_log_retry",
		UsageRetryPolicy{MaxRetries: 1, InitialBackoff: time.Millisecond},
		zerolog.Nop(),
	)

	go func() {
		<-started
		cancel()
	}()

	res, err := f.svc.Generate(ctx, imageRequest())
	if err != nil {
		t.Fatalf("Generate must survive caller cancellation, got %v", err)
	}
	if len(f.gens.created) != 1 {
		t.Fatal("generation must be persisted despite caller cancellation")
	}
	if res.CreditsRemaining != 4 {
		t.Fatalf("expected debit to stand, remaining = %d", res.CreditsRemaining)
	}
}

type generatorFunc func(ctx context.Context, kind model.GenerationKind, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, kind model.GenerationKind, prompt string) (string, error) {
	return f(ctx, kind, prompt)
}

func TestGenerateConcurrentDebitsNeverOverspend(t *testing.T) {
	f := newFixture(5) // enough for 5 image generations

	const attempts = 20
	var wg sync.WaitGroup
	var successes, rejected int64
	var mu sync.Mutex
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Generate(context.Background(), imageRequest())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInsufficientCredits):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 5 {
		t.Fatalf("expected exactly 5 successes, got %d", successes)
	}
	if rejected != attempts-5 {
		t.Fatalf("expected %d rejections, got %d", attempts-5, rejected)
	}
	if balance, _ := f.ledger.Balance(context.Background(), "user-1"); balance != 0 {
		t.Fatalf("expected balance 0, got %d", balance)
	}
}

func TestRefundReplayIsNoop(t *testing.T) {
	ledger := newFakeLedger(5)
	requestID := uuid.New()

	if replayed, _ := ledger.Refund(context.Background(), requestID, "user-1", 1); replayed {
		t.Fatal("first refund must not report replay")
	}
	if replayed, _ := ledger.Refund(context.Background(), requestID, "user-1", 1); !replayed {
		t.Fatal("second refund must report replay")
	}
	if balance, _ := ledger.Balance(context.Background(), "user-1"); balance != 6 {
		t.Fatalf("replayed refund must not credit twice, balance = %d", balance)
	}
}
