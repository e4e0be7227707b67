package billing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/laskutin/internal/billing"
	"github.com/dukerupert/laskutin/internal/model"
)

var errLineWrite = errors.New("line write failed")

// failingSessions lets the first n line inserts through and fails the rest.
type failingSessions struct {
	billing.Sessions
	allow int
}

type failingStorage struct {
	billing.Storage
	s *failingSessions
}

func (f *failingStorage) InsertInvoiceLine(ctx context.Context, line *model.InvoiceLine) (int64, error) {
	if f.s.allow == 0 {
		return 0, errLineWrite
	}
	f.s.allow--
	return f.Storage.InsertInvoiceLine(ctx, line)
}

func (f *failingSessions) Update(ctx context.Context, fn func(billing.Storage) error) error {
	return f.Sessions.Update(ctx, func(st billing.Storage) error {
		return fn(&failingStorage{Storage: st, s: f})
	})
}

func TestGenerateRollsBackFailedHousehold(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.seed(t)

	// Virtanen has two lines; the second fails.
	sessions := &failingSessions{Sessions: env.ledger, allow: 1}
	engine := billing.New(sessions, nil, billing.WithClock(func() time.Time { return march2024 }))

	invoices, err := engine.GenerateForYear(ctx, 2024)
	if !errors.Is(err, errLineWrite) {
		t.Fatalf("err = %v, want line write failure", err)
	}
	if invoices != nil {
		t.Errorf("invoices = %+v, want nil", invoices)
	}
	if n := env.invoiceCount(t); n != 0 {
		t.Errorf("invoice count = %d, want 0 after rollback", n)
	}

	// The ledger is usable again and a clean run bills everyone.
	created, err := env.engine.GenerateForYear(ctx, 2024)
	if err != nil {
		t.Fatalf("clean run: %v", err)
	}
	if len(created) != 2 {
		t.Errorf("clean run created %d, want 2", len(created))
	}
}

var errHouseholdDelete = errors.New("household delete failed")

// householdDeleteFailing fails the final household row delete, after the
// member and address rows have already been removed in the same transaction.
type householdDeleteFailing struct {
	billing.Sessions
}

type householdDeleteFailingStorage struct {
	billing.Storage
}

func (householdDeleteFailingStorage) DeleteHouseholdRow(context.Context, int64) error {
	return errHouseholdDelete
}

func (f householdDeleteFailing) Update(ctx context.Context, fn func(billing.Storage) error) error {
	return f.Sessions.Update(ctx, func(st billing.Storage) error {
		return fn(householdDeleteFailingStorage{Storage: st})
	})
}

func (e *testEnv) assertHouseholdIntact(t *testing.T, member *model.MemberWithHousehold) {
	t.Helper()
	ctx := context.Background()

	got, err := e.members.GetByID(ctx, member.Member.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if got == nil {
		t.Fatal("member was deleted despite the failure")
	}

	summary, err := e.households.GetByID(ctx, member.Household.ID)
	if err != nil {
		t.Fatalf("get household: %v", err)
	}
	if summary == nil {
		t.Fatal("household was deleted despite the failure")
	}
	if summary.Address.ID != member.Address.ID {
		t.Errorf("address id = %d, want %d", summary.Address.ID, member.Address.ID)
	}
	if summary.MemberCount != 1 {
		t.Errorf("member count = %d, want 1", summary.MemberCount)
	}
}

func TestDeleteMemberRollsBackOnFailure(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	_, korhonen := env.seed(t)

	engine := billing.New(householdDeleteFailing{Sessions: env.ledger}, nil)
	result, err := engine.DeleteMember(ctx, korhonen.Member.ID)
	if !errors.Is(err, errHouseholdDelete) {
		t.Fatalf("err = %v, want household delete failure", err)
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}

	env.assertHouseholdIntact(t, korhonen)

	// A clean delete still works afterwards.
	result, err = env.engine.DeleteMember(ctx, korhonen.Member.ID)
	if err != nil {
		t.Fatalf("clean delete: %v", err)
	}
	if !result.HouseholdRemoved {
		t.Error("expected household to be removed")
	}
}

func TestDeleteHouseholdRollsBackOnFailure(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	_, korhonen := env.seed(t)

	engine := billing.New(householdDeleteFailing{Sessions: env.ledger}, nil)
	err := engine.DeleteHousehold(ctx, korhonen.Household.ID)
	if !errors.Is(err, errHouseholdDelete) {
		t.Fatalf("err = %v, want household delete failure", err)
	}

	env.assertHouseholdIntact(t, korhonen)

	if err := env.engine.DeleteHousehold(ctx, korhonen.Household.ID); err != nil {
		t.Fatalf("clean delete: %v", err)
	}
	summary, err := env.households.GetByID(ctx, korhonen.Household.ID)
	if err != nil {
		t.Fatalf("get household: %v", err)
	}
	if summary != nil {
		t.Errorf("household still present after clean delete: %+v", summary)
	}
}

type countingRecorder struct {
	mu       sync.Mutex
	created  int
	amount   int64
	refused  []string
	runs     map[string]int
	failures int
}

func (r *countingRecorder) InvoicesCreated(_ int, count int, amountCents int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created += count
	r.amount += amountCents
}

func (r *countingRecorder) DeletionRefused(entity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refused = append(r.refused, entity)
}

func (r *countingRecorder) ObserveRun(op string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runs == nil {
		r.runs = make(map[string]int)
	}
	r.runs[op]++
	if err != nil {
		r.failures++
	}
}

func TestEngineReportsToRecorder(t *testing.T) {
	rec := &countingRecorder{}
	env := setupEnv(t, billing.WithRecorder(rec))
	ctx := context.Background()
	virtanen, _ := env.seed(t)

	if _, err := env.engine.Validate(ctx, 2024); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, err := env.engine.GenerateForYear(ctx, 2024); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := env.engine.Validate(ctx, 2024); err == nil {
		t.Fatal("expected already-invoiced validation error")
	}
	if _, err := env.engine.DeleteMember(ctx, virtanen.Member.ID); err == nil {
		t.Fatal("expected refused delete")
	}

	if rec.created != 2 || rec.amount != 6000 {
		t.Errorf("created = %d, amount = %d, want 2 and 6000", rec.created, rec.amount)
	}
	if len(rec.refused) != 1 || rec.refused[0] != "member" {
		t.Errorf("refused = %v, want [member]", rec.refused)
	}
	if rec.runs["validate"] != 2 || rec.runs["generate"] != 1 {
		t.Errorf("runs = %v", rec.runs)
	}
	if rec.failures != 1 {
		t.Errorf("failures = %d, want 1", rec.failures)
	}
}
