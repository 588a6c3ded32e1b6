package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"clipforge/internal/ledger"
	"clipforge/internal/services"
	"clipforge/internal/testsupport"
)

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	l, err := ledger.New(store.DB())
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	return l
}

func TestEnsureUserPreservesExistingBalance(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	if err := l.EnsureUser(ctx, "user-1", 20); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if err := l.EnsureUser(ctx, "user-1", 99); err != nil {
		t.Fatalf("second EnsureUser failed: %v", err)
	}

	balance, err := l.Balance(ctx, "user-1")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 20 {
		t.Fatalf("expected original balance 20, got %d", balance)
	}
}

func TestDebitNeverGoesNegative(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	if err := l.EnsureUser(ctx, "user-1", 5); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}

	err := l.Debit(ctx, "user-1", "job-1", 10, "generation")
	if err == nil {
		t.Fatal("expected insufficient credits error")
	}
	if !errors.Is(err, services.ErrInsufficientCredits) {
		t.Fatalf("unexpected error: %v", err)
	}

	balance, err := l.Balance(ctx, "user-1")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 5 {
		t.Fatalf("balance changed on failed debit: %d", balance)
	}
}

func TestDebitIsIdempotentPerJob(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	if err := l.EnsureUser(ctx, "user-1", 30); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := l.Debit(ctx, "user-1", "job-1", 10, "generation"); err != nil {
			t.Fatalf("Debit attempt %d failed: %v", i, err)
		}
	}

	balance, err := l.Balance(ctx, "user-1")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 20 {
		t.Fatalf("expected single charge leaving 20, got %d", balance)
	}

	debits, err := l.DebitsForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("DebitsForUser failed: %v", err)
	}
	if len(debits) != 1 {
		t.Fatalf("expected one debit row, got %d", len(debits))
	}
}

func TestConcurrentDebitsNeverLoseAnUpdate(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	const (
		jobs   = 8
		amount = int64(2)
	)
	if err := l.EnsureUser(ctx, "user-1", jobs*amount+5); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}

	// Two jobs finishing at once must both charge; a lost update would
	// leave the balance too high.
	errs := make(chan error, jobs)
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- l.Debit(ctx, "user-1", fmt.Sprintf("job-%d", i), amount, "assembly")
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Debit failed: %v", err)
		}
	}

	balance, err := l.Balance(ctx, "user-1")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 5 {
		t.Fatalf("expected balance 5 after %d debits of %d, got %d", jobs, amount, balance)
	}
	debits, err := l.DebitsForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("DebitsForUser failed: %v", err)
	}
	if len(debits) != jobs {
		t.Fatalf("expected %d debit rows, got %d", jobs, len(debits))
	}
}

func TestDebitRejectsNonPositiveAmounts(t *testing.T) {
	l := newLedger(t)

	err := l.Debit(context.Background(), "user-1", "job-1", 0, "generation")
	if err == nil || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordUnsettledSkipsBalance(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	if err := l.EnsureUser(ctx, "user-1", 10); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if err := l.RecordUnsettled(ctx, "user-1", "job-1", 1, "assembly"); err != nil {
		t.Fatalf("RecordUnsettled failed: %v", err)
	}

	balance, err := l.Balance(ctx, "user-1")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 10 {
		t.Fatalf("unsettled debit must not touch the balance, got %d", balance)
	}

	unsettled, err := l.Unsettled(ctx)
	if err != nil {
		t.Fatalf("Unsettled failed: %v", err)
	}
	if len(unsettled) != 1 || unsettled[0].JobID != "job-1" || unsettled[0].Settled {
		t.Fatalf("unexpected unsettled rows: %+v", unsettled)
	}
}

func TestCreditCreatesUserOnDemand(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	if err := l.Credit(ctx, "user-1", 15); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	balance, err := l.Balance(ctx, "user-1")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 15 {
		t.Fatalf("expected balance 15, got %d", balance)
	}
}

func TestBalanceForUnknownUserIsZero(t *testing.T) {
	l := newLedger(t)

	balance, err := l.Balance(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected zero balance, got %d", balance)
	}
}
