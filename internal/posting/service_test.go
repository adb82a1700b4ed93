package posting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harbor-trust/harbor_core/internal/account"
	"github.com/harbor-trust/harbor_core/internal/interbank"
	"github.com/harbor-trust/harbor_core/internal/ledger"
	"github.com/harbor-trust/harbor_core/internal/refnum"
)

var errStorageDown = errors.New("storage unavailable")

// flakyTransfers wraps a transfer repository with switchable write failures.
type flakyTransfers struct {
	interbank.Repository
	failCreate   bool
	failFinalize bool
}

func (f *flakyTransfers) Create(ctx context.Context, rec interbank.Record) error {
	if f.failCreate {
		return errStorageDown
	}
	return f.Repository.Create(ctx, rec)
}

func (f *flakyTransfers) Finalize(ctx context.Context, reference, status, switchRef, message string) error {
	if f.failFinalize {
		return errStorageDown
	}
	return f.Repository.Finalize(ctx, reference, status, switchRef, message)
}

// flakyLedger wraps a ledger with a switchable append failure.
type flakyLedger struct {
	ledger.Ledger
	failAppend bool
}

func (f *flakyLedger) Append(ctx context.Context, entries ...ledger.Entry) ([]ledger.Entry, error) {
	if f.failAppend {
		return nil, errStorageDown
	}
	return f.Ledger.Append(ctx, entries...)
}

type engineFixture struct {
	engine    *Engine
	accounts  *account.MemoryRepository
	ledger    *flakyLedger
	transfers *flakyTransfers
}

func newFixture(t *testing.T) *engineFixture {
	t.Helper()
	accounts := account.NewMemoryRepository()
	led := &flakyLedger{Ledger: ledger.NewInMemory()}
	transfers := &flakyTransfers{Repository: interbank.NewMemoryRepository()}
	engine := NewEngine(accounts, led, refnum.NewMemory(), transfers, nil,
		decimal.RequireFromString("50000.00"))
	return &engineFixture{engine: engine, accounts: accounts, ledger: led, transfers: transfers}
}

var seededNumbers atomic.Int64

func (f *engineFixture) seedAccount(t *testing.T, balance string) account.Account {
	t.Helper()
	now := time.Now().UTC()
	acct := account.Account{
		ID:         uuid.New().String(),
		CustomerID: uuid.New().String(),
		BranchCode: "MNL",
		Number:     fmt.Sprintf("MNL%07d", seededNumbers.Add(1)),
		Balance:    decimal.RequireFromString(balance),
		Status:     account.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := f.accounts.Create(context.Background(), acct); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return acct
}

func (f *engineFixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	acct, err := f.accounts.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return acct.Balance
}

func mustEqual(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("balance mismatch: got %s, want %s", got.StringFixed(2), want)
	}
}

func TestEngine_DepositWithdrawLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.seedAccount(t, "0.00")

	entry, err := f.engine.Deposit(ctx, acct.ID, decimal.RequireFromString("1000.00"), "")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if entry.Type != ledger.TypeDeposit {
		t.Fatalf("expected DEPOSIT entry, got %s", entry.Type)
	}
	mustEqual(t, entry.BalanceAfter, "1000.00")
	mustEqual(t, f.balance(t, acct.ID), "1000.00")

	entry, err = f.engine.Withdraw(ctx, acct.ID, decimal.RequireFromString("300.00"), "")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !entry.Amount.Equal(decimal.RequireFromString("-300.00")) {
		t.Fatalf("withdrawal amount should be negative, got %s", entry.Amount)
	}
	mustEqual(t, f.balance(t, acct.ID), "700.00")

	entries, err := f.ledger.ByAccount(ctx, acct.ID, 0)
	if err != nil {
		t.Fatalf("by account: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	if entries[0].Type != ledger.TypeWithdrawal {
		t.Fatalf("entries should list newest first, got %s", entries[0].Type)
	}
}

func TestEngine_WithdrawInsufficientBalanceLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.seedAccount(t, "50.00")

	_, err := f.engine.Withdraw(ctx, acct.ID, decimal.RequireFromString("50.01"), "")
	var ibErr *InsufficientBalanceError
	if !errors.As(err, &ibErr) {
		t.Fatalf("expected insufficient balance error, got %v", err)
	}
	mustEqual(t, ibErr.Available, "50.00")

	mustEqual(t, f.balance(t, acct.ID), "50.00")
	entries, _ := f.ledger.ByAccount(ctx, acct.ID, 0)
	if len(entries) != 0 {
		t.Fatalf("failed withdrawal must leave no ledger entries, got %d", len(entries))
	}
}

func TestEngine_AmountValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.seedAccount(t, "100.00")

	for _, raw := range []string{"0", "-5.00", "1.001"} {
		_, err := f.engine.Deposit(ctx, acct.ID, decimal.RequireFromString(raw), "")
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("amount %s: expected validation error, got %v", raw, err)
		}
	}
	mustEqual(t, f.balance(t, acct.ID), "100.00")
}

func TestEngine_ClosedAccountRejectsAllPostings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.seedAccount(t, "100.00")
	if err := f.accounts.UpdateStatus(ctx, acct.ID, account.StatusClosed); err != nil {
		t.Fatalf("close account: %v", err)
	}

	if _, err := f.engine.Deposit(ctx, acct.ID, decimal.RequireFromString("10.00"), ""); !errors.Is(err, account.ErrAccountClosed) {
		t.Fatalf("deposit into closed account: expected ErrAccountClosed, got %v", err)
	}
	if _, err := f.engine.Withdraw(ctx, acct.ID, decimal.RequireFromString("10.00"), ""); !errors.Is(err, account.ErrAccountClosed) {
		t.Fatalf("withdraw from closed account: expected ErrAccountClosed, got %v", err)
	}
	mustEqual(t, f.balance(t, acct.ID), "100.00")
}

func TestEngine_ConcurrentDepositsAllLand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.seedAccount(t, "0.00")

	const n = 50
	amount := decimal.RequireFromString("10.00")

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.Deposit(ctx, acct.ID, amount, ""); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent deposit: %v", err)
	}

	mustEqual(t, f.balance(t, acct.ID), "500.00")
	entries, _ := f.ledger.ByAccount(ctx, acct.ID, 0)
	if len(entries) != n {
		t.Fatalf("expected %d ledger entries, got %d", n, len(entries))
	}
}

func TestEngine_TransferIntrabank(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.seedAccount(t, "500.00")
	dest := f.seedAccount(t, "20.00")

	entry, err := f.engine.TransferIntrabank(ctx, src.ID, dest.Number, decimal.RequireFromString("150.00"), "rent")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if entry.AccountID != src.ID || entry.Type != ledger.TypeInternalTransfer {
		t.Fatalf("unexpected source leg: %+v", entry)
	}
	if entry.RelatedAccountNumber != dest.Number {
		t.Fatalf("source leg should link destination number, got %q", entry.RelatedAccountNumber)
	}

	mustEqual(t, f.balance(t, src.ID), "350.00")
	mustEqual(t, f.balance(t, dest.ID), "170.00")

	destEntries, _ := f.ledger.ByAccount(ctx, dest.ID, 0)
	if len(destEntries) != 1 {
		t.Fatalf("expected 1 destination entry, got %d", len(destEntries))
	}
	credit := destEntries[0]
	if !credit.Amount.Equal(decimal.RequireFromString("150.00")) {
		t.Fatalf("credit leg amount: got %s", credit.Amount)
	}
	if credit.RelatedAccountID != src.ID {
		t.Fatalf("credit leg should link source account, got %q", credit.RelatedAccountID)
	}
	if credit.ReferenceNumber == entry.ReferenceNumber {
		t.Fatal("each leg must carry its own reference number")
	}
}

func TestEngine_TransferSameAccountRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.seedAccount(t, "100.00")

	_, err := f.engine.TransferIntrabank(ctx, acct.ID, acct.Number, decimal.RequireFromString("10.00"), "")
	if !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}
	mustEqual(t, f.balance(t, acct.ID), "100.00")
}

func TestEngine_ConcurrentOpposingTransfersConserveTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedAccount(t, "1000.00")
	b := f.seedAccount(t, "1000.00")

	const rounds = 20
	amount := decimal.RequireFromString("5.00")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, _ = f.engine.TransferIntrabank(ctx, a.ID, b.Number, amount, "")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, _ = f.engine.TransferIntrabank(ctx, b.ID, a.Number, amount, "")
		}
	}()
	wg.Wait()

	total := f.balance(t, a.ID).Add(f.balance(t, b.ID))
	mustEqual(t, total, "2000.00")
}

func TestEngine_SendInterbank(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.seedAccount(t, "700.00")

	result, err := f.engine.SendInterbank(ctx, acct.ID, "BDO", "Banco de Oro", "001234567890", "J. Reyes",
		decimal.RequireFromString("600.00"))
	if err != nil {
		t.Fatalf("send interbank: %v", err)
	}
	if result.Status != interbank.StatusPending {
		t.Fatalf("expected PENDING, got %s", result.Status)
	}
	mustEqual(t, f.balance(t, acct.ID), "100.00")

	entry, err := f.ledger.ByReference(ctx, result.ReferenceNumber)
	if err != nil {
		t.Fatalf("ledger entry: %v", err)
	}
	if entry.Type != ledger.TypeInstapay {
		t.Fatalf("expected INSTAPAY entry, got %s", entry.Type)
	}
	if !entry.Amount.Equal(decimal.RequireFromString("-600.00")) {
		t.Fatalf("instapay debit amount: got %s", entry.Amount)
	}

	rec, err := f.transfers.Get(ctx, result.ReferenceNumber)
	if err != nil {
		t.Fatalf("transfer record: %v", err)
	}
	if rec.Status != interbank.StatusPending || rec.SourceAccountID != acct.ID {
		t.Fatalf("unexpected transfer record: %+v", rec)
	}
	if result.Payload.DestAccountNumber != "001234567890" {
		t.Fatalf("payload destination: got %q", result.Payload.DestAccountNumber)
	}
}

func TestEngine_SendInterbankCeilingEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.seedAccount(t, "100000.00")

	_, err := f.engine.SendInterbank(ctx, acct.ID, "BDO", "Banco de Oro", "001234567890", "J. Reyes",
		decimal.RequireFromString("50000.01"))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ceiling validation error, got %v", err)
	}
	mustEqual(t, f.balance(t, acct.ID), "100000.00")
}

func TestEngine_SendInterbankRecordFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.seedAccount(t, "700.00")

	f.transfers.failCreate = true
	_, err := f.engine.SendInterbank(ctx, acct.ID, "BDO", "Banco de Oro", "001234567890", "J. Reyes",
		decimal.RequireFromString("600.00"))
	if !errors.Is(err, errStorageDown) {
		t.Fatalf("expected storage error, got %v", err)
	}

	mustEqual(t, f.balance(t, acct.ID), "700.00")
	entries, _ := f.ledger.ByAccount(ctx, acct.ID, 0)
	if len(entries) != 0 {
		t.Fatalf("failed send must leave no ledger entries, got %d", len(entries))
	}
}

func TestEngine_SendInterbankAppendFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.seedAccount(t, "700.00")

	f.ledger.failAppend = true
	_, err := f.engine.SendInterbank(ctx, acct.ID, "BDO", "Banco de Oro", "001234567890", "J. Reyes",
		decimal.RequireFromString("600.00"))
	if !errors.Is(err, errStorageDown) {
		t.Fatalf("expected storage error, got %v", err)
	}

	mustEqual(t, f.balance(t, acct.ID), "700.00")

	// The provisional transfer record must be gone too. The failed send
	// consumed today's first sequence number.
	ref := refnum.Format(time.Now().UTC(), 1)
	if _, err := f.transfers.Get(ctx, ref); !errors.Is(err, interbank.ErrNotFound) {
		t.Fatalf("failed send must leave no transfer record, got %v", err)
	}

	// The engine must be fully usable afterwards.
	f.ledger.failAppend = false
	if _, err := f.engine.SendInterbank(ctx, acct.ID, "BDO", "Banco de Oro", "001234567890", "J. Reyes",
		decimal.RequireFromString("600.00")); err != nil {
		t.Fatalf("send after recovery: %v", err)
	}
	mustEqual(t, f.balance(t, acct.ID), "100.00")
}

func TestEngine_CallbackFinalizeFailureKeepsTransferPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.seedAccount(t, "700.00")

	result, err := f.engine.SendInterbank(ctx, acct.ID, "BDO", "Banco de Oro", "001234567890", "J. Reyes",
		decimal.RequireFromString("600.00"))
	if err != nil {
		t.Fatalf("send interbank: %v", err)
	}

	f.transfers.failFinalize = true
	if _, err := f.engine.ApplyInterbankCallback(ctx, result.ReferenceNumber, interbank.StatusFailed, "SW-42", "timeout"); !errors.Is(err, errStorageDown) {
		t.Fatalf("expected storage error, got %v", err)
	}

	// The debit stands, no reversal entry exists, and the record is still PENDING.
	mustEqual(t, f.balance(t, acct.ID), "100.00")
	entries, _ := f.ledger.ByAccount(ctx, acct.ID, 0)
	if len(entries) != 1 {
		t.Fatalf("failed callback must leave only the original debit, got %d entries", len(entries))
	}
	rec, _ := f.transfers.Get(ctx, result.ReferenceNumber)
	if rec.Status != interbank.StatusPending {
		t.Fatalf("record must stay PENDING for redelivery, got %s", rec.Status)
	}

	// Redelivery after the store recovers completes the reversal.
	f.transfers.failFinalize = false
	if _, err := f.engine.ApplyInterbankCallback(ctx, result.ReferenceNumber, interbank.StatusFailed, "SW-42", "timeout"); err != nil {
		t.Fatalf("redelivered callback: %v", err)
	}
	mustEqual(t, f.balance(t, acct.ID), "700.00")
}

func TestEngine_CallbackAppendFailureReopensTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.seedAccount(t, "700.00")

	result, err := f.engine.SendInterbank(ctx, acct.ID, "BDO", "Banco de Oro", "001234567890", "J. Reyes",
		decimal.RequireFromString("600.00"))
	if err != nil {
		t.Fatalf("send interbank: %v", err)
	}

	f.ledger.failAppend = true
	if _, err := f.engine.ApplyInterbankCallback(ctx, result.ReferenceNumber, interbank.StatusFailed, "SW-42", "timeout"); !errors.Is(err, errStorageDown) {
		t.Fatalf("expected storage error, got %v", err)
	}

	mustEqual(t, f.balance(t, acct.ID), "100.00")
	entries, _ := f.ledger.ByAccount(ctx, acct.ID, 0)
	if len(entries) != 1 {
		t.Fatalf("failed callback must leave only the original debit, got %d entries", len(entries))
	}
	rec, _ := f.transfers.Get(ctx, result.ReferenceNumber)
	if rec.Status != interbank.StatusPending {
		t.Fatalf("record must reopen to PENDING for redelivery, got %s", rec.Status)
	}

	f.ledger.failAppend = false
	if _, err := f.engine.ApplyInterbankCallback(ctx, result.ReferenceNumber, interbank.StatusFailed, "SW-42", "timeout"); err != nil {
		t.Fatalf("redelivered callback: %v", err)
	}
	mustEqual(t, f.balance(t, acct.ID), "700.00")
	entries, _ = f.ledger.ByAccount(ctx, acct.ID, 0)
	if len(entries) != 2 {
		t.Fatalf("expected debit plus reversal after redelivery, got %d", len(entries))
	}
}

func TestEngine_CallbackSuccessFinalizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.seedAccount(t, "700.00")

	result, err := f.engine.SendInterbank(ctx, acct.ID, "BDO", "Banco de Oro", "001234567890", "J. Reyes",
		decimal.RequireFromString("600.00"))
	if err != nil {
		t.Fatalf("send interbank: %v", err)
	}

	ack, err := f.engine.ApplyInterbankCallback(ctx, result.ReferenceNumber, interbank.StatusSuccess, "SW-42", "processed")
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if ack.Status != interbank.StatusSuccess {
		t.Fatalf("expected SUCCESS ack, got %s", ack.Status)
	}
	mustEqual(t, f.balance(t, acct.ID), "100.00")

	rec, _ := f.transfers.Get(ctx, result.ReferenceNumber)
	if rec.Status != interbank.StatusSuccess || rec.SwitchReference != "SW-42" {
		t.Fatalf("unexpected record after success: %+v", rec)
	}
}

func TestEngine_CallbackFailedReversesDebit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.seedAccount(t, "700.00")

	result, err := f.engine.SendInterbank(ctx, acct.ID, "BDO", "Banco de Oro", "001234567890", "J. Reyes",
		decimal.RequireFromString("600.00"))
	if err != nil {
		t.Fatalf("send interbank: %v", err)
	}
	mustEqual(t, f.balance(t, acct.ID), "100.00")

	ack, err := f.engine.ApplyInterbankCallback(ctx, result.ReferenceNumber, interbank.StatusFailed, "SW-42", "destination account invalid")
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if ack.Status != interbank.StatusFailed {
		t.Fatalf("expected FAILED ack, got %s", ack.Status)
	}
	mustEqual(t, f.balance(t, acct.ID), "700.00")

	entries, _ := f.ledger.ByAccount(ctx, acct.ID, 0)
	if len(entries) != 2 {
		t.Fatalf("expected debit plus reversal, got %d entries", len(entries))
	}
	reversal := entries[0]
	if reversal.Type != ledger.TypeDeposit {
		t.Fatalf("reversal must be a DEPOSIT entry, got %s", reversal.Type)
	}
	if !reversal.Amount.Equal(decimal.RequireFromString("600.00")) {
		t.Fatalf("reversal amount: got %s", reversal.Amount)
	}
	if reversal.ReferenceNumber == result.ReferenceNumber {
		t.Fatal("reversal must carry a fresh reference number")
	}
}

func TestEngine_CallbackRedeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.seedAccount(t, "700.00")

	result, err := f.engine.SendInterbank(ctx, acct.ID, "BDO", "Banco de Oro", "001234567890", "J. Reyes",
		decimal.RequireFromString("600.00"))
	if err != nil {
		t.Fatalf("send interbank: %v", err)
	}

	if _, err := f.engine.ApplyInterbankCallback(ctx, result.ReferenceNumber, interbank.StatusFailed, "SW-42", "timeout"); err != nil {
		t.Fatalf("first callback: %v", err)
	}
	mustEqual(t, f.balance(t, acct.ID), "700.00")

	// Redelivered verdicts acknowledge the stored status without crediting again.
	for _, status := range []string{interbank.StatusFailed, interbank.StatusSuccess, interbank.StatusPending} {
		ack, err := f.engine.ApplyInterbankCallback(ctx, result.ReferenceNumber, status, "SW-43", "retry")
		if err != nil {
			t.Fatalf("redelivered %s callback: %v", status, err)
		}
		if ack.Status != interbank.StatusFailed {
			t.Fatalf("redelivery must report stored status FAILED, got %s", ack.Status)
		}
	}
	mustEqual(t, f.balance(t, acct.ID), "700.00")

	entries, _ := f.ledger.ByAccount(ctx, acct.ID, 0)
	if len(entries) != 2 {
		t.Fatalf("redelivery must not add entries, got %d", len(entries))
	}
}

func TestEngine_CallbackPendingStoresSwitchReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.seedAccount(t, "700.00")

	result, err := f.engine.SendInterbank(ctx, acct.ID, "BDO", "Banco de Oro", "001234567890", "J. Reyes",
		decimal.RequireFromString("600.00"))
	if err != nil {
		t.Fatalf("send interbank: %v", err)
	}

	ack, err := f.engine.ApplyInterbankCallback(ctx, result.ReferenceNumber, interbank.StatusPending, "SW-42", "")
	if err != nil {
		t.Fatalf("pending callback: %v", err)
	}
	if ack.Status != interbank.StatusPending {
		t.Fatalf("expected PENDING ack, got %s", ack.Status)
	}

	rec, _ := f.transfers.Get(ctx, result.ReferenceNumber)
	if rec.Status != interbank.StatusPending || rec.SwitchReference != "SW-42" {
		t.Fatalf("unexpected record after pending callback: %+v", rec)
	}
	mustEqual(t, f.balance(t, acct.ID), "100.00")
}

func TestEngine_CallbackUnknownStatusRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.ApplyInterbankCallback(ctx, "TXN20260101000001", "EXPLODED", "", "")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEngine_CallbackUnknownReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.ApplyInterbankCallback(ctx, "TXN20260101999999", interbank.StatusSuccess, "", "")
	if !errors.Is(err, interbank.ErrNotFound) {
		t.Fatalf("expected interbank.ErrNotFound, got %v", err)
	}
}
