// Package posting implements the transaction posting engine: the only
// component permitted to pair a balance mutation with a ledger append.
package posting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harbor-trust/harbor_core/internal/account"
	"github.com/harbor-trust/harbor_core/internal/interbank"
	"github.com/harbor-trust/harbor_core/internal/ledger"
	"github.com/harbor-trust/harbor_core/internal/notification"
	"github.com/harbor-trust/harbor_core/internal/refnum"
)

// balanceRetries bounds the compare-and-set retry loop. The per-account lock
// serializes writers in this process; retries cover writers elsewhere.
const balanceRetries = 3

// Engine orchestrates the account store, reference generator and ledger to
// post money movement atomically. Every operation either fully succeeds
// (balance updated and ledger rows written) or fully fails with no side
// effects.
type Engine struct {
	accounts  account.Repository
	ledger    ledger.Ledger
	refs      refnum.Generator
	transfers interbank.Repository
	notifier  notification.Notifier
	ceiling   decimal.Decimal
	locks     *accountLocks
}

// NewEngine builds a posting engine. The ceiling caps single interbank
// transfers; notifier may be nil.
func NewEngine(accounts account.Repository, led ledger.Ledger, refs refnum.Generator,
	transfers interbank.Repository, notifier notification.Notifier, ceiling decimal.Decimal) *Engine {
	return &Engine{
		accounts:  accounts,
		ledger:    led,
		refs:      refs,
		transfers: transfers,
		notifier:  notifier,
		ceiling:   ceiling,
		locks:     newAccountLocks(),
	}
}

// Deposit credits the account and appends one DEPOSIT ledger entry.
func (e *Engine) Deposit(ctx context.Context, accountID string, amount decimal.Decimal, description string) (ledger.Entry, error) {
	if err := validateAmount(amount); err != nil {
		return ledger.Entry{}, err
	}

	unlock := e.locks.acquire(accountID)
	defer unlock()

	acct, err := e.accounts.Get(ctx, accountID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if acct.Closed() {
		return ledger.Entry{}, account.ErrAccountClosed
	}

	// Allocate the reference before mutating anything: a generator failure
	// must abort the posting with no side effects.
	ref, err := e.refs.Next(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}

	newBalance, err := e.applyDelta(ctx, acct, amount)
	if err != nil {
		return ledger.Entry{}, err
	}

	entry, err := e.appendOrRevert(ctx, []balanceChange{{acct.ID, newBalance, amount}}, ledger.Entry{
		ReferenceNumber: ref,
		AccountID:       acct.ID,
		Type:            ledger.TypeDeposit,
		Amount:          amount,
		BalanceAfter:    newBalance,
		Description:     defaultDescription(description, "Deposit"),
	})
	if err != nil {
		return ledger.Entry{}, err
	}

	e.notify(ctx, notification.KindDeposit, acct.ID, ref,
		fmt.Sprintf("Deposited %s", amount.StringFixed(2)))
	return entry, nil
}

// Withdraw debits the account and appends one WITHDRAWAL ledger entry with a
// negative amount.
func (e *Engine) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, description string) (ledger.Entry, error) {
	if err := validateAmount(amount); err != nil {
		return ledger.Entry{}, err
	}

	unlock := e.locks.acquire(accountID)
	defer unlock()

	acct, err := e.accounts.Get(ctx, accountID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if acct.Closed() {
		return ledger.Entry{}, account.ErrAccountClosed
	}
	if acct.Balance.LessThan(amount) {
		return ledger.Entry{}, &InsufficientBalanceError{Available: acct.Balance}
	}

	ref, err := e.refs.Next(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}

	newBalance, err := e.applyDelta(ctx, acct, amount.Neg())
	if err != nil {
		return ledger.Entry{}, err
	}

	entry, err := e.appendOrRevert(ctx, []balanceChange{{acct.ID, newBalance, amount.Neg()}}, ledger.Entry{
		ReferenceNumber: ref,
		AccountID:       acct.ID,
		Type:            ledger.TypeWithdrawal,
		Amount:          amount.Neg(),
		BalanceAfter:    newBalance,
		Description:     defaultDescription(description, "Withdrawal"),
	})
	if err != nil {
		return ledger.Entry{}, err
	}

	e.notify(ctx, notification.KindWithdrawal, acct.ID, ref,
		fmt.Sprintf("Withdrew %s", amount.StringFixed(2)))
	return entry, nil
}

// TransferIntrabank moves funds between two accounts of this bank, debiting
// the source and crediting the destination with two linked ledger entries.
// It returns the source-side entry.
func (e *Engine) TransferIntrabank(ctx context.Context, fromAccountID, toAccountNumber string, amount decimal.Decimal, description string) (ledger.Entry, error) {
	if err := validateAmount(amount); err != nil {
		return ledger.Entry{}, err
	}

	dest, err := e.accounts.GetByNumber(ctx, toAccountNumber)
	if err != nil {
		return ledger.Entry{}, err
	}
	if dest.ID == fromAccountID {
		return ledger.Entry{}, ErrSameAccount
	}

	unlock := e.locks.acquirePair(fromAccountID, dest.ID)
	defer unlock()

	// Re-read both sides under the locks.
	src, err := e.accounts.Get(ctx, fromAccountID)
	if err != nil {
		return ledger.Entry{}, err
	}
	dest, err = e.accounts.Get(ctx, dest.ID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if src.Closed() || dest.Closed() {
		return ledger.Entry{}, account.ErrAccountClosed
	}
	if src.Balance.LessThan(amount) {
		return ledger.Entry{}, &InsufficientBalanceError{Available: src.Balance}
	}

	// Each leg carries its own reference number; the legs are linked only
	// through the related-account columns.
	debitRef, err := e.refs.Next(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}
	creditRef, err := e.refs.Next(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}

	srcBalance, err := e.applyDelta(ctx, src, amount.Neg())
	if err != nil {
		return ledger.Entry{}, err
	}
	destBalance, err := e.applyDelta(ctx, dest, amount)
	if err != nil {
		return ledger.Entry{}, e.revertAll(ctx, []balanceChange{{src.ID, srcBalance, amount.Neg()}}, err)
	}

	changes := []balanceChange{
		{src.ID, srcBalance, amount.Neg()},
		{dest.ID, destBalance, amount},
	}
	desc := defaultDescription(description, "Internal transfer")
	entries, err := e.ledger.Append(ctx,
		ledger.Entry{
			ReferenceNumber:      debitRef,
			AccountID:            src.ID,
			Type:                 ledger.TypeInternalTransfer,
			Amount:               amount.Neg(),
			BalanceAfter:         srcBalance,
			RelatedAccountID:     dest.ID,
			RelatedAccountNumber: dest.Number,
			Description:          desc,
		},
		ledger.Entry{
			ReferenceNumber:      creditRef,
			AccountID:            dest.ID,
			Type:                 ledger.TypeInternalTransfer,
			Amount:               amount,
			BalanceAfter:         destBalance,
			RelatedAccountID:     src.ID,
			RelatedAccountNumber: src.Number,
			Description:          desc,
		},
	)
	if err != nil {
		return ledger.Entry{}, e.revertAll(ctx, changes, err)
	}

	e.notify(ctx, notification.KindTransfer, src.ID, debitRef,
		fmt.Sprintf("Transferred %s to account %s", amount.StringFixed(2), dest.Number))
	return entries[0], nil
}

// SendResult is the outcome of initiating an interbank transfer. Payload is
// the switch-facing message for the gateway adapter to transmit; the engine
// itself performs no network I/O.
type SendResult struct {
	ReferenceNumber string
	Status          string
	Payload         interbank.Payload
}

// SendInterbank debits the source account immediately, appends one INSTAPAY
// ledger entry and records a PENDING transfer sharing the same reference.
// The debit commits funds before the switch is contacted; the FAILED callback
// path restores them if the switch rejects the transfer.
func (e *Engine) SendInterbank(ctx context.Context, sourceAccountID, bankCode, bankName, destAccountNumber, destAccountName string, amount decimal.Decimal) (SendResult, error) {
	if err := validateAmount(amount); err != nil {
		return SendResult{}, err
	}
	if amount.GreaterThan(e.ceiling) {
		return SendResult{}, &ValidationError{Reason: fmt.Sprintf("amount exceeds interbank ceiling of %s", e.ceiling.StringFixed(2))}
	}
	if bankCode == "" || destAccountNumber == "" {
		return SendResult{}, &ValidationError{Reason: "bank code and destination account number are required"}
	}

	unlock := e.locks.acquire(sourceAccountID)
	defer unlock()

	src, err := e.accounts.Get(ctx, sourceAccountID)
	if err != nil {
		return SendResult{}, err
	}
	if src.Closed() {
		return SendResult{}, account.ErrAccountClosed
	}
	if src.Balance.LessThan(amount) {
		return SendResult{}, &InsufficientBalanceError{Available: src.Balance}
	}

	ref, err := e.refs.Next(ctx)
	if err != nil {
		return SendResult{}, err
	}

	newBalance, err := e.applyDelta(ctx, src, amount.Neg())
	if err != nil {
		return SendResult{}, err
	}
	changes := []balanceChange{{src.ID, newBalance, amount.Neg()}}

	now := time.Now().UTC()
	rec := interbank.Record{
		ReferenceNumber:     ref,
		SourceAccountID:     src.ID,
		SourceAccountNumber: src.Number,
		BankCode:            bankCode,
		BankName:            bankName,
		DestAccountNumber:   destAccountNumber,
		DestAccountName:     destAccountName,
		Amount:              amount,
		Status:              interbank.StatusPending,
		SentAt:              now,
		UpdatedAt:           now,
	}
	if err := e.transfers.Create(ctx, rec); err != nil {
		return SendResult{}, e.revertAll(ctx, changes, err)
	}

	// The ledger append is the last fallible step of the unit: if it fails,
	// the balance and the transfer record unwind and no entry exists.
	if _, err := e.ledger.Append(ctx, ledger.Entry{
		ReferenceNumber: ref,
		AccountID:       src.ID,
		Type:            ledger.TypeInstapay,
		Amount:          amount.Neg(),
		BalanceAfter:    newBalance,
		Description:     fmt.Sprintf("Instapay transfer to %s (%s)", destAccountName, bankName),
	}); err != nil {
		err = e.revertAll(ctx, changes, err)
		if derr := e.transfers.Delete(ctx, ref); derr != nil {
			err = errors.Join(err, fmt.Errorf("remove transfer record %s: %w", ref, derr))
		}
		return SendResult{}, err
	}

	e.notify(ctx, notification.KindInterbank, src.ID, ref,
		fmt.Sprintf("Instapay transfer of %s to %s initiated", amount.StringFixed(2), destAccountNumber))

	return SendResult{
		ReferenceNumber: ref,
		Status:          interbank.StatusPending,
		Payload: interbank.Payload{
			ReferenceNumber:     ref,
			SourceAccountNumber: src.Number,
			BankCode:            bankCode,
			BankName:            bankName,
			DestAccountNumber:   destAccountNumber,
			DestAccountName:     destAccountName,
			Amount:              amount,
			SentAt:              now,
		},
	}, nil
}

// CallbackResult acknowledges a switch callback.
type CallbackResult struct {
	ReferenceNumber string
	Status          string
}

// ApplyInterbankCallback finalizes a pending interbank transfer from the
// switch's verdict. A FAILED verdict credits the source account back with a
// compensating DEPOSIT entry. Redelivered callbacks for a terminal record are
// accepted without reapplying any balance effect.
func (e *Engine) ApplyInterbankCallback(ctx context.Context, referenceNumber, status, switchRef, message string) (CallbackResult, error) {
	switch status {
	case interbank.StatusPending, interbank.StatusSuccess, interbank.StatusFailed:
	default:
		return CallbackResult{}, &ValidationError{Reason: fmt.Sprintf("unknown callback status %q", status)}
	}

	rec, err := e.transfers.Get(ctx, referenceNumber)
	if err != nil {
		return CallbackResult{}, err
	}

	// Serialize against postings and concurrent redeliveries touching the
	// same source account.
	unlock := e.locks.acquire(rec.SourceAccountID)
	defer unlock()

	rec, err = e.transfers.Get(ctx, referenceNumber)
	if err != nil {
		return CallbackResult{}, err
	}
	if interbank.Terminal(rec.Status) {
		return CallbackResult{ReferenceNumber: rec.ReferenceNumber, Status: rec.Status}, nil
	}

	switch status {
	case interbank.StatusPending:
		if switchRef != "" {
			if err := e.transfers.SetSwitchReference(ctx, referenceNumber, switchRef); err != nil {
				return CallbackResult{}, err
			}
		}
		return CallbackResult{ReferenceNumber: rec.ReferenceNumber, Status: interbank.StatusPending}, nil

	case interbank.StatusSuccess:
		// The debit already happened at send time; finalizing makes it permanent.
		if err := e.transfers.Finalize(ctx, referenceNumber, interbank.StatusSuccess, switchRef, message); err != nil {
			return CallbackResult{}, err
		}
		return CallbackResult{ReferenceNumber: rec.ReferenceNumber, Status: interbank.StatusSuccess}, nil

	default: // FAILED: reverse the provisional debit.
		acct, err := e.accounts.Get(ctx, rec.SourceAccountID)
		if err != nil {
			return CallbackResult{}, err
		}

		ref, err := e.refs.Next(ctx)
		if err != nil {
			return CallbackResult{}, err
		}

		// Reversals credit the source even if it was closed in the meantime:
		// the funds belong to it.
		newBalance, err := e.applyDelta(ctx, acct, rec.Amount)
		if err != nil {
			return CallbackResult{}, err
		}

		changes := []balanceChange{{acct.ID, newBalance, rec.Amount}}
		if err := e.transfers.Finalize(ctx, referenceNumber, interbank.StatusFailed, switchRef, message); err != nil {
			return CallbackResult{}, e.revertAll(ctx, changes, err)
		}

		// Append last: on failure the credit and the finalization both unwind,
		// leaving the record PENDING for the switch's redelivery.
		if _, err := e.ledger.Append(ctx, ledger.Entry{
			ReferenceNumber: ref,
			AccountID:       acct.ID,
			Type:            ledger.TypeDeposit,
			Amount:          rec.Amount,
			BalanceAfter:    newBalance,
			Description:     fmt.Sprintf("Reversal of failed Instapay transfer %s", rec.ReferenceNumber),
		}); err != nil {
			err = e.revertAll(ctx, changes, err)
			if rerr := e.transfers.Reopen(ctx, referenceNumber); rerr != nil {
				err = errors.Join(err, fmt.Errorf("reopen transfer record %s: %w", referenceNumber, rerr))
			}
			return CallbackResult{}, err
		}

		e.notify(ctx, notification.KindReversal, acct.ID, rec.ReferenceNumber,
			fmt.Sprintf("Instapay transfer %s failed; %s returned", rec.ReferenceNumber, rec.Amount.StringFixed(2)))
		return CallbackResult{ReferenceNumber: rec.ReferenceNumber, Status: interbank.StatusFailed}, nil
	}
}

// balanceChange remembers an applied delta so it can be undone if a later
// step of the atomic unit fails.
type balanceChange struct {
	accountID string
	balance   decimal.Decimal // balance after the delta
	delta     decimal.Decimal
}

// applyDelta commits balance+delta through the store's compare-and-set,
// re-reading and retrying when another process raced us. A delta that would
// drive the balance negative fails with InsufficientBalanceError.
func (e *Engine) applyDelta(ctx context.Context, acct account.Account, delta decimal.Decimal) (decimal.Decimal, error) {
	for attempt := 0; attempt < balanceRetries; attempt++ {
		next := acct.Balance.Add(delta)
		if next.IsNegative() {
			return decimal.Decimal{}, &InsufficientBalanceError{Available: acct.Balance}
		}

		err := e.accounts.UpdateBalance(ctx, acct.ID, acct.Balance, next)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, account.ErrBalanceConflict) {
			return decimal.Decimal{}, err
		}

		acct, err = e.accounts.Get(ctx, acct.ID)
		if err != nil {
			return decimal.Decimal{}, err
		}
	}
	return decimal.Decimal{}, account.ErrBalanceConflict
}

// appendOrRevert writes one ledger entry, undoing the given balance changes
// when the append fails so balance and ledger stay consistent.
func (e *Engine) appendOrRevert(ctx context.Context, changes []balanceChange, entry ledger.Entry) (ledger.Entry, error) {
	entries, err := e.ledger.Append(ctx, entry)
	if err != nil {
		return ledger.Entry{}, e.revertAll(ctx, changes, err)
	}
	return entries[0], nil
}

// revertAll undoes balance changes after a failure later in the atomic unit.
// Any restore failure is joined onto the original error so it cannot pass as
// success.
func (e *Engine) revertAll(ctx context.Context, changes []balanceChange, cause error) error {
	for _, ch := range changes {
		if err := e.revert(ctx, ch.accountID, ch.balance, ch.delta.Neg()); err != nil {
			cause = errors.Join(cause, fmt.Errorf("restore balance of account %s: %w", ch.accountID, err))
		}
	}
	return cause
}

func (e *Engine) revert(ctx context.Context, accountID string, current, delta decimal.Decimal) error {
	return e.accounts.UpdateBalance(ctx, accountID, current, current.Add(delta))
}

func (e *Engine) notify(ctx context.Context, kind, accountID, reference, body string) {
	if e.notifier == nil {
		return
	}
	_ = e.notifier.Send(ctx, notification.Message{
		Kind:      kind,
		AccountID: accountID,
		Reference: reference,
		Body:      body,
	})
}

func validateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return &ValidationError{Reason: "amount must be positive"}
	}
	if !amount.Equal(amount.Round(2)) {
		return &ValidationError{Reason: "amount must have at most 2 decimal places"}
	}
	return nil
}

func defaultDescription(desc, fallback string) string {
	if desc == "" {
		return fallback
	}
	return desc
}
