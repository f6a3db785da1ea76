package statemachine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/schoolledger/ledger-api/internal/models"
)

// Account status events
const (
	EventActivate   = "activate"
	EventDeactivate = "deactivate"
)

// AccountFSM wraps a bank account with its status machine
type AccountFSM struct {
	account *models.BankAccount
	fsm     *fsm.FSM
}

// NewAccountFSM creates a new bank account state machine
func NewAccountFSM(account *models.BankAccount) *AccountFSM {
	afsm := &AccountFSM{
		account: account,
	}

	afsm.fsm = fsm.NewFSM(
		account.Status,
		fsm.Events{
			// inactive → active
			{Name: EventActivate, Src: []string{models.AccountStatusInactive}, Dst: models.AccountStatusActive},

			// active → inactive
			{Name: EventDeactivate, Src: []string{models.AccountStatusActive}, Dst: models.AccountStatusInactive},
		},
		fsm.Callbacks{},
	)

	return afsm
}

// Activate transitions the account to active
func (a *AccountFSM) Activate(ctx context.Context) error {
	if err := a.fsm.Event(ctx, EventActivate); err != nil {
		return fmt.Errorf("account cannot be activated in current state %s: %w", a.account.Status, err)
	}

	a.account.Status = a.fsm.Current()
	return nil
}

// Deactivate transitions the account to inactive
func (a *AccountFSM) Deactivate(ctx context.Context) error {
	if err := a.fsm.Event(ctx, EventDeactivate); err != nil {
		return fmt.Errorf("account cannot be deactivated in current state %s: %w", a.account.Status, err)
	}

	a.account.Status = a.fsm.Current()
	return nil
}

// Can checks if a transition is possible
func (a *AccountFSM) Can(event string) bool {
	return a.fsm.Can(event)
}
