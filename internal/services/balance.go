package services

import (
	"github.com/schoolledger/ledger-api/internal/models"
	"github.com/shopspring/decimal"
)

// BalanceDelta returns the signed change a ledger entry of the given category
// applies to its linked account. The boolean is false for categories that
// never touch a balance.
func BalanceDelta(category models.Category, amount decimal.Decimal) (decimal.Decimal, bool) {
	switch category {
	case models.CategoryIncome:
		return amount, true
	case models.CategoryExpense, models.CategorySalary:
		return amount.Neg(), true
	case models.CategoryBanks, models.CategoryOther:
		return decimal.Zero, false
	}
	return decimal.Zero, false
}

// operationDelta is the signed change a bank operation applies to the account
// named in the ledger entry it generates. Transfers are reported from the
// source account's side.
func operationDelta(entryType string, amount decimal.Decimal) decimal.Decimal {
	switch entryType {
	case models.EntryTypeDeposit:
		return amount
	case models.EntryTypeWithdrawal, models.EntryTypeTransfer:
		return amount.Neg()
	}
	return decimal.Zero
}

// LedgerNet sums the balance effect every entry has had on accountID
func LedgerNet(accountID uint, entries []models.LedgerEntry) decimal.Decimal {
	net := decimal.Zero
	for _, entry := range entries {
		if entry.Category.Normalize() == models.CategoryBanks {
			if entry.AccountID != nil && *entry.AccountID == accountID {
				net = net.Add(operationDelta(entry.EntryType, entry.Amount))
			}
			if entry.EntryType == models.EntryTypeTransfer && entry.ToAccountID != nil && *entry.ToAccountID == accountID {
				net = net.Add(entry.Amount)
			}
			continue
		}
		if entry.AccountID == nil || *entry.AccountID != accountID {
			continue
		}
		if delta, ok := BalanceDelta(entry.Category.Normalize(), entry.Amount); ok {
			net = net.Add(delta)
		}
	}
	return net
}
