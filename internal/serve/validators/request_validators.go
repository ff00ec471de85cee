package validators

import (
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/internal/utils"
)

// AccountValidator validates ledger account requests.
type AccountValidator struct {
	*Validator
}

func NewAccountValidator() *AccountValidator {
	return &AccountValidator{Validator: NewValidator()}
}

func (v *AccountValidator) ValidateOpenRequest(customerID, currency, accountType string, initialBalance decimal.Decimal) {
	v.Check(customerID != "", "customer_id", "customer_id is required")
	v.ValidateCurrency(currency)
	accountType = strings.ToUpper(strings.TrimSpace(accountType))
	v.Check(accountType == "CHECKING" || accountType == "SAVINGS", "account_type", "account_type must be CHECKING or SAVINGS")
	v.Check(!initialBalance.IsNegative(), "initial_balance", "initial_balance cannot be negative")
}

func (v *AccountValidator) ValidatePostingRequest(amount decimal.Decimal, referenceID string) {
	v.Check(amount.IsPositive(), "amount", "amount must be greater than 0")
	v.Check(referenceID != "", "reference_id", "reference_id is required")
}

func (v *AccountValidator) ValidateCurrency(currency string) {
	v.Check(len(currency) == 3 && govalidator.IsUpperCase(currency) && govalidator.IsAlpha(currency),
		"currency", "currency must be a 3-letter ISO 4217 code")
}

// TransferValidator validates internal transfer requests.
type TransferValidator struct {
	*Validator
}

func NewTransferValidator() *TransferValidator {
	return &TransferValidator{Validator: NewValidator()}
}

func (v *TransferValidator) ValidateInitiateRequest(fromAccount, toAccount, currency string, amount decimal.Decimal) {
	v.Check(fromAccount != "", "from_account_number", "from_account_number is required")
	v.Check(toAccount != "", "to_account_number", "to_account_number is required")
	v.Check(fromAccount == "" || toAccount == "" || fromAccount != toAccount,
		"to_account_number", "source and destination accounts must differ")
	v.Check(amount.IsPositive(), "amount", "amount must be greater than 0")
	v.Check(len(currency) == 3, "currency", "currency must be a 3-letter ISO 4217 code")
}

// CustomerValidator validates customer registration requests.
type CustomerValidator struct {
	*Validator
}

func NewCustomerValidator() *CustomerValidator {
	return &CustomerValidator{Validator: NewValidator()}
}

func (v *CustomerValidator) ValidateRegisterRequest(firstName, lastName, email string) {
	v.Check(firstName != "", "first_name", "first_name is required")
	v.Check(lastName != "", "last_name", "last_name is required")
	v.CheckError(utils.ValidateEmail(email), "email", "")
}

// IBANValidator validates SEPA party identifiers.
type IBANValidator struct {
	*Validator
}

func NewIBANValidator() *IBANValidator {
	return &IBANValidator{Validator: NewValidator()}
}

func (v *IBANValidator) ValidateIBAN(key, iban string) {
	v.CheckError(utils.ValidateIBAN(iban), key, "")
}
