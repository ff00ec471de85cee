package swift

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

func testSwiftTransfer() *data.SwiftTransfer {
	return &data.SwiftTransfer{
		TransactionReference: "SWF-20260115-001",
		SenderBIC:            "DEUTDEFF",
		ReceiverBIC:          "CHASUS33",
		OrderingCustomer:     "Astrid Berg",
		Beneficiary:          "John Smith",
		BeneficiaryBankBIC:   "CHASUS33XXX",
		Amount:               decimal.RequireFromString("10000.00"),
		Currency:             "USD",
		ChargeType:           data.ShaChargeType,
		ValueDate:            time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func Test_BuildMT103(t *testing.T) {
	transfer := testSwiftTransfer()

	message, err := BuildMT103(transfer)
	require.NoError(t, err)

	assert.Contains(t, message, "{1:F01DEUTDEFFXXX0000000000}")
	assert.Contains(t, message, "{2:I103CHASUS33XXXN}")
	assert.Contains(t, message, "{3:{108:MT103}}")
	assert.Contains(t, message, ":20:SWF-20260115-001")
	assert.Contains(t, message, ":23B:CRED")
	assert.Contains(t, message, ":32A:260115USD10000,00")
	assert.Contains(t, message, ":50K:ASTRID BERG")
	assert.Contains(t, message, ":52A:DEUTDEFFXXX")
	assert.Contains(t, message, ":57A:CHASUS33XXX")
	assert.Contains(t, message, ":59:JOHN SMITH")
	assert.Contains(t, message, ":71A:SHA")
	assert.Contains(t, message, "{5:{CHK:")
	assert.NotContains(t, message, ":53A:")
	assert.NotContains(t, message, ":70:")
}

func Test_BuildMT103_optionalFields(t *testing.T) {
	transfer := testSwiftTransfer()
	transfer.CorrespondentBIC = utils.StringPtr("BNPAFRPP")
	transfer.RemittanceInfo = utils.StringPtr("Invoice n°42, machine parts")

	message, err := BuildMT103(transfer)
	require.NoError(t, err)

	assert.Contains(t, message, ":53A:BNPAFRPPXXX")
	// non-SWIFT characters are folded to spaces, the rest uppercased
	assert.Contains(t, message, ":70:INVOICE N 42, MACHINE PARTS")
}

func Test_BuildMT103_truncatesOverlongFields(t *testing.T) {
	transfer := testSwiftTransfer()
	transfer.TransactionReference = "SWF-20260115-001-EXTRA-LONG"
	transfer.Beneficiary = strings.Repeat("A", 200)

	message, err := BuildMT103(transfer)
	require.NoError(t, err)

	assert.Contains(t, message, ":20:SWF-20260115-001\n")
	assert.Contains(t, message, ":59:"+strings.Repeat("A", 140)+"\n")
}

func Test_BuildMT103_validation(t *testing.T) {
	t.Run("invalid sender BIC", func(t *testing.T) {
		transfer := testSwiftTransfer()
		transfer.SenderBIC = "NOPE"

		_, err := BuildMT103(transfer)
		assert.ErrorContains(t, err, "sender BIC")
	})

	t.Run("missing reference", func(t *testing.T) {
		transfer := testSwiftTransfer()
		transfer.TransactionReference = ""

		_, err := BuildMT103(transfer)
		assert.ErrorContains(t, err, "transaction reference is required")
	})

	t.Run("non-positive amount", func(t *testing.T) {
		transfer := testSwiftTransfer()
		transfer.Amount = decimal.Zero

		_, err := BuildMT103(transfer)
		assert.ErrorContains(t, err, "amount must be positive")
	})

	t.Run("invalid charge type", func(t *testing.T) {
		transfer := testSwiftTransfer()
		transfer.ChargeType = "ALL"

		_, err := BuildMT103(transfer)
		assert.ErrorContains(t, err, "invalid swift charge type")
	})
}

func Test_ParseMT103_roundTrip(t *testing.T) {
	transfer := testSwiftTransfer()
	transfer.CorrespondentBIC = utils.StringPtr("BNPAFRPP")
	transfer.RemittanceInfo = utils.StringPtr("INVOICE 42")

	message, err := BuildMT103(transfer)
	require.NoError(t, err)

	parsed, err := ParseMT103(message)
	require.NoError(t, err)

	assert.Equal(t, "DEUTDEFFXXX", parsed.SenderBIC)
	assert.Equal(t, "CHASUS33XXX", parsed.ReceiverBIC)
	assert.Equal(t, "SWF-20260115-001", parsed.Reference)
	assert.Equal(t, "CRED", parsed.OperationCode)
	assert.Equal(t, transfer.ValueDate, parsed.ValueDate)
	assert.Equal(t, "USD", parsed.Currency)
	assert.True(t, parsed.Amount.Equal(transfer.Amount), "amount %s", parsed.Amount)
	assert.Equal(t, "ASTRID BERG", parsed.OrderingCustomer)
	assert.Equal(t, "BNPAFRPPXXX", parsed.CorrespondentBIC)
	assert.Equal(t, "CHASUS33XXX", parsed.BeneficiaryBankBIC)
	assert.Equal(t, "JOHN SMITH", parsed.Beneficiary)
	assert.Equal(t, "INVOICE 42", parsed.RemittanceInfo)
	assert.Equal(t, "SHA", parsed.ChargeType)
}

func Test_ParseMT103_malformedMessages(t *testing.T) {
	testCases := []struct {
		name            string
		message         string
		wantErrContains string
	}{
		{name: "empty", message: "", wantErrContains: "missing basic header block"},
		{name: "no application header", message: "{1:F01DEUTDEFFXXX0000000000}", wantErrContains: "missing application header block"},
		{name: "no text block", message: "{1:F01DEUTDEFFXXX0000000000}{2:I103CHASUS33XXXN}", wantErrContains: "missing text block"},
		{
			name:            "no reference",
			message:         "{1:F01DEUTDEFFXXX0000000000}{2:I103CHASUS33XXXN}{4:\n:23B:CRED\n-}",
			wantErrContains: "missing :20:",
		},
		{
			name:            "no 32A",
			message:         "{1:F01DEUTDEFFXXX0000000000}{2:I103CHASUS33XXXN}{4:\n:20:REF\n-}",
			wantErrContains: "missing :32A:",
		},
		{
			name:            "bad 32A date",
			message:         "{1:F01DEUTDEFFXXX0000000000}{2:I103CHASUS33XXXN}{4:\n:20:REF\n:32A:99ZZ99USD1,00\n-}",
			wantErrContains: "parsing :32A: value date",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseMT103(tc.message)
			assert.ErrorContains(t, err, tc.wantErrContains)
		})
	}
}
