package sepa

import (
	"encoding/xml"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

var testNow = time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)

func testBatchAndTransfers(batchType data.SepaBatchType) (*data.SepaBatch, []data.SepaTransfer) {
	batch := &data.SepaBatch{
		MessageID:            "MSG-20260210-001",
		BatchType:            batchType,
		NumberOfTransactions: 2,
		TotalAmount:          decimal.RequireFromString("350.50"),
	}

	transfers := []data.SepaTransfer{
		{
			SepaReference: "SEPA-1",
			DebtorIBAN:    "DE89370400440532013000",
			CreditorIBAN:  "FR1420041010050500013M02606",
			DebtorName:    "Astrid Berg",
			CreditorName:  "Jean Dupont",
			Amount:        decimal.RequireFromString("200.50"),
			Currency:      "EUR",
			RemittanceInfo: utils.StringPtr("Invoice 42"),
		},
		{
			SepaReference: "SEPA-2",
			DebtorIBAN:    "DE89370400440532013000",
			CreditorIBAN:  "NL91ABNA0417164300",
			DebtorName:    "Astrid Berg",
			CreditorName:  "Jan de Vries",
			Amount:        decimal.RequireFromString("150.00"),
			Currency:      "EUR",
		},
	}

	return batch, transfers
}

func Test_BuildPain001(t *testing.T) {
	batch, transfers := testBatchAndTransfers(data.SctBatchType)

	doc, err := BuildPain001(batch, transfers, testNow)
	require.NoError(t, err)

	assert.Equal(t, pain001Namespace, doc.Xmlns)
	assert.Equal(t, "MSG-20260210-001", doc.CstmrCdtTrfInitn.GrpHdr.MsgId)
	assert.Equal(t, "2026-02-10T09:30:00", doc.CstmrCdtTrfInitn.GrpHdr.CreDtTm)
	assert.Equal(t, 2, doc.CstmrCdtTrfInitn.GrpHdr.NbOfTxs)
	assert.Equal(t, "350.50", doc.CstmrCdtTrfInitn.GrpHdr.CtrlSum)
	require.Len(t, doc.CstmrCdtTrfInitn.PmtInf, 2)

	first := doc.CstmrCdtTrfInitn.PmtInf[0]
	assert.Equal(t, "TRF", first.PmtMtd)
	assert.Equal(t, "SEPA", first.PmtTpInf.SvcLvl.Cd)
	assert.Equal(t, "SLEV", first.ChrgBr)
	assert.Equal(t, "DE89370400440532013000", first.DbtrAcct.Id.IBAN)
	require.Len(t, first.CdtTrfTxInf, 1)
	assert.Equal(t, "200.50", first.CdtTrfTxInf[0].Amt.InstdAmt.Value)
	assert.Equal(t, "EUR", first.CdtTrfTxInf[0].Amt.InstdAmt.Ccy)
	require.NotNil(t, first.CdtTrfTxInf[0].RmtInf)
	assert.Equal(t, "Invoice 42", first.CdtTrfTxInf[0].RmtInf.Ustrd)

	// the second transfer has no remittance info
	assert.Nil(t, doc.CstmrCdtTrfInitn.PmtInf[1].CdtTrfTxInf[0].RmtInf)
}

func Test_BuildPacs008(t *testing.T) {
	batch, transfers := testBatchAndTransfers(data.SctInstBatchType)

	doc, err := BuildPacs008(batch, transfers, testNow)
	require.NoError(t, err)

	assert.Equal(t, pacs008Namespace, doc.Xmlns)
	assert.Equal(t, "CLRG", doc.FIToFICstmrCdtTrf.GrpHdr.SttlmInf.SttlmMtd)
	assert.Equal(t, "ST2", doc.FIToFICstmrCdtTrf.GrpHdr.SttlmInf.ClrSys.Prtry)
	require.Len(t, doc.FIToFICstmrCdtTrf.CdtTrfTxInf, 2)

	tx := doc.FIToFICstmrCdtTrf.CdtTrfTxInf[0]
	assert.Equal(t, "SEPA-1", tx.PmtId.EndToEndId)
	assert.Equal(t, "200.50", tx.IntrBkSttlmAmt.Value)
	assert.Equal(t, "2026-02-10", tx.IntrBkSttlmDt)
	assert.Equal(t, "FR1420041010050500013M02606", tx.CdtrAcct.Id.IBAN)
}

func Test_BuildBatchDocument(t *testing.T) {
	t.Run("SCT batches render pain.001", func(t *testing.T) {
		batch, transfers := testBatchAndTransfers(data.SctBatchType)

		canonicalXML, err := BuildBatchDocument(batch, transfers, testNow)
		require.NoError(t, err)
		assert.Contains(t, canonicalXML, xml.Header)
		assert.Contains(t, canonicalXML, pain001Namespace)
		assert.Contains(t, canonicalXML, "<CstmrCdtTrfInitn>")

		var doc Pain001Document
		require.NoError(t, xml.Unmarshal([]byte(canonicalXML), &doc))
	})

	t.Run("SCT_INST batches render pacs.008", func(t *testing.T) {
		batch, transfers := testBatchAndTransfers(data.SctInstBatchType)

		canonicalXML, err := BuildBatchDocument(batch, transfers, testNow)
		require.NoError(t, err)
		assert.Contains(t, canonicalXML, pacs008Namespace)
		assert.Contains(t, canonicalXML, "<FIToFICstmrCdtTrf>")
	})

	t.Run("direct debit batch types are rejected", func(t *testing.T) {
		batch, transfers := testBatchAndTransfers(data.SddCoreBatchType)

		_, err := BuildBatchDocument(batch, transfers, testNow)
		assert.ErrorContains(t, err, "no credit transfer document for batch type SDD_CORE")
	})
}

func Test_BuildPain001_validation(t *testing.T) {
	batch, transfers := testBatchAndTransfers(data.SctBatchType)

	t.Run("empty batch", func(t *testing.T) {
		_, err := BuildPain001(batch, nil, testNow)
		assert.ErrorContains(t, err, "batch has no transfers")
	})

	t.Run("invalid IBAN", func(t *testing.T) {
		broken := make([]data.SepaTransfer, len(transfers))
		copy(broken, transfers)
		broken[0].DebtorIBAN = "NOT-AN-IBAN"

		_, err := BuildPain001(batch, broken, testNow)
		assert.ErrorContains(t, err, "debtor IBAN")
	})

	t.Run("non-positive amount", func(t *testing.T) {
		broken := make([]data.SepaTransfer, len(transfers))
		copy(broken, transfers)
		broken[1].Amount = decimal.Zero

		_, err := BuildPain001(batch, broken, testNow)
		assert.ErrorContains(t, err, "amount must be positive")
	})
}
