// Package sepa builds the ISO 20022 documents submitted to the SEPA network:
// pain.001 customer credit transfer initiations for SCT batches and pacs.008
// interbank messages for SCT_INST. The canonical XML of a submitted batch is
// persisted alongside the batch record.
package sepa

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

const (
	pain001Namespace = "urn:iso:std:iso:20022:tech:xsd:pain.001.001.09"
	pacs008Namespace = "urn:iso:std:iso:20022:tech:xsd:pacs.008.001.08"
	xsiNamespace     = "http://www.w3.org/2001/XMLSchema-instance"

	// ISO 20022 DateTime / Date layouts.
	isoDateTimeLayout = "2006-01-02T15:04:05"
	isoDateLayout     = "2006-01-02"
)

type Party struct {
	Nm string `xml:"Nm"`
}

type AccountID struct {
	IBAN string `xml:"IBAN"`
}

type CashAccount struct {
	Id AccountID `xml:"Id"`
}

type FinancialInstitution struct {
	BICFI string `xml:"BICFI"`
}

type Agent struct {
	FinInstnId FinancialInstitution `xml:"FinInstnId"`
}

type ActiveAmount struct {
	Ccy   string `xml:"Ccy,attr"`
	Value string `xml:",chardata"`
}

type RemittanceInfo struct {
	Ustrd string `xml:"Ustrd"`
}

type ServiceLevel struct {
	Cd string `xml:"Cd"`
}

type PaymentTypeInfo struct {
	SvcLvl ServiceLevel `xml:"SvcLvl"`
}

// pain.001.001.09: customer credit transfer initiation.

type Pain001Document struct {
	XMLName          xml.Name                 `xml:"Document"`
	Xmlns            string                   `xml:"xmlns,attr"`
	XmlnsXsi         string                   `xml:"xmlns:xsi,attr"`
	CstmrCdtTrfInitn CustomerCreditTransfer   `xml:"CstmrCdtTrfInitn"`
}

type CustomerCreditTransfer struct {
	GrpHdr Pain001GroupHeader `xml:"GrpHdr"`
	PmtInf []PaymentInfo      `xml:"PmtInf"`
}

type Pain001GroupHeader struct {
	MsgId   string `xml:"MsgId"`
	CreDtTm string `xml:"CreDtTm"`
	NbOfTxs int    `xml:"NbOfTxs"`
	CtrlSum string `xml:"CtrlSum"`
	InitgPty Party `xml:"InitgPty"`
}

type PaymentInfo struct {
	PmtInfId    string                    `xml:"PmtInfId"`
	PmtMtd      string                    `xml:"PmtMtd"`
	PmtTpInf    PaymentTypeInfo           `xml:"PmtTpInf"`
	ReqdExctnDt string                    `xml:"ReqdExctnDt"`
	Dbtr        Party                     `xml:"Dbtr"`
	DbtrAcct    CashAccount               `xml:"DbtrAcct"`
	ChrgBr      string                    `xml:"ChrgBr"`
	CdtTrfTxInf []Pain001TransactionInfo  `xml:"CdtTrfTxInf"`
}

type Pain001TransactionInfo struct {
	PmtId  PaymentID       `xml:"PmtId"`
	Amt    InstructedAmount `xml:"Amt"`
	Cdtr   Party           `xml:"Cdtr"`
	CdtrAcct CashAccount   `xml:"CdtrAcct"`
	RmtInf *RemittanceInfo `xml:"RmtInf,omitempty"`
}

type PaymentID struct {
	InstrId    string `xml:"InstrId"`
	EndToEndId string `xml:"EndToEndId"`
}

type InstructedAmount struct {
	InstdAmt ActiveAmount `xml:"InstdAmt"`
}

// pacs.008.001.08: FI-to-FI customer credit transfer.

type Pacs008Document struct {
	XMLName           xml.Name          `xml:"Document"`
	Xmlns             string            `xml:"xmlns,attr"`
	XmlnsXsi          string            `xml:"xmlns:xsi,attr"`
	FIToFICstmrCdtTrf FIToFITransfer    `xml:"FIToFICstmrCdtTrf"`
}

type FIToFITransfer struct {
	GrpHdr      Pacs008GroupHeader       `xml:"GrpHdr"`
	CdtTrfTxInf []Pacs008TransactionInfo `xml:"CdtTrfTxInf"`
}

type Pacs008GroupHeader struct {
	MsgId    string         `xml:"MsgId"`
	CreDtTm  string         `xml:"CreDtTm"`
	NbOfTxs  int            `xml:"NbOfTxs"`
	SttlmInf SettlementInfo `xml:"SttlmInf"`
}

type SettlementInfo struct {
	SttlmMtd string         `xml:"SttlmMtd"`
	ClrSys   ClearingSystem `xml:"ClrSys"`
}

type ClearingSystem struct {
	Prtry string `xml:"Prtry"`
}

type Pacs008TransactionInfo struct {
	PmtId          PaymentID       `xml:"PmtId"`
	IntrBkSttlmAmt ActiveAmount    `xml:"IntrBkSttlmAmt"`
	IntrBkSttlmDt  string          `xml:"IntrBkSttlmDt"`
	ChrgBr         string          `xml:"ChrgBr"`
	Dbtr           Party           `xml:"Dbtr"`
	DbtrAcct       CashAccount     `xml:"DbtrAcct"`
	Cdtr           Party           `xml:"Cdtr"`
	CdtrAcct       CashAccount     `xml:"CdtrAcct"`
	RmtInf         *RemittanceInfo `xml:"RmtInf,omitempty"`
}

// BuildPain001 assembles the initiation document for an SCT batch. One PmtInf
// block per transfer, since debtors within a batch may differ.
func BuildPain001(batch *data.SepaBatch, transfers []data.SepaTransfer, now time.Time) (*Pain001Document, error) {
	if err := validateBatchTransfers(transfers); err != nil {
		return nil, err
	}

	doc := &Pain001Document{
		Xmlns:    pain001Namespace,
		XmlnsXsi: xsiNamespace,
		CstmrCdtTrfInitn: CustomerCreditTransfer{
			GrpHdr: Pain001GroupHeader{
				MsgId:    batch.MessageID,
				CreDtTm:  now.UTC().Format(isoDateTimeLayout),
				NbOfTxs:  len(transfers),
				CtrlSum:  batch.TotalAmount.StringFixed(2),
				InitgPty: Party{Nm: "NORDBANK"},
			},
		},
	}

	for _, transfer := range transfers {
		paymentInfo := PaymentInfo{
			PmtInfId:    transfer.SepaReference,
			PmtMtd:      "TRF",
			PmtTpInf:    PaymentTypeInfo{SvcLvl: ServiceLevel{Cd: "SEPA"}},
			ReqdExctnDt: now.UTC().Format(isoDateLayout),
			Dbtr:        Party{Nm: transfer.DebtorName},
			DbtrAcct:    CashAccount{Id: AccountID{IBAN: transfer.DebtorIBAN}},
			ChrgBr:      "SLEV",
			CdtTrfTxInf: []Pain001TransactionInfo{
				{
					PmtId: PaymentID{InstrId: transfer.SepaReference, EndToEndId: transfer.SepaReference},
					Amt: InstructedAmount{
						InstdAmt: ActiveAmount{Ccy: transfer.Currency, Value: transfer.Amount.StringFixed(2)},
					},
					Cdtr:     Party{Nm: transfer.CreditorName},
					CdtrAcct: CashAccount{Id: AccountID{IBAN: transfer.CreditorIBAN}},
					RmtInf:   remittanceInfo(transfer.RemittanceInfo),
				},
			},
		}

		doc.CstmrCdtTrfInitn.PmtInf = append(doc.CstmrCdtTrfInitn.PmtInf, paymentInfo)
	}

	return doc, nil
}

// BuildPacs008 assembles the interbank document for an SCT_INST batch.
func BuildPacs008(batch *data.SepaBatch, transfers []data.SepaTransfer, now time.Time) (*Pacs008Document, error) {
	if err := validateBatchTransfers(transfers); err != nil {
		return nil, err
	}

	doc := &Pacs008Document{
		Xmlns:    pacs008Namespace,
		XmlnsXsi: xsiNamespace,
		FIToFICstmrCdtTrf: FIToFITransfer{
			GrpHdr: Pacs008GroupHeader{
				MsgId:   batch.MessageID,
				CreDtTm: now.UTC().Format(isoDateTimeLayout),
				NbOfTxs: len(transfers),
				SttlmInf: SettlementInfo{
					SttlmMtd: "CLRG",
					ClrSys:   ClearingSystem{Prtry: "ST2"},
				},
			},
		},
	}

	for _, transfer := range transfers {
		doc.FIToFICstmrCdtTrf.CdtTrfTxInf = append(doc.FIToFICstmrCdtTrf.CdtTrfTxInf, Pacs008TransactionInfo{
			PmtId:          PaymentID{InstrId: transfer.SepaReference, EndToEndId: transfer.SepaReference},
			IntrBkSttlmAmt: ActiveAmount{Ccy: transfer.Currency, Value: transfer.Amount.StringFixed(2)},
			IntrBkSttlmDt:  now.UTC().Format(isoDateLayout),
			ChrgBr:         "SLEV",
			Dbtr:           Party{Nm: transfer.DebtorName},
			DbtrAcct:       CashAccount{Id: AccountID{IBAN: transfer.DebtorIBAN}},
			Cdtr:           Party{Nm: transfer.CreditorName},
			CdtrAcct:       CashAccount{Id: AccountID{IBAN: transfer.CreditorIBAN}},
			RmtInf:         remittanceInfo(transfer.RemittanceInfo),
		})
	}

	return doc, nil
}

// BuildBatchDocument picks the document type for the batch scheme and returns
// its canonical XML.
func BuildBatchDocument(batch *data.SepaBatch, transfers []data.SepaTransfer, now time.Time) (string, error) {
	switch batch.BatchType {
	case data.SctBatchType:
		doc, err := BuildPain001(batch, transfers, now)
		if err != nil {
			return "", fmt.Errorf("building pain.001 for batch %s: %w", batch.MessageID, err)
		}
		return MarshalCanonical(doc)
	case data.SctInstBatchType:
		doc, err := BuildPacs008(batch, transfers, now)
		if err != nil {
			return "", fmt.Errorf("building pacs.008 for batch %s: %w", batch.MessageID, err)
		}
		return MarshalCanonical(doc)
	default:
		return "", fmt.Errorf("no credit transfer document for batch type %s", batch.BatchType)
	}
}

// MarshalCanonical renders the document with the XML prolog and stable
// two-space indentation, so the persisted bytes are diffable.
func MarshalCanonical(doc any) (string, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshalling ISO 20022 document: %w", err)
	}

	return xml.Header + string(body) + "\n", nil
}

func validateBatchTransfers(transfers []data.SepaTransfer) error {
	if len(transfers) == 0 {
		return fmt.Errorf("batch has no transfers")
	}

	for _, transfer := range transfers {
		if err := utils.ValidateIBAN(transfer.DebtorIBAN); err != nil {
			return fmt.Errorf("transfer %s debtor IBAN: %w", transfer.SepaReference, err)
		}
		if err := utils.ValidateIBAN(transfer.CreditorIBAN); err != nil {
			return fmt.Errorf("transfer %s creditor IBAN: %w", transfer.SepaReference, err)
		}
		if !transfer.Amount.IsPositive() {
			return fmt.Errorf("transfer %s amount must be positive", transfer.SepaReference)
		}
	}

	return nil
}

func remittanceInfo(ustrd *string) *RemittanceInfo {
	if ustrd == nil || *ustrd == "" {
		return nil
	}
	return &RemittanceInfo{Ustrd: utils.ClampString(*ustrd, 140)}
}
