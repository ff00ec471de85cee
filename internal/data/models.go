package data

import (
	"errors"

	"github.com/nordbank/banking-platform-backend/db"
)

var (
	ErrRecordNotFound          = errors.New("record not found")
	ErrRecordAlreadyExists     = errors.New("record already exists")
	ErrMismatchNumRowsAffected = errors.New("mismatch number of rows affected")
	ErrMissingInput            = errors.New("missing input")
	// ErrStaleVersion signals an optimistic-lock conflict: the row changed
	// between read and write. Callers retry up to their K budget.
	ErrStaleVersion = errors.New("stale aggregate version")
)

type Models struct {
	Accounts              *AccountModel
	PostingLines          *PostingLineModel
	Transfers             *TransferModel
	SagaRecords           *SagaRecordModel
	Outbox                *OutboxModel
	SepaMandates          *SepaMandateModel
	SepaBatches           *SepaBatchModel
	SepaTransfers         *SepaTransferModel
	SepaReturns           *SepaReturnModel
	SwiftTransfers        *SwiftTransferModel
	AmlRules              *AmlRuleModel
	MonitoredTransactions *MonitoredTransactionModel
	AmlAlerts             *AmlAlertModel
	AmlCases              *AmlCaseModel
	RegulatoryReports     *RegulatoryReportModel
	Sanctions             *SanctionModel
	Customers             *CustomerModel
	DBConnectionPool      db.DBConnectionPool
}

func NewModels(dbConnectionPool db.DBConnectionPool) (*Models, error) {
	if dbConnectionPool == nil {
		return nil, errors.New("dbConnectionPool is required for NewModels")
	}
	return &Models{
		Accounts:              &AccountModel{dbConnectionPool: dbConnectionPool},
		PostingLines:          &PostingLineModel{dbConnectionPool: dbConnectionPool},
		Transfers:             &TransferModel{dbConnectionPool: dbConnectionPool},
		SagaRecords:           &SagaRecordModel{dbConnectionPool: dbConnectionPool},
		Outbox:                &OutboxModel{dbConnectionPool: dbConnectionPool},
		SepaMandates:          &SepaMandateModel{dbConnectionPool: dbConnectionPool},
		SepaBatches:           &SepaBatchModel{dbConnectionPool: dbConnectionPool},
		SepaTransfers:         &SepaTransferModel{dbConnectionPool: dbConnectionPool},
		SepaReturns:           &SepaReturnModel{dbConnectionPool: dbConnectionPool},
		SwiftTransfers:        &SwiftTransferModel{dbConnectionPool: dbConnectionPool},
		AmlRules:              &AmlRuleModel{dbConnectionPool: dbConnectionPool},
		MonitoredTransactions: &MonitoredTransactionModel{dbConnectionPool: dbConnectionPool},
		AmlAlerts:             &AmlAlertModel{dbConnectionPool: dbConnectionPool},
		AmlCases:              &AmlCaseModel{dbConnectionPool: dbConnectionPool},
		RegulatoryReports:     &RegulatoryReportModel{dbConnectionPool: dbConnectionPool},
		Sanctions:             &SanctionModel{dbConnectionPool: dbConnectionPool},
		Customers:             &CustomerModel{dbConnectionPool: dbConnectionPool},
		DBConnectionPool:      dbConnectionPool,
	}, nil
}
