package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/db/dbtest"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

func setupReportService(t *testing.T) (*RegulatoryReportService, *data.Models) {
	t.Helper()

	testDB := dbtest.OpenWithBankingMigrationsOnly(t)
	dbConnectionPool, err := db.OpenDBConnectionPool(testDB.DSN)
	require.NoError(t, err)
	t.Cleanup(func() { dbConnectionPool.Close() })

	models, err := data.NewModels(dbConnectionPool)
	require.NoError(t, err)

	reportService, err := NewRegulatoryReportService(RegulatoryReportServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
		Clock:            utils.FixedClock{Time: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	return reportService, models
}

func Test_RegulatoryReportService_CreateReport(t *testing.T) {
	ctx := context.Background()
	reportService, models := setupReportService(t)

	t.Run("standalone CTR", func(t *testing.T) {
		report, err := reportService.CreateReport(ctx, data.CtrReportType, nil, "cash deposit over reporting threshold", "analyst.svensson")
		require.NoError(t, err)

		assert.Contains(t, report.ReportNumber, "CTR-")
		assert.Equal(t, data.DraftReportStatus, report.Status)
		assert.Nil(t, report.CaseID)
	})

	t.Run("SAR bound to a case", func(t *testing.T) {
		customer := data.CreateCustomerFixture(t, ctx, models.DBConnectionPool)
		amlCase := data.CreateAmlCaseFixture(t, ctx, models.DBConnectionPool, customer.ID, data.HighAmlCasePriority, time.Now().Add(72*time.Hour))

		report, err := reportService.CreateReport(ctx, data.SarReportType, &amlCase.CaseNumber, "structuring pattern across three accounts", "analyst.svensson")
		require.NoError(t, err)

		require.NotNil(t, report.CaseID)
		assert.Equal(t, amlCase.ID, *report.CaseID)
	})

	t.Run("unknown case number", func(t *testing.T) {
		_, err := reportService.CreateReport(ctx, data.SarReportType, utils.StringPtr("CASE-0000000000"), "narrative", "analyst.svensson")
		assert.ErrorIs(t, err, data.ErrRecordNotFound)
	})
}

func Test_RegulatoryReportService_fourEyes(t *testing.T) {
	ctx := context.Background()
	reportService, _ := setupReportService(t)

	report, err := reportService.CreateReport(ctx, data.StrReportType, nil, "unusual wire pattern", "analyst.svensson")
	require.NoError(t, err)

	_, err = reportService.SubmitForReview(ctx, report.ReportNumber)
	require.NoError(t, err)

	t.Run("preparer cannot review", func(t *testing.T) {
		_, err := reportService.Review(ctx, report.ReportNumber, "analyst.svensson", true, nil)
		assert.ErrorContains(t, err, "cannot review their own report")
	})

	reviewed, err := reportService.Review(ctx, report.ReportNumber, "reviewer.berg", true, nil)
	require.NoError(t, err)
	assert.Equal(t, data.PendingApprovalReportStatus, reviewed.Status)

	t.Run("preparer cannot approve", func(t *testing.T) {
		_, err := reportService.Approve(ctx, report.ReportNumber, "analyst.svensson")
		assert.ErrorContains(t, err, "cannot approve their own report")
	})

	t.Run("reviewer cannot approve", func(t *testing.T) {
		_, err := reportService.Approve(ctx, report.ReportNumber, "reviewer.berg")
		assert.ErrorContains(t, err, "cannot approve a report they reviewed")
	})

	approved, err := reportService.Approve(ctx, report.ReportNumber, "manager.larsen")
	require.NoError(t, err)
	assert.Equal(t, data.ApprovedReportStatus, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "manager.larsen", *approved.ApprovedBy)
}

func Test_RegulatoryReportService_rejectionRework(t *testing.T) {
	ctx := context.Background()
	reportService, _ := setupReportService(t)

	report, err := reportService.CreateReport(ctx, data.SarReportType, nil, "draft narrative", "analyst.svensson")
	require.NoError(t, err)
	_, err = reportService.SubmitForReview(ctx, report.ReportNumber)
	require.NoError(t, err)

	rejected, err := reportService.Review(ctx, report.ReportNumber, "reviewer.berg", false, utils.StringPtr("narrative lacks counterparty details"))
	require.NoError(t, err)
	assert.Equal(t, data.RejectedReportStatus, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "narrative lacks counterparty details", *rejected.RejectionReason)

	draft, err := reportService.ReturnToDraft(ctx, report.ReportNumber)
	require.NoError(t, err)
	assert.Equal(t, data.DraftReportStatus, draft.Status)

	updated, err := reportService.UpdateNarrative(ctx, report.ReportNumber, "expanded narrative with counterparty details")
	require.NoError(t, err)
	assert.Equal(t, "expanded narrative with counterparty details", updated.Narrative)

	resubmitted, err := reportService.SubmitForReview(ctx, report.ReportNumber)
	require.NoError(t, err)
	assert.Equal(t, data.PendingReviewReportStatus, resubmitted.Status)

	t.Run("narrative is frozen outside draft", func(t *testing.T) {
		_, err := reportService.UpdateNarrative(ctx, report.ReportNumber, "late edit")
		assert.ErrorContains(t, err, "can only change while in draft")
	})
}

func Test_RegulatoryReportService_FileReport(t *testing.T) {
	ctx := context.Background()
	reportService, models := setupReportService(t)
	customer := data.CreateCustomerFixture(t, ctx, models.DBConnectionPool)
	amlCase := data.CreateAmlCaseFixture(t, ctx, models.DBConnectionPool, customer.ID, data.CriticalAmlCasePriority, time.Now().Add(24*time.Hour))

	report, err := reportService.CreateReport(ctx, data.SarReportType, &amlCase.CaseNumber, "confirmed layering through shell accounts", "analyst.svensson")
	require.NoError(t, err)
	_, err = reportService.SubmitForReview(ctx, report.ReportNumber)
	require.NoError(t, err)
	_, err = reportService.Review(ctx, report.ReportNumber, "reviewer.berg", true, nil)
	require.NoError(t, err)
	_, err = reportService.Approve(ctx, report.ReportNumber, "manager.larsen")
	require.NoError(t, err)

	filed, err := reportService.FileReport(ctx, report.ReportNumber)
	require.NoError(t, err)
	assert.Equal(t, data.FiledReportStatus, filed.Status)
	assert.NotNil(t, filed.FiledAt)

	t.Run("the originating case carries the filing", func(t *testing.T) {
		updatedCase, err := models.AmlCases.GetByCaseNumber(ctx, models.DBConnectionPool, amlCase.CaseNumber)
		require.NoError(t, err)
		assert.True(t, updatedCase.SarFiled)
		require.NotNil(t, updatedCase.SarReportID)
		assert.Equal(t, filed.ID, *updatedCase.SarReportID)
		assert.NotNil(t, updatedCase.SarFiledAt)
	})

	t.Run("a draft cannot be filed", func(t *testing.T) {
		draft, err := reportService.CreateReport(ctx, data.CtrReportType, nil, "cash report", "analyst.svensson")
		require.NoError(t, err)

		_, err = reportService.FileReport(ctx, draft.ReportNumber)
		assert.ErrorContains(t, err, "cannot transition from DRAFT to FILED")
	})

	acknowledged, err := reportService.Acknowledge(ctx, report.ReportNumber)
	require.NoError(t, err)
	assert.Equal(t, data.AcknowledgedReportStatus, acknowledged.Status)
	assert.NotNil(t, acknowledged.AcknowledgedAt)
}
