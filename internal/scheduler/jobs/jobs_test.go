package jobs

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPumper struct {
	published int
	err       error
	calls     int
}

func (s *stubPumper) Pump(ctx context.Context) (int, error) {
	s.calls++
	return s.published, s.err
}

func Test_OutboxPumpJob_Execute(t *testing.T) {
	pumper := &stubPumper{published: 3}
	job := NewOutboxPumpJob(pumper, 5)

	require.Equal(t, "outbox_pump", job.GetName())
	err := job.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pumper.calls)

	pumper.err = fmt.Errorf("broker unreachable")
	err = job.Execute(context.Background())
	assert.ErrorContains(t, err, "pumping outbox rows: broker unreachable")
}

type stubExpirer struct {
	expired int
	err     error
}

func (s *stubExpirer) ExpireStaleMandates(ctx context.Context) (int, error) {
	return s.expired, s.err
}

func Test_MandateExpiryJob_Execute(t *testing.T) {
	job := NewMandateExpiryJob(&stubExpirer{expired: 2}, 60)

	require.Equal(t, "sepa_mandate_expiry", job.GetName())
	require.NoError(t, job.Execute(context.Background()))

	failing := NewMandateExpiryJob(&stubExpirer{err: fmt.Errorf("boom")}, 60)
	assert.ErrorContains(t, failing.Execute(context.Background()), "expiring stale mandates: boom")
}

type stubSweeper struct {
	breached int
	err      error
}

func (s *stubSweeper) SweepOverdueCases(ctx context.Context) (int, error) {
	return s.breached, s.err
}

func Test_AmlCaseSlaJob_Execute(t *testing.T) {
	job := NewAmlCaseSlaJob(&stubSweeper{breached: 1}, 30)

	require.Equal(t, "aml_case_sla_sweep", job.GetName())
	require.NoError(t, job.Execute(context.Background()))

	failing := NewAmlCaseSlaJob(&stubSweeper{err: fmt.Errorf("boom")}, 30)
	assert.ErrorContains(t, failing.Execute(context.Background()), "sweeping overdue aml cases: boom")
}
