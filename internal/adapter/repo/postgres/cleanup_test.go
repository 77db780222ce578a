package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"comradarr/internal/adapter/repo/postgres"
)

// execPoolStub implements postgres.PgxPool, recording every Exec call and
// returning configured errors in sequence.
type execPoolStub struct {
	errs  []error
	calls int
}

func (p *execPoolStub) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	var err error
	if p.calls < len(p.errs) {
		err = p.errs[p.calls]
	}
	p.calls++
	return pgconn.CommandTag{}, err
}

func (p *execPoolStub) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return rowStub{scan: func(_ ...any) error { return errors.New("not used by cleanup") }}
}

func (p *execPoolStub) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, errors.New("not used by cleanup")
}

func (p *execPoolStub) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return nil, errors.New("not used by cleanup")
}

func TestCleanupService_CleanupOldData_OK(t *testing.T) {
	p := &execPoolStub{}
	svc := postgres.NewCleanupService(p, 1)
	if err := svc.CleanupOldData(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if p.calls != 2 {
		t.Fatalf("expected 2 exec calls, got %d", p.calls)
	}
}

func TestCleanupService_HistoryDeleteError(t *testing.T) {
	p := &execPoolStub{errs: []error{errors.New("history delete failed")}}
	svc := postgres.NewCleanupService(p, 1)
	if err := svc.CleanupOldData(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestCleanupService_QueueDeleteError(t *testing.T) {
	p := &execPoolStub{errs: []error{nil, errors.New("queue delete failed")}}
	svc := postgres.NewCleanupService(p, 1)
	if err := svc.CleanupOldData(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewCleanupService_ZeroRetentionDays(t *testing.T) {
	svc := postgres.NewCleanupService(&execPoolStub{}, 0)
	if svc == nil {
		t.Fatal("expected non-nil service")
	}
}

func TestNewCleanupService_NegativeRetentionDays(t *testing.T) {
	svc := postgres.NewCleanupService(&execPoolStub{}, -1)
	if svc == nil {
		t.Fatal("expected non-nil service")
	}
}

func TestNewCleanupService_LargeRetentionDays(t *testing.T) {
	svc := postgres.NewCleanupService(&execPoolStub{}, 365)
	if svc == nil {
		t.Fatal("expected non-nil service")
	}
}

func TestCleanupService_RunPeriodic_ImmediateCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := postgres.NewCleanupService(&execPoolStub{}, 1)
	svc.RunPeriodic(ctx, 0)
}

func TestCleanupService_RunPeriodic_WithInterval(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	svc := postgres.NewCleanupService(&execPoolStub{}, 1)
	svc.RunPeriodic(ctx, 50*time.Millisecond)
}

func TestCleanupService_RunPeriodic_WithError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	p := &execPoolStub{errs: []error{errors.New("initial failure")}}
	svc := postgres.NewCleanupService(p, 1)
	svc.RunPeriodic(ctx, 50*time.Millisecond)
}
