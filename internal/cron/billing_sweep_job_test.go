package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unipay-app/unipay-backend/internal/scheduler"
	"github.com/unipay-app/unipay-backend/pkg/logger"
)

type stubSweeper struct {
	horizon time.Time
	result  scheduler.SyncResult
	err     error
	calls   int
}

func (s *stubSweeper) SyncAllActive(_ context.Context, horizonDate time.Time) (scheduler.SyncResult, error) {
	s.calls++
	s.horizon = horizonDate
	return s.result, s.err
}

func TestBillingSweepJobComputesHorizonFromClock(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	sweeper := &stubSweeper{result: scheduler.SyncResult{TotalActive: 4, Synced: 3, Skipped: 1, Created: 2}}
	now := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	job, err := NewBillingSweepJob(BillingSweepJobParams{
		Logger:      logg,
		Sweeper:     sweeper,
		HorizonDays: 31,
		Now:         func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if job.Name() != "billing-sweep" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.calls)
	}
	want := time.Date(2024, time.April, 1, 8, 0, 0, 0, time.UTC)
	if !sweeper.horizon.Equal(want) {
		t.Fatalf("horizon = %s, want %s", sweeper.horizon, want)
	}
}

func TestBillingSweepJobDefaultsHorizon(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	sweeper := &stubSweeper{}
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	job, err := NewBillingSweepJob(BillingSweepJobParams{
		Logger:  logg,
		Sweeper: sweeper,
		Now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := now.AddDate(0, 0, 31)
	if !sweeper.horizon.Equal(want) {
		t.Fatalf("horizon = %s, want %s", sweeper.horizon, want)
	}
}

func TestBillingSweepJobPropagatesSweepFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	sweeper := &stubSweeper{err: errors.New("db unavailable")}

	job, err := NewBillingSweepJob(BillingSweepJobParams{Logger: logg, Sweeper: sweeper})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected sweep failure to propagate")
	}
}

func TestBillingSweepJobRequiresDependencies(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})

	if _, err := NewBillingSweepJob(BillingSweepJobParams{Sweeper: &stubSweeper{}}); err == nil {
		t.Fatal("expected missing logger error")
	}
	if _, err := NewBillingSweepJob(BillingSweepJobParams{Logger: logg}); err == nil {
		t.Fatal("expected missing sweeper error")
	}
}
