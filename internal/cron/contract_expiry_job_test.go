package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/esignly/contracts-backend/pkg/logger"
	"github.com/esignly/contracts-backend/pkg/metrics"
)

type fakeExpirer struct {
	expired int
	err     error
	gotNow  time.Time
}

func (f *fakeExpirer) ExpireDue(_ context.Context, now time.Time) (int, error) {
	f.gotNow = now
	return f.expired, f.err
}

func TestContractExpiryJobReportsExpiredCount(t *testing.T) {
	expirer := &fakeExpirer{expired: 4}
	job, err := NewContractExpiryJob(ContractExpiryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		Contracts: expirer,
		Metrics:   metrics.NewCronJobMetrics(nil),
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "contract-expiry" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expirer.gotNow.IsZero() {
		t.Fatalf("expected sweep to pass the current time")
	}
}

func TestContractExpiryJobSurfacesSweepErrors(t *testing.T) {
	expirer := &fakeExpirer{expired: 1, err: errors.New("one contract failed")}
	job, err := NewContractExpiryJob(ContractExpiryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		Contracts: expirer,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected sweep errors to surface")
	}
}

func TestContractExpiryJobRequiresDependencies(t *testing.T) {
	if _, err := NewContractExpiryJob(ContractExpiryJobParams{Contracts: &fakeExpirer{}}); err == nil {
		t.Fatalf("expected logger requirement")
	}
	if _, err := NewContractExpiryJob(ContractExpiryJobParams{Logger: logger.New(logger.Options{ServiceName: "cron-test"})}); err == nil {
		t.Fatalf("expected contracts requirement")
	}
}
