package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/esignly/contracts-backend/pkg/logger"
	"github.com/esignly/contracts-backend/pkg/metrics"
)

type contractExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// ContractExpiryJobParams configures the expiry sweep.
type ContractExpiryJobParams struct {
	Logger    *logger.Logger
	Contracts contractExpirer
	Metrics   *metrics.CronJobMetrics
}

// NewContractExpiryJob constructs the job that flips overdue
// pending-signature contracts to expired.
func NewContractExpiryJob(params ContractExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Contracts == nil {
		return nil, fmt.Errorf("contracts service required")
	}
	return &contractExpiryJob{
		logg:      params.Logger,
		contracts: params.Contracts,
		metrics:   params.Metrics,
		now:       time.Now,
	}, nil
}

type contractExpiryJob struct {
	logg      *logger.Logger
	contracts contractExpirer
	metrics   *metrics.CronJobMetrics
	now       func() time.Time
}

func (j *contractExpiryJob) Name() string { return "contract-expiry" }

func (j *contractExpiryJob) Run(ctx context.Context) error {
	expired, err := j.contracts.ExpireDue(ctx, j.now().UTC())
	if j.metrics != nil && expired > 0 {
		j.metrics.AddExpiredContracts(expired)
	}
	logCtx := j.logg.WithField(ctx, "contracts_expired", expired)
	if err != nil {
		// Partial progress still counts; the error carries the failures.
		j.logg.Error(logCtx, "contract expiry sweep finished with errors", err)
		return fmt.Errorf("contract expiry: %w", err)
	}
	j.logg.Info(logCtx, "contract expiry sweep complete")
	return nil
}
