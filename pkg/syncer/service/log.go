package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/syncer"
)

const serviceName = "WalletService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the wallet Service. Mutating
// calls log at info; read paths log at debug so polled endpoints do not
// flood the log.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) RegisterWallet(
	ctx context.Context,
	userID string,
	req RegisterRequest,
) (resp *RegisteredWallet, err error) {
	start := time.Now()

	ls.logger.Info("RegisterWallet started",
		zap.String("service", serviceName),
		zap.String("method", "RegisterWallet"),
		zap.String("user_id", userID),
		zap.String("address", req.Address),
		zap.String("network", req.Network),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("RegisterWallet failed",
				zap.String("service", serviceName),
				zap.String("method", "RegisterWallet"),
				zap.String("user_id", userID),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("RegisterWallet completed",
				zap.String("service", serviceName),
				zap.String("method", "RegisterWallet"),
				zap.String("wallet_id", resp.Wallet.ID),
				zap.String("address", resp.Wallet.Address),
				zap.Bool("sync_enqueued", resp.Job != nil),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.RegisterWallet(ctx, userID, req)
}

func (ls *logService) ManualSync(
	ctx context.Context,
	userID, walletID string,
	opts SyncOptions,
) (resp *JobAccepted, err error) {
	start := time.Now()

	ls.logger.Info("ManualSync started",
		zap.String("service", serviceName),
		zap.String("method", "ManualSync"),
		zap.String("user_id", userID),
		zap.String("wallet_id", walletID),
		zap.Bool("full", opts.Full),
		zap.Strings("data_types", opts.DataTypes),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("ManualSync failed",
				zap.String("service", serviceName),
				zap.String("method", "ManualSync"),
				zap.String("user_id", userID),
				zap.String("wallet_id", walletID),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("ManualSync completed",
				zap.String("service", serviceName),
				zap.String("method", "ManualSync"),
				zap.String("job_id", resp.JobID),
				zap.String("job_type", string(resp.Type)),
				zap.Int("position", resp.Position),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.ManualSync(ctx, userID, walletID, opts)
}

func (ls *logService) GetJobStatus(ctx context.Context, userID, jobID string) (job *syncer.Job, err error) {
	start := time.Now()

	defer func() {
		if err != nil {
			ls.logger.Debug("GetJobStatus failed",
				zap.String("service", serviceName),
				zap.String("method", "GetJobStatus"),
				zap.String("user_id", userID),
				zap.String("job_id", jobID),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
	}()

	return ls.svc.GetJobStatus(ctx, userID, jobID)
}

func (ls *logService) ResolveWallet(ctx context.Context, userID, ref string) (w *WalletView, err error) {
	start := time.Now()

	defer func() {
		if err != nil {
			ls.logger.Debug("ResolveWallet failed",
				zap.String("service", serviceName),
				zap.String("method", "ResolveWallet"),
				zap.String("user_id", userID),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
	}()

	return ls.svc.ResolveWallet(ctx, userID, ref)
}

func (ls *logService) GetServiceHealth(ctx context.Context) (health *ServiceHealth, err error) {
	start := time.Now()

	defer func() {
		if err == nil && !health.Healthy() {
			ls.logger.Warn("GetServiceHealth degraded",
				zap.String("service", serviceName),
				zap.String("method", "GetServiceHealth"),
				zap.Any("components", health.Components),
				zap.Duration("duration", time.Since(start)),
			)
		}
	}()

	return ls.svc.GetServiceHealth(ctx)
}
