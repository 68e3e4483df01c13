// Package service exposes wallet registration, sync control and job
// status over the API surface. It owns no sync logic itself: writes go
// to the wallet store, work goes to the job queue, and job state is read
// back from the worker's Redis mirror.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/asset"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/config"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/progress"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/queue"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/syncer"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/wallet"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/walletdb"
)

// Store is the narrow data-access interface for the wallet service.
// Defined here to keep the service decoupled from walletdb implementation
// details.
//
//go:generate mockery --name Store --output mocks --outpkg mocks --filename mock_store.go --with-expecter
type Store interface {
	GetWalletForUser(ctx context.Context, userID, id string) (*wallet.Wallet, error)
	GetWalletByAddress(ctx context.Context, userID, address string) (*wallet.Wallet, error)
	WalletExists(ctx context.Context, userID, address string, network asset.Network) (bool, error)
	CreateWallet(ctx context.Context, w *wallet.Wallet) (*wallet.Wallet, error)
	Ping(ctx context.Context) error
}

// JobQueue publishes sync jobs. Satisfied by *queue.Publisher.
type JobQueue interface {
	Publish(ctx context.Context, queueName string, env queue.Envelope) error
	Depth(queueName string) (int, error)
}

// JobMirror is the cross-process job state store shared with the worker.
// Satisfied by *syncer.RedisMirror.
type JobMirror interface {
	RecordJob(ctx context.Context, job *syncer.Job)
	FetchJob(ctx context.Context, jobID string) (*syncer.Job, bool)
	FetchWorker(ctx context.Context) (*syncer.WorkerStatus, bool)
}

// Pinger is a connectivity check against one backing component.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BrokerConn reports whether the message broker connection is still open.
// Satisfied by *amqp.Connection.
type BrokerConn interface {
	IsClosed() bool
}

// SyncOptions narrows a manual sync request.
type SyncOptions struct {
	// Full forces a full re-fetch instead of the incremental delta.
	Full bool `json:"full"`
	// DataTypes limits the sync to a subset of stages; empty runs all.
	DataTypes []string `json:"dataTypes" validate:"omitempty,unique,dive,oneof=portfolio assets transactions nfts defi"`
}

// RegisterRequest registers one address for the authenticated user.
type RegisterRequest struct {
	Address string `json:"address" validate:"required"`
	Network string `json:"network" validate:"omitempty,max=32"`
	Name    string `json:"name" validate:"omitempty,max=100"`
}

// WalletView is the wallet as served to API clients.
type WalletView struct {
	ID            string            `json:"id"`
	Address       string            `json:"address"`
	Network       asset.Network     `json:"network"`
	Name          string            `json:"name,omitempty"`
	SyncStatus    wallet.SyncStatus `json:"syncStatus"`
	LastSyncedAt  *time.Time        `json:"lastSyncedAt,omitempty"`
	LastSyncError string            `json:"lastSyncError,omitempty"`
	TotalBalance  decimal.Decimal   `json:"totalBalance"`
	AssetCount    int               `json:"assetCount"`
	NFTCount      int               `json:"nftCount"`
	PositionCount int               `json:"positionCount"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// JobAccepted acknowledges an enqueued sync job.
type JobAccepted struct {
	JobID      string         `json:"jobId"`
	WalletID   string         `json:"walletId"`
	Type       queue.JobType  `json:"type"`
	State      progress.State `json:"state"`
	Position   int            `json:"position,omitempty"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`
}

// RegisteredWallet is the registration response. Job is nil when the
// initial sync could not be enqueued; the wallet row still exists and a
// manual sync recovers.
type RegisteredWallet struct {
	Wallet *WalletView  `json:"wallet"`
	Job    *JobAccepted `json:"job,omitempty"`
}

// ComponentHealth is one backing component's availability.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// ServiceHealth aggregates component connectivity with the worker's last
// self-report.
type ServiceHealth struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Worker     *syncer.WorkerStatus       `json:"worker,omitempty"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// Healthy reports whether every component check passed.
func (h *ServiceHealth) Healthy() bool {
	return h.Status == "healthy"
}

// Service defines the wallet sync API business logic.
//
//go:generate mockery --name Service --output mocks --outpkg mocks --filename mock_service.go --with-expecter
type Service interface {
	RegisterWallet(ctx context.Context, userID string, req RegisterRequest) (*RegisteredWallet, error)
	ManualSync(ctx context.Context, userID, walletID string, opts SyncOptions) (*JobAccepted, error)
	GetJobStatus(ctx context.Context, userID, jobID string) (*syncer.Job, error)
	ResolveWallet(ctx context.Context, userID, ref string) (*WalletView, error)
	GetServiceHealth(ctx context.Context) (*ServiceHealth, error)
}

type walletService struct {
	store    Store
	jobs     JobQueue
	mirror   JobMirror
	cache    Pinger
	broker   BrokerConn
	events   progress.Publisher
	queues   config.QueueConfig
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates a new wallet sync service. cache and broker may be
// nil; health reports them as unavailable.
func NewService(
	store Store,
	jobs JobQueue,
	mirror JobMirror,
	cache Pinger,
	broker BrokerConn,
	events progress.Publisher,
	queues config.QueueConfig,
	logger *zap.Logger,
) Service {
	if events == nil {
		events = progress.NopPublisher{}
	}
	return &walletService{
		store:    store,
		jobs:     jobs,
		mirror:   mirror,
		cache:    cache,
		broker:   broker,
		events:   events,
		queues:   queues,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterWallet validates and saves a new wallet, then enqueues its
// initial full sync. Addresses are stored in EIP-55 checksum form so the
// same address registered twice in different casings collides.
func (s *walletService) RegisterWallet(ctx context.Context, userID string, req RegisterRequest) (*RegisteredWallet, error) {
	if userID == "" {
		return nil, apperrors.UnAuthorizedError(nil, "missing authenticated user")
	}
	if err := s.validate.Struct(&req); err != nil {
		return nil, apperrors.BadRequestError(err, "invalid registration request")
	}
	if !wallet.ValidAddress(req.Address) {
		return nil, apperrors.BadRequestError(nil, "address is not a valid hex address")
	}

	network := asset.NetworkEthereum
	if req.Network != "" {
		n, ok := asset.ParseNetwork(req.Network)
		if !ok {
			return nil, apperrors.BadRequestError(nil, "unsupported network")
		}
		network = n
	}

	address := wallet.NormalizeAddress(req.Address)
	exists, err := s.store.WalletExists(ctx, userID, address, network)
	if err != nil {
		return nil, apperrors.PersistenceError(err, "wallet lookup failed")
	}
	if exists {
		return nil, apperrors.ConflictError(nil, "WALLET_EXISTS", "wallet already registered")
	}

	created, err := s.store.CreateWallet(ctx, &wallet.Wallet{
		UserID:     userID,
		Address:    address,
		Network:    network,
		Name:       req.Name,
		SyncStatus: wallet.SyncIdle,
	})
	if err != nil {
		return nil, apperrors.PersistenceError(err, "failed to save wallet")
	}

	resp := &RegisteredWallet{Wallet: walletView(created)}
	job, err := s.enqueueSync(ctx, created, queue.JobSyncWalletFull, nil)
	if err != nil {
		// The wallet row exists; a manual sync recovers the missing job.
		s.logger.Warn("initial sync enqueue failed",
			zap.String("wallet_id", created.ID),
			zap.Error(err))
		return resp, nil
	}
	resp.Job = job
	return resp, nil
}

// ManualSync enqueues a sync job for a wallet the user owns. A wallet
// already mid-sync is rejected so two jobs never race on one row.
func (s *walletService) ManualSync(ctx context.Context, userID, walletID string, opts SyncOptions) (*JobAccepted, error) {
	if userID == "" {
		return nil, apperrors.UnAuthorizedError(nil, "missing authenticated user")
	}
	if walletID == "" {
		return nil, apperrors.BadRequestError(nil, "wallet id is required")
	}
	if err := s.validate.Struct(&opts); err != nil {
		return nil, apperrors.BadRequestError(err, "invalid sync options")
	}

	w, err := s.lookupWallet(ctx, userID, walletID)
	if err != nil {
		return nil, err
	}
	if w.SyncStatus == wallet.SyncSyncing {
		return nil, apperrors.ConflictError(nil, "SYNC_IN_PROGRESS", "a sync is already running for this wallet")
	}

	return s.enqueueSync(ctx, w, jobTypeFor(opts), opts.DataTypes)
}

// GetJobStatus reads one job's state from the worker mirror. Jobs owned
// by other users report as not found so ids leak nothing.
func (s *walletService) GetJobStatus(ctx context.Context, userID, jobID string) (*syncer.Job, error) {
	if userID == "" {
		return nil, apperrors.UnAuthorizedError(nil, "missing authenticated user")
	}
	if jobID == "" {
		return nil, apperrors.BadRequestError(nil, "job id is required")
	}
	job, ok := s.mirror.FetchJob(ctx, jobID)
	if !ok || job.UserID != userID {
		return nil, apperrors.ResourceNotFoundError(nil, "JOB_NOT_FOUND", "job not found")
	}
	return job, nil
}

// ResolveWallet finds a wallet by id or address, scoped to the user.
func (s *walletService) ResolveWallet(ctx context.Context, userID, ref string) (*WalletView, error) {
	if userID == "" {
		return nil, apperrors.UnAuthorizedError(nil, "missing authenticated user")
	}
	if ref == "" {
		return nil, apperrors.BadRequestError(nil, "wallet reference is required")
	}
	w, err := s.lookupWallet(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	return walletView(w), nil
}

// GetServiceHealth checks every backing component and attaches the
// worker's last heartbeat. It reports problems in the payload rather
// than failing the request.
func (s *walletService) GetServiceHealth(ctx context.Context) (*ServiceHealth, error) {
	out := &ServiceHealth{
		Status:     "healthy",
		Components: make(map[string]ComponentHealth),
		Timestamp:  time.Now().UTC(),
	}

	if err := s.store.Ping(ctx); err != nil {
		out.Components["database"] = ComponentHealth{Message: err.Error()}
	} else {
		out.Components["database"] = ComponentHealth{Healthy: true}
	}

	switch {
	case s.cache == nil:
		out.Components["redis"] = ComponentHealth{Message: "not configured"}
	default:
		if err := s.cache.Ping(ctx); err != nil {
			out.Components["redis"] = ComponentHealth{Message: err.Error()}
		} else {
			out.Components["redis"] = ComponentHealth{Healthy: true}
		}
	}

	switch {
	case s.broker == nil:
		out.Components["queue"] = ComponentHealth{Message: "not configured"}
	case s.broker.IsClosed():
		out.Components["queue"] = ComponentHealth{Message: "connection closed"}
	default:
		out.Components["queue"] = ComponentHealth{Healthy: true}
	}

	if worker, ok := s.mirror.FetchWorker(ctx); ok {
		out.Components["worker"] = ComponentHealth{Healthy: true}
		out.Worker = worker
	} else {
		out.Components["worker"] = ComponentHealth{Message: "no recent worker heartbeat"}
	}

	for _, c := range out.Components {
		if !c.Healthy {
			out.Status = "degraded"
			break
		}
	}
	return out, nil
}

// enqueueSync publishes the job, mirrors a queued record so status reads
// work before the worker picks it up, and notifies subscribers.
func (s *walletService) enqueueSync(ctx context.Context, w *wallet.Wallet, jobType queue.JobType, dataTypes []string) (*JobAccepted, error) {
	env, err := queue.NewEnvelope(jobType, queue.SyncPayload{
		UserID:    w.UserID,
		WalletID:  w.ID,
		DataTypes: dataTypes,
	})
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Publish(ctx, s.queues.SyncQueue, env); err != nil {
		return nil, apperrors.ProviderError(err, "failed to enqueue sync job")
	}

	position := 0
	if depth, err := s.jobs.Depth(s.queues.SyncQueue); err == nil {
		position = depth
	} else {
		s.logger.Debug("queue depth unavailable", zap.Error(err))
	}

	s.mirror.RecordJob(ctx, &syncer.Job{
		ID:        env.JobID,
		Type:      jobType,
		UserID:    w.UserID,
		WalletID:  w.ID,
		Status:    syncer.JobActive,
		State:     progress.StateQueued,
		DataTypes: dataTypes,
		StartedAt: env.EnqueuedAt,
	})
	s.events.Publish(ctx, w.UserID, progress.Event{
		JobID:    env.JobID,
		WalletID: w.ID,
		State:    progress.StateQueued,
		Message:  "Sync queued",
	})

	return &JobAccepted{
		JobID:      env.JobID,
		WalletID:   w.ID,
		Type:       jobType,
		State:      progress.StateQueued,
		Position:   position,
		EnqueuedAt: env.EnqueuedAt,
	}, nil
}

// lookupWallet resolves a wallet reference that is either a wallet id or
// a hex address, always scoped to the owning user.
func (s *walletService) lookupWallet(ctx context.Context, userID, ref string) (*wallet.Wallet, error) {
	var (
		w   *wallet.Wallet
		err error
	)
	switch {
	case isUUID(ref):
		w, err = s.store.GetWalletForUser(ctx, userID, ref)
	case wallet.ValidAddress(ref):
		w, err = s.store.GetWalletByAddress(ctx, userID, wallet.NormalizeAddress(ref))
	default:
		return nil, apperrors.BadRequestError(nil, "wallet reference is neither an id nor a hex address")
	}
	if err != nil {
		if errors.Is(err, walletdb.ErrWalletNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "WALLET_NOT_FOUND", "wallet not found")
		}
		return nil, apperrors.PersistenceError(err, "wallet lookup failed")
	}
	return w, nil
}

// jobTypeFor maps sync options onto the wire job type. A request for
// only transaction history uses the cheaper dedicated job.
func jobTypeFor(opts SyncOptions) queue.JobType {
	switch {
	case opts.Full:
		return queue.JobSyncWalletFull
	case len(opts.DataTypes) == 1 && opts.DataTypes[0] == syncer.DataTransactions:
		return queue.JobSyncTransactions
	default:
		return queue.JobSyncWallet
	}
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func walletView(w *wallet.Wallet) *WalletView {
	return &WalletView{
		ID:            w.ID,
		Address:       w.Address,
		Network:       w.Network,
		Name:          w.Name,
		SyncStatus:    w.SyncStatus,
		LastSyncedAt:  w.LastSyncedAt,
		LastSyncError: w.LastSyncError,
		TotalBalance:  w.TotalBalance,
		AssetCount:    w.AssetCount,
		NFTCount:      w.NFTCount,
		PositionCount: w.PositionCount,
		CreatedAt:     w.CreatedAt,
	}
}
