package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"settlement-service/models"
	"settlement-service/repository"
	"settlement-service/sender"

	"go.uber.org/zap"
)

// smsTemplate is the confirmation text sent once a bid has been charged.
const smsTemplate = "Your song request for '%s' has been accepted! Stick close to the dance floor it's playing soon!"

// outboundCallTimeout bounds every store, gateway and messaging call so a hung
// collaborator cannot stall a poll cycle indefinitely.
const outboundCallTimeout = 30 * time.Second

// RequestStore is the request-store surface the reconciler needs. The store's
// contract is that an accepted record keeps reappearing in ListUnnotified
// until MarkNotified succeeds; that reappearance is the only retry mechanism.
type RequestStore interface {
	ListUnnotified(ctx context.Context) ([]models.SongRequest, error)
	FindGig(ctx context.Context, gigID string) (*models.Gig, error)
	MarkNotified(ctx context.Context, recordID string, at time.Time) error
}

// ChargeGateway executes one off-session split charge.
type ChargeGateway interface {
	CreateOffSessionCharge(ctx context.Context, p models.ChargeParams) (*models.ChargeResult, error)
}

// Reconciler settles accepted song requests: for each accepted-but-unnotified
// record it resolves the gig's payout destination, charges the saved card with
// the platform fee split, texts the requester, and marks the record notified.
// Each record is handled independently; a failed record is simply skipped and
// revisited on the next cycle.
type Reconciler struct {
	store   RequestStore
	gateway ChargeGateway
	sms     sender.SMSSender
	logs    repository.SettlementLogRepository
	logger  *zap.Logger

	mu sync.Mutex // guards against overlapping poll cycles
}

func NewReconciler(
	store RequestStore,
	gateway ChargeGateway,
	sms sender.SMSSender,
	logs repository.SettlementLogRepository,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		store:   store,
		gateway: gateway,
		sms:     sms,
		logs:    logs,
		logger:  logger,
	}
}

// Poll runs one full settlement cycle. A single cycle runs at a time: a call
// that arrives while another is in flight does no work. A store-read failure
// aborts the whole cycle; everything else is per-record.
func (r *Reconciler) Poll(ctx context.Context) {
	if !r.mu.TryLock() {
		r.logger.Warn("settlement poll still running, skipping this tick")
		return
	}
	defer r.mu.Unlock()

	listCtx, cancel := context.WithTimeout(ctx, outboundCallTimeout)
	requests, err := r.store.ListUnnotified(listCtx)
	cancel()
	if err != nil {
		r.logger.Error("failed to fetch accepted requests, retrying next cycle", zap.Error(err))
		return
	}

	r.logger.Info("settlement poll started", zap.Int("pending", len(requests)))

	for i := range requests {
		// Stop between records on shutdown, never mid-pipeline.
		select {
		case <-ctx.Done():
			r.logger.Info("shutdown requested, stopping settlement cycle",
				zap.Int("remaining", len(requests)-i))
			return
		default:
		}
		r.settle(context.WithoutCancel(ctx), requests[i])
	}
}

// settle runs the per-record pipeline: validate → resolve gig → charge →
// notify → commit. Any failure leaves the record unnotified so the next cycle
// picks it up again.
func (r *Reconciler) settle(ctx context.Context, req models.SongRequest) {
	if req.Notified {
		return
	}

	// Stage 1: validate.
	if missing := missingFields(req); missing != "" {
		r.logger.Warn("skipping request with missing fields",
			zap.String("request_id", req.RequestID),
			zap.String("record_id", req.RecordID),
			zap.String("stage", models.StageValidate),
			zap.String("missing", missing))
		r.audit(ctx, models.SettlementLog{
			RequestID: req.RequestID,
			GigID:     req.GigID,
			Stage:     models.StageValidate,
			Status:    models.SettlementFailed,
			Error:     "missing fields: " + missing,
		})
		return
	}

	amountMinor, err := BidToMinorUnits(req.BidAmount)
	if err != nil {
		r.logger.Warn("skipping request with bad bid amount",
			zap.String("request_id", req.RequestID),
			zap.String("stage", models.StageValidate),
			zap.Error(err))
		r.audit(ctx, models.SettlementLog{
			RequestID: req.RequestID,
			GigID:     req.GigID,
			Stage:     models.StageValidate,
			Status:    models.SettlementFailed,
			Error:     err.Error(),
		})
		return
	}
	feeMinor := PlatformFee(amountMinor)

	// Stage 2: resolve the payout destination. A missing gig or an empty
	// connect id is a data problem that needs operator correction, not a
	// transient failure.
	opCtx, cancel := context.WithTimeout(ctx, outboundCallTimeout)
	gig, err := r.store.FindGig(opCtx, req.GigID)
	cancel()
	if err != nil {
		r.logger.Error("gig lookup failed, retrying next cycle",
			zap.String("request_id", req.RequestID),
			zap.String("gig_id", req.GigID),
			zap.Error(err))
		return
	}
	if gig == nil || gig.StripeConnectID == "" {
		r.logger.Error("no payout destination for gig",
			zap.String("request_id", req.RequestID),
			zap.String("gig_id", req.GigID),
			zap.String("stage", models.StageResolveGig))
		r.audit(ctx, models.SettlementLog{
			RequestID: req.RequestID,
			GigID:     req.GigID,
			Stage:     models.StageResolveGig,
			Status:    models.SettlementFailed,
			Error:     fmt.Sprintf("gig %s has no payout destination", req.GigID),
		})
		return
	}

	// Stage 3: charge.
	opCtx, cancel = context.WithTimeout(ctx, outboundCallTimeout)
	result, err := r.gateway.CreateOffSessionCharge(opCtx, models.ChargeParams{
		RequestID:       req.RequestID,
		CustomerID:      req.CustomerID,
		PaymentMethodID: req.PaymentMethodID,
		AmountMinor:     amountMinor,
		FeeMinor:        feeMinor,
		Destination:     gig.StripeConnectID,
		IdempotencyKey:  settlementIdempotencyKey(req.RequestID),
	})
	cancel()
	if err != nil {
		kind := ChargeErrorKind(err)
		if kind == ChargeKindCardDeclined {
			r.logger.Warn("payment declined, leaving request pending",
				zap.String("request_id", req.RequestID),
				zap.String("customer_id", req.CustomerID),
				zap.Error(err))
		} else {
			r.logger.Error("charge failed",
				zap.String("request_id", req.RequestID),
				zap.String("customer_id", req.CustomerID),
				zap.String("kind", kind),
				zap.Error(err))
		}
		r.audit(ctx, models.SettlementLog{
			RequestID:   req.RequestID,
			GigID:       req.GigID,
			AmountMinor: amountMinor,
			FeeMinor:    feeMinor,
			Stage:       models.StageCharge,
			Status:      models.SettlementFailed,
			Error:       err.Error(),
		})
		return
	}

	// Stage 4: notify. From here on a failure is the partial class: the
	// money moved but the record is still pending, and only the audit log
	// knows.
	opCtx, cancel = context.WithTimeout(ctx, outboundCallTimeout)
	_, err = r.sms.SendSMS(opCtx, req.PhoneNumber, fmt.Sprintf(smsTemplate, req.SongName))
	cancel()
	if err != nil {
		r.logger.Error("charge succeeded but notification failed",
			zap.String("request_id", req.RequestID),
			zap.String("charge_id", result.ChargeID),
			zap.Error(err))
		r.audit(ctx, models.SettlementLog{
			RequestID:   req.RequestID,
			GigID:       req.GigID,
			ChargeID:    result.ChargeID,
			AmountMinor: amountMinor,
			FeeMinor:    feeMinor,
			Stage:       models.StageNotify,
			Status:      models.SettlementPartial,
			Error:       err.Error(),
		})
		return
	}

	// Stage 5: commit.
	opCtx, cancel = context.WithTimeout(ctx, outboundCallTimeout)
	err = r.store.MarkNotified(opCtx, req.RecordID, time.Now())
	cancel()
	if err != nil {
		r.logger.Error("charge and notification succeeded but commit failed",
			zap.String("request_id", req.RequestID),
			zap.String("charge_id", result.ChargeID),
			zap.Error(err))
		r.audit(ctx, models.SettlementLog{
			RequestID:   req.RequestID,
			GigID:       req.GigID,
			ChargeID:    result.ChargeID,
			AmountMinor: amountMinor,
			FeeMinor:    feeMinor,
			Stage:       models.StageCommit,
			Status:      models.SettlementPartial,
			Error:       err.Error(),
		})
		return
	}

	r.logger.Info("request settled",
		zap.String("request_id", req.RequestID),
		zap.String("gig_id", req.GigID),
		zap.String("charge_id", result.ChargeID),
		zap.Int64("amount_minor", amountMinor),
		zap.Int64("fee_minor", feeMinor))
	r.audit(ctx, models.SettlementLog{
		RequestID:   req.RequestID,
		GigID:       req.GigID,
		ChargeID:    result.ChargeID,
		AmountMinor: amountMinor,
		FeeMinor:    feeMinor,
		Stage:       models.StageCommit,
		Status:      models.SettlementSucceeded,
	})
}

// audit persists one settlement-log row. Audit failures never affect the
// pipeline outcome.
func (r *Reconciler) audit(ctx context.Context, entry models.SettlementLog) {
	if r.logs == nil {
		return
	}
	if err := r.logs.SaveLog(ctx, &entry); err != nil {
		r.logger.Warn("failed to persist settlement log",
			zap.String("request_id", entry.RequestID),
			zap.Error(err))
	}
}

// missingFields names the required fields absent from a record, or "" when the
// record is complete.
func missingFields(req models.SongRequest) string {
	var missing string
	add := func(name, val string) {
		if val != "" {
			return
		}
		if missing != "" {
			missing += ", "
		}
		missing += name
	}
	add(models.FieldRequestID, req.RequestID)
	add(models.FieldGigID, req.GigID)
	add(models.FieldPhoneNumber, req.PhoneNumber)
	add(models.FieldSongName, req.SongName)
	add(models.FieldCustomerID, req.CustomerID)
	add(models.FieldPaymentMethodID, req.PaymentMethodID)
	add(models.FieldBidAmount, req.BidAmount)
	return missing
}
