package controllers

import (
	"context"
	"net/http"
	"strconv"

	"settlement-service/models"
	"settlement-service/repository"
	"settlement-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentSetup is the slice of the Stripe service the producer endpoints use.
type PaymentSetup interface {
	CreateSettlementCustomer(ctx context.Context, email, requestID, songName, timestamp string) (string, error)
	CreateCardSetupIntent(ctx context.Context, customerID string) (string, error)
	CreateRequestFeeIntent(ctx context.Context, customerID string, feeCents int64, destination string) (string, error)
}

// ProducerStore is the slice of the request store the producer endpoints use.
type ProducerStore interface {
	CreateRequest(ctx context.Context, fields map[string]interface{}) (string, error)
	CreateGig(ctx context.Context, gigID, stripeConnectID string) (string, error)
	FindRequestByRequestID(ctx context.Context, requestID string) (*models.SongRequest, error)
	UpdateFields(ctx context.Context, recordID string, fields map[string]interface{}) error
}

// RequestController serves the upstream producer endpoints: the form submits a
// bid, sets up a saved payment method, and provisions gigs. The settlement
// loop only ever sees records these endpoints have fully populated.
type RequestController struct {
	Stripe          PaymentSetup
	Store           ProducerStore
	Logs            repository.SettlementLogRepository
	Logger          *zap.Logger
	RequestFeeCents int64
}

// respondError logs a warning and writes a JSON error response.
func (rc *RequestController) respondError(c *gin.Context, status int, msg string, err error) {
	if err != nil {
		rc.Logger.Warn(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

// CreateRequest records a new song bid.
func (rc *RequestController) CreateRequest(c *gin.Context) {
	var req struct {
		RequestID   string `json:"request_id"`
		GigID       string `json:"gig_id" binding:"required"`
		PhoneNumber string `json:"phone_number" binding:"required"`
		SongName    string `json:"song_name" binding:"required"`
		BidAmount   string `json:"bid_amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		rc.respondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if _, err := services.BidToMinorUnits(req.BidAmount); err != nil {
		rc.respondError(c, http.StatusBadRequest, "bid_amount must be a positive decimal", err)
		return
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	recordID, err := rc.Store.CreateRequest(c.Request.Context(), map[string]interface{}{
		models.FieldRequestID:   req.RequestID,
		models.FieldGigID:       req.GigID,
		models.FieldPhoneNumber: req.PhoneNumber,
		models.FieldSongName:    req.SongName,
		models.FieldBidAmount:   req.BidAmount,
		models.FieldNotified:    false,
	})
	if err != nil {
		rc.respondError(c, http.StatusInternalServerError, "failed to create request", err)
		return
	}

	rc.Logger.Info("song request created",
		zap.String("request_id", req.RequestID),
		zap.String("gig_id", req.GigID))
	c.JSON(http.StatusCreated, gin.H{"request_id": req.RequestID, "record_id": recordID})
}

// SetupIntent saves the requester's card for later off-session settlement and
// charges the flat request fee up front, split with the DJ's connect account.
func (rc *RequestController) SetupIntent(c *gin.Context) {
	var req struct {
		RequestID       string `json:"request_id" binding:"required"`
		Email           string `json:"email"`
		SongName        string `json:"song_name"`
		Timestamp       string `json:"timestamp"`
		BidAmount       string `json:"bid_amount" binding:"required"`
		StripeAccountID string `json:"stripe_account_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		rc.respondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	bidMinor, err := services.BidToMinorUnits(req.BidAmount)
	if err != nil {
		rc.respondError(c, http.StatusBadRequest, "bid_amount must be a positive decimal", err)
		return
	}

	ctx := c.Request.Context()

	customerID, err := rc.Stripe.CreateSettlementCustomer(ctx, req.Email, req.RequestID, req.SongName, req.Timestamp)
	if err != nil {
		rc.respondError(c, http.StatusInternalServerError, "failed to create customer", err)
		return
	}

	setupSecret, err := rc.Stripe.CreateCardSetupIntent(ctx, customerID)
	if err != nil {
		rc.respondError(c, http.StatusInternalServerError, "failed to create setup intent", err)
		return
	}

	feeSecret, err := rc.Stripe.CreateRequestFeeIntent(ctx, customerID, rc.RequestFeeCents, req.StripeAccountID)
	if err != nil {
		rc.respondError(c, http.StatusInternalServerError, "failed to create fee intent", err)
		return
	}

	// Link the customer back onto the request record so the settlement loop
	// finds it. Best effort: the record may not exist yet when the form and
	// the automation race.
	if record, err := rc.Store.FindRequestByRequestID(ctx, req.RequestID); err != nil {
		rc.Logger.Warn("could not look up request record for customer link",
			zap.String("request_id", req.RequestID), zap.Error(err))
	} else if record != nil {
		if err := rc.Store.UpdateFields(ctx, record.RecordID, map[string]interface{}{
			models.FieldCustomerID: customerID,
		}); err != nil {
			rc.Logger.Warn("failed to link customer to request record",
				zap.String("request_id", req.RequestID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"setup_intent_client_secret":       setupSecret,
		"fee_payment_intent_client_secret": feeSecret,
		"customer_id":                      customerID,
		"bid_amount":                       bidMinor,
	})
}

// AttachPaymentMethod records the payment method collected by the confirmed
// SetupIntent onto the request record.
func (rc *RequestController) AttachPaymentMethod(c *gin.Context) {
	var req struct {
		RequestID       string `json:"request_id" binding:"required"`
		PaymentMethodID string `json:"payment_method_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		rc.respondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ctx := c.Request.Context()
	record, err := rc.Store.FindRequestByRequestID(ctx, req.RequestID)
	if err != nil {
		rc.respondError(c, http.StatusInternalServerError, "failed to look up request", err)
		return
	}
	if record == nil {
		rc.respondError(c, http.StatusNotFound, "request not found", nil)
		return
	}

	if err := rc.Store.UpdateFields(ctx, record.RecordID, map[string]interface{}{
		models.FieldPaymentMethodID: req.PaymentMethodID,
	}); err != nil {
		rc.respondError(c, http.StatusInternalServerError, "failed to attach payment method", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"request_id": req.RequestID})
}

// CreateGig provisions a gig with its payout destination.
func (rc *RequestController) CreateGig(c *gin.Context) {
	var req struct {
		GigID           string `json:"gig_id" binding:"required"`
		StripeConnectID string `json:"stripe_connect_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		rc.respondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	recordID, err := rc.Store.CreateGig(c.Request.Context(), req.GigID, req.StripeConnectID)
	if err != nil {
		rc.respondError(c, http.StatusInternalServerError, "failed to create gig", err)
		return
	}

	rc.Logger.Info("gig created", zap.String("gig_id", req.GigID))
	c.JSON(http.StatusCreated, gin.H{"gig_id": req.GigID, "record_id": recordID})
}

// GetSettlementLogs lists audit rows, filterable by request id and status.
// Status "partial" is the queue of charges an operator has to reconcile.
func (rc *RequestController) GetSettlementLogs(c *gin.Context) {
	var filter models.SettlementLogFilter
	filter.RequestID = c.Query("request_id")
	filter.Status = c.Query("status")
	filter.Page = intQuery(c, "page", 1)
	filter.PageSize = intQuery(c, "page_size", 10)

	logs, total, err := rc.Logs.GetLogs(c.Request.Context(), filter)
	if err != nil {
		rc.respondError(c, http.StatusInternalServerError, "failed to fetch settlement logs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs, "total": total})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if n, err := strconv.Atoi(c.Query(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}
