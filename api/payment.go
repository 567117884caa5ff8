package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sanujarubasinghe/cyclechain/customer"
	"github.com/sanujarubasinghe/cyclechain/internal/checkout"
	"github.com/sanujarubasinghe/cyclechain/internal/middleware"
	"github.com/sanujarubasinghe/cyclechain/internal/qrcode"
	"github.com/sanujarubasinghe/cyclechain/payment"
	"github.com/sanujarubasinghe/cyclechain/product"
	"github.com/sanujarubasinghe/cyclechain/reservation"
)

const maxWebhookBytes = 64 << 10

type paymentItemResponse struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type paymentResponse struct {
	ID            uuid.UUID             `json:"id"`
	ReservationID *uuid.UUID            `json:"reservationId,omitempty"`
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
	Method        payment.Method        `json:"method"`
	Status        payment.Status        `json:"status"`
	TransactionID string                `json:"transactionId,omitempty"`
	CheckoutURL   string                `json:"checkoutUrl,omitempty"`
	Items         []paymentItemResponse `json:"items,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

func toPaymentResponse(p payment.Payment) paymentResponse {
	resp := paymentResponse{
		ID:            p.ID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Method:        p.Method,
		Status:        p.Status,
		TransactionID: p.TransactionID.String,
		CheckoutURL:   p.CheckoutURL.String,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.ReservationID.Valid {
		resp.ReservationID = &p.ReservationID.UUID
	}
	for _, i := range p.Items {
		resp.Items = append(resp.Items, paymentItemResponse{
			ProductID: i.ProductID,
			Name:      i.Name,
			Quantity:  i.Quantity,
			UnitPrice: i.UnitPrice,
		})
	}
	return resp
}

// paymentStartResponse tells the app where to send the user next.
type paymentStartResponse struct {
	PaymentID   uuid.UUID       `json:"paymentId"`
	Method      payment.Method  `json:"method"`
	Status      payment.Status  `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CheckoutURL string          `json:"checkoutUrl,omitempty"`
	PaymentLink string          `json:"paymentLink,omitempty"`
	QRCode      string          `json:"qrCode,omitempty"`
}

type startPaymentRequest struct {
	ReservationID string `json:"reservationId" binding:"required"`
	Method        string `json:"method" binding:"required"`
}

func (a *API) startPaymentHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}

	var req startPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	method := payment.Method(req.Method)
	if !method.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"code": "UNSUPPORTED_METHOD", "message": payment.ErrUnsupportedMethod.Error()})
		return
	}
	resID, err := uuid.Parse(req.ReservationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ID", "message": "Invalid reservationId"})
		return
	}

	res, err := a.rr.GetByID(c, resID)
	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "RESERVATION_NOT_FOUND", "message": "Reservation not found"})
			return
		}
		internalError(c, "failed to get reservation", err)
		return
	}
	if res.CustomerID != cust.ID {
		c.JSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "message": "Reservation belongs to another customer"})
		return
	}
	if res.Status != reservation.StatusPaymentPending || !res.Cost.Valid {
		invalidState(c, res.Status)
		return
	}

	p := payment.Payment{
		ID:            uuid.New(),
		CustomerID:    cust.ID,
		ReservationID: uuid.NullUUID{UUID: res.ID, Valid: true},
		Amount:        res.Cost.Decimal,
		Currency:      a.cfg.Currency,
		Method:        method,
		Status:        payment.StatusPending,
	}
	if err := a.pr.Create(c, &p); err != nil {
		internalError(c, "failed to create payment", err)
		return
	}

	a.processPayment(c, cust, p)
}

// processPayment hands a freshly created pending payment to its method.
// Card payments are finalized as soon as the checkout session exists, before
// the customer completes it; QR and crypto payments wait for confirmation.
func (a *API) processPayment(c *gin.Context, cust *customer.Customer, p payment.Payment) {
	logger := middleware.GetLogger(c)

	resp := paymentStartResponse{
		PaymentID: p.ID,
		Method:    p.Method,
		Status:    p.Status,
		Amount:    p.Amount,
		Currency:  p.Currency,
	}

	switch p.Method {
	case payment.MethodCard:
		if a.checkout == nil {
			a.failPayment(c, p.ID)
			unavailable(c, "card payment")
			return
		}
		sess, err := a.checkout.CreateSession(c, checkout.Request{
			PaymentID:     p.ID.String(),
			CustomerEmail: cust.Email.String,
			Currency:      p.Currency,
			Items:         lineItems(p),
		})
		if err != nil {
			logger.ErrorContext(c, "failed to create checkout session", "paymentId", p.ID, "error", err)
			a.failPayment(c, p.ID)
			c.JSON(http.StatusBadGateway, gin.H{"code": "PAYMENT_PROVIDER_ERROR", "message": "Could not start card payment"})
			return
		}
		if err := a.pr.Attach(c, p.ID, sess.ID, sess.URL); err != nil {
			internalError(c, "failed to attach checkout session", err)
			return
		}

		done, err := a.pr.Complete(c, p.ID)
		if err != nil {
			a.completionError(c, err)
			return
		}
		resp.Status = done.Status
		resp.CheckoutURL = sess.URL

	case payment.MethodQR:
		link, err := qrcode.PaymentLink(a.cfg.QRPayBaseURL, p.ID.String(), p.Amount, p.Currency)
		if err != nil {
			internalError(c, "failed to build payment link", err)
			return
		}
		img, err := qrcode.DataURL(link)
		if err != nil {
			internalError(c, "failed to render qr code", err)
			return
		}
		if err := a.pr.Attach(c, p.ID, "", link); err != nil {
			internalError(c, "failed to attach payment link", err)
			return
		}
		resp.PaymentLink = link
		resp.QRCode = img

	case payment.MethodCrypto:
		if a.cfg.CryptoPaymentURL == "" {
			a.failPayment(c, p.ID)
			unavailable(c, "crypto payment")
			return
		}
		if err := a.pr.Attach(c, p.ID, "", a.cfg.CryptoPaymentURL); err != nil {
			internalError(c, "failed to attach payment url", err)
			return
		}
		resp.CheckoutURL = a.cfg.CryptoPaymentURL

	default:
		c.JSON(http.StatusBadRequest, gin.H{"code": "UNSUPPORTED_METHOD", "message": payment.ErrUnsupportedMethod.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func lineItems(p payment.Payment) []checkout.LineItem {
	if !p.IsOrder() {
		return []checkout.LineItem{{
			Name:        fmt.Sprintf("CycleChain ride %s", p.ReservationID.UUID.String()[:8]),
			AmountMinor: payment.MinorUnits(p.Amount),
			Quantity:    1,
		}}
	}
	out := make([]checkout.LineItem, 0, len(p.Items))
	for _, i := range p.Items {
		out = append(out, checkout.LineItem{
			Name:        i.Name,
			AmountMinor: payment.MinorUnits(i.UnitPrice),
			Quantity:    int64(i.Quantity),
		})
	}
	return out
}

func (a *API) failPayment(c *gin.Context, id uuid.UUID) {
	if _, err := a.pr.Finalize(c, id, payment.StatusFailed); err != nil {
		middleware.GetLogger(c).ErrorContext(c, "failed to mark payment failed", "paymentId", id, "error", err)
	}
}

func (a *API) completionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, payment.ErrAlreadyFinalized):
		c.JSON(http.StatusConflict, gin.H{"code": "PAYMENT_FINALIZED", "message": "Payment is already finalized"})
	case errors.Is(err, payment.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "PAYMENT_NOT_FOUND", "message": "Payment not found"})
	case errors.Is(err, product.ErrOutOfStock):
		c.JSON(http.StatusConflict, gin.H{"code": "OUT_OF_STOCK", "message": "Some items are no longer in stock"})
	case errors.Is(err, reservation.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"code": "RESERVATION_SETTLED", "message": "Reservation is no longer awaiting payment"})
	default:
		internalError(c, "failed to complete payment", err)
	}
}

type confirmPaymentRequest struct {
	PaymentID string `json:"paymentId" binding:"required"`
	Success   *bool  `json:"success" binding:"required"`
}

// confirmPaymentHandler finalizes a payment on the app's word. The provider
// is not consulted.
func (a *API) confirmPaymentHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}

	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := uuid.Parse(req.PaymentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ID", "message": "Invalid paymentId"})
		return
	}

	p, err := a.pr.GetByID(c, id)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "PAYMENT_NOT_FOUND", "message": "Payment not found"})
			return
		}
		internalError(c, "failed to get payment", err)
		return
	}
	if p.CustomerID != cust.ID {
		c.JSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "message": "Payment belongs to another customer"})
		return
	}

	if *req.Success {
		p, err = a.pr.Complete(c, p.ID)
	} else {
		p, err = a.pr.Finalize(c, p.ID, payment.StatusFailed)
	}
	if err != nil {
		a.completionError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPaymentResponse(p))
}

func (a *API) getPaymentsHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}

	list, err := a.pr.ListByCustomer(c, cust.ID)
	if err != nil {
		internalError(c, "failed to list payments", err)
		return
	}

	out := make([]paymentResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPaymentResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) getPaymentHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	p, err := a.pr.GetByID(c, id)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "PAYMENT_NOT_FOUND", "message": "Payment not found"})
			return
		}
		internalError(c, "failed to get payment", err)
		return
	}
	if p.CustomerID != cust.ID {
		c.JSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "message": "Payment belongs to another customer"})
		return
	}

	c.JSON(http.StatusOK, toPaymentResponse(p))
}

// stripeWebhookHandler settles payments from Stripe's checkout events. Card
// payments are usually completed already, so completion is idempotent.
func (a *API) stripeWebhookHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	if a.checkout == nil {
		unavailable(c, "card payment")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"code": "PAYLOAD_TOO_LARGE", "message": "Payload too large"})
		return
	}

	ev, err := a.checkout.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		logger.WarnContext(c, "rejected stripe webhook", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_SIGNATURE", "message": "Invalid signature"})
		return
	}
	if ev.Kind == checkout.EventIgnored {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	p, err := a.pr.GetByTransactionID(c, ev.SessionID)
	if errors.Is(err, payment.ErrNotFound) {
		logger.WarnContext(c, "webhook for unknown checkout session", "sessionId", ev.SessionID)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if err != nil {
		internalError(c, "failed to look up payment for webhook", err)
		return
	}

	switch ev.Kind {
	case checkout.EventSessionCompleted:
		_, err = a.pr.Complete(c, p.ID)
	case checkout.EventSessionExpired:
		_, err = a.pr.Finalize(c, p.ID, payment.StatusFailed)
	}
	switch {
	case err == nil, errors.Is(err, payment.ErrAlreadyFinalized):
	case errors.Is(err, product.ErrOutOfStock), errors.Is(err, reservation.ErrInvalidTransition):
		logger.WarnContext(c, "paid checkout could not be settled", "paymentId", p.ID, "error", err)
	default:
		internalError(c, "failed to apply webhook", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
