package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanujarubasinghe/cyclechain/bike"
	"github.com/sanujarubasinghe/cyclechain/cart"
	"github.com/sanujarubasinghe/cyclechain/customer"
	"github.com/sanujarubasinghe/cyclechain/feedback"
	"github.com/sanujarubasinghe/cyclechain/internal/auth0"
	"github.com/sanujarubasinghe/cyclechain/internal/checkout"
	"github.com/sanujarubasinghe/cyclechain/internal/lock"
	"github.com/sanujarubasinghe/cyclechain/internal/mailer"
	"github.com/sanujarubasinghe/cyclechain/internal/middleware"
	"github.com/sanujarubasinghe/cyclechain/loyalty"
	"github.com/sanujarubasinghe/cyclechain/nft"
	"github.com/sanujarubasinghe/cyclechain/payment"
	"github.com/sanujarubasinghe/cyclechain/product"
	"github.com/sanujarubasinghe/cyclechain/reservation"
	"github.com/sanujarubasinghe/cyclechain/station"
)

type BikeRepository interface {
	GetBikes(ctx context.Context, stationID *uuid.UUID) ([]bike.Bike, error)
	GetBike(ctx context.Context, id uuid.UUID) (bike.Bike, error)
	GetBikeByLabel(ctx context.Context, label string) (bike.Bike, error)
	SetLocked(ctx context.Context, id uuid.UUID, locked bool) error
}

type StationRepository interface {
	GetStations(ctx context.Context) ([]station.Station, error)
	GetStation(ctx context.Context, id uuid.UUID) (station.Station, error)
}

type CustomerRepository interface {
	GetCustomerByAuth0ID(ctx context.Context, auth0ID string) (*customer.Customer, error)
	CreateCustomer(ctx context.Context, auth0ID string) (*customer.Customer, error)
	UpdateProfile(ctx context.Context, auth0ID, email, name string) error
	GetCards(ctx context.Context, customerID uuid.UUID) ([]customer.Card, error)
	AddCard(ctx context.Context, card *customer.Card) error
	DeleteCard(ctx context.Context, customerID, cardID uuid.UUID) error
	loyalty.PointsStore
}

type ReservationRepository interface {
	Create(ctx context.Context, res *reservation.Reservation) error
	GetByID(ctx context.Context, id uuid.UUID) (reservation.Reservation, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]reservation.Reservation, error)
	SetUnlockCode(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error
	Start(ctx context.Context, id uuid.UUID, at pgtype.Point) (reservation.Reservation, error)
	End(ctx context.Context, id uuid.UUID, c reservation.Completion) (reservation.Reservation, error)
	Cancel(ctx context.Context, id uuid.UUID) (reservation.Reservation, error)
	loyalty.RideHistory
}

type PaymentRepository interface {
	Create(ctx context.Context, p *payment.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (payment.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (payment.Payment, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]payment.Payment, error)
	Attach(ctx context.Context, id uuid.UUID, transactionID, checkoutURL string) error
	Finalize(ctx context.Context, id uuid.UUID, status payment.Status) (payment.Payment, error)
	Complete(ctx context.Context, id uuid.UUID) (payment.Payment, error)
}

type ProductRepository interface {
	GetProducts(ctx context.Context, category product.Category) ([]product.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (product.Product, error)
}

type CartRepository interface {
	GetCart(ctx context.Context, customerID uuid.UUID) ([]cart.Item, error)
	AddItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) error
	SetItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, customerID, productID uuid.UUID) error
}

type FeedbackRepository interface {
	Create(ctx context.Context, f *feedback.Feedback) error
	GetByID(ctx context.Context, id uuid.UUID) (feedback.Feedback, error)
	Update(ctx context.Context, f *feedback.Feedback) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByBike(ctx context.Context, bikeID uuid.UUID) ([]feedback.Feedback, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]feedback.Feedback, error)
}

type CertificateStore interface {
	Insert(ctx context.Context, c *nft.Certificate) error
	FindByOwner(ctx context.Context, email string) ([]nft.Certificate, error)
	FindByTokenID(ctx context.Context, tokenID string) (nft.Certificate, error)
}

type LockCommander interface {
	Send(ctx context.Context, bikeID string, cmd lock.Command) error
}

type Mailer interface {
	SendUnlockCode(ctx context.Context, msg mailer.UnlockCode) error
}

type CheckoutClient interface {
	CreateSession(ctx context.Context, req checkout.Request) (checkout.Session, error)
	ParseWebhook(payload []byte, signature string) (checkout.Event, error)
}

type Assistant interface {
	Stream(ctx context.Context, prompt string, w io.Writer) error
}

// Stores groups the persistence the handlers read and write.
type Stores struct {
	Bikes        BikeRepository
	Stations     StationRepository
	Customers    CustomerRepository
	Reservations ReservationRepository
	Payments     PaymentRepository
	Products     ProductRepository
	Carts        CartRepository
	Feedback     FeedbackRepository
	// Certificates is nil when no document store is configured.
	Certificates CertificateStore
}

// Services groups the outbound integrations. Any of them may be nil, in
// which case the endpoints needing it answer 503.
type Services struct {
	Locks     LockCommander
	Mail      Mailer
	Checkout  CheckoutClient
	Assistant Assistant
	UserInfo  auth0.Client
}

type Config struct {
	// Auth authenticates every protected route.
	Auth     gin.HandlerFunc
	Logger   *slog.Logger
	Registry *prometheus.Registry

	MetricsUsername string
	MetricsPassword string

	Currency         string
	CryptoPaymentURL string
	QRPayBaseURL     string
}

type API struct {
	r *gin.Engine

	br   BikeRepository
	sr   StationRepository
	cr   CustomerRepository
	rr   ReservationRepository
	pr   PaymentRepository
	prod ProductRepository
	cart CartRepository
	fr   FeedbackRepository
	nfts CertificateStore

	locks     LockCommander
	mail      Mailer
	checkout  CheckoutClient
	assistant Assistant
	userInfo  auth0.Client

	loyalty *loyalty.Service
	cfg     Config
	now     func() time.Time
}

func New(s Stores, svc Services, cfg Config) *API {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Currency == "" {
		cfg.Currency = "lkr"
	}

	a := &API{
		r:         gin.New(),
		br:        s.Bikes,
		sr:        s.Stations,
		cr:        s.Customers,
		rr:        s.Reservations,
		pr:        s.Payments,
		prod:      s.Products,
		cart:      s.Carts,
		fr:        s.Feedback,
		nfts:      s.Certificates,
		locks:     svc.Locks,
		mail:      svc.Mail,
		checkout:  svc.Checkout,
		assistant: svc.Assistant,
		userInfo:  svc.UserInfo,
		loyalty:   loyalty.NewService(s.Reservations, s.Customers),
		cfg:       cfg,
		now:       time.Now,
	}

	// handlers pass *gin.Context as context.Context; let it carry the request's span and cancellation
	a.r.ContextWithFallback = true

	a.r.Use(gin.Recovery(), middleware.Tracing(), middleware.Logging(cfg.Logger))
	if cfg.Registry != nil {
		a.r.Use(middleware.Metrics(cfg.Registry))
		a.r.GET("/metrics",
			middleware.BasicAuth(cfg.MetricsUsername, cfg.MetricsPassword),
			gin.WrapH(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	}

	a.r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	a.r.GET("/bikes", a.bikesHandler)
	a.r.GET("/bikes/:id", a.bikeHandler)
	a.r.GET("/bikes/:id/feedback", a.bikeFeedbackHandler)
	a.r.GET("/stations", a.stationsHandler)
	a.r.GET("/stations/:id", a.stationHandler)
	a.r.GET("/products", a.productsHandler)
	a.r.GET("/products/:id", a.productHandler)
	a.r.POST("/webhooks/stripe", a.stripeWebhookHandler)

	protected := a.r.Group("/")
	if cfg.Auth != nil {
		protected.Use(cfg.Auth)
	}
	{
		protected.POST("/reservations", a.createReservationHandler)
		protected.GET("/reservations", a.getReservationsHandler)
		protected.GET("/reservations/:id", a.getReservationHandler)
		protected.POST("/reservations/:id/cancel", a.cancelReservationHandler)
		protected.POST("/reservations/:id/unlock-code", a.unlockCodeHandler)
		protected.POST("/reservations/:id/unlock", a.unlockHandler)
		protected.POST("/reservations/:id/start", a.startRideHandler)
		protected.POST("/reservations/:id/end", a.endRideHandler)

		protected.POST("/payments", a.startPaymentHandler)
		protected.POST("/payments/confirm", a.confirmPaymentHandler)
		protected.GET("/payments", a.getPaymentsHandler)
		protected.GET("/payments/:id", a.getPaymentHandler)

		protected.GET("/loyalty", a.loyaltyHandler)
		protected.POST("/loyalty/recalculate", a.loyaltyHandler)

		protected.GET("/me", a.getMeHandler)
		protected.PUT("/me", a.updateMeHandler)
		protected.GET("/me/cards", a.getCardsHandler)
		protected.POST("/me/cards", a.addCardHandler)
		protected.DELETE("/me/cards/:cardId", a.deleteCardHandler)

		protected.GET("/cart", a.getCartHandler)
		protected.POST("/cart/items", a.addCartItemHandler)
		protected.PUT("/cart/items/:productId", a.setCartItemHandler)
		protected.DELETE("/cart/items/:productId", a.removeCartItemHandler)
		protected.POST("/cart/checkout", a.checkoutCartHandler)

		protected.POST("/feedback", a.createFeedbackHandler)
		protected.GET("/feedback", a.getMyFeedbackHandler)
		protected.PUT("/feedback/:id", a.updateFeedbackHandler)
		protected.DELETE("/feedback/:id", a.deleteFeedbackHandler)

		protected.POST("/nfts", a.createCertificateHandler)
		protected.GET("/nfts", a.getCertificatesHandler)
		protected.GET("/nfts/:tokenId", a.getCertificateHandler)

		protected.POST("/chat", a.chatHandler)
	}

	return a
}

func (a *API) Router() *gin.Engine {
	return a.r
}

// currentCustomer resolves the authenticated caller, creating the customer
// on first contact. It writes the error response itself when it returns false.
func (a *API) currentCustomer(c *gin.Context) (*customer.Customer, bool) {
	logger := middleware.GetLogger(c)

	auth0ID, ok := middleware.GetAuth0ID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return nil, false
	}

	cust, err := a.cr.GetCustomerByAuth0ID(c, auth0ID)
	if errors.Is(err, customer.ErrNotFound) {
		cust, err = a.cr.CreateCustomer(c, auth0ID)
	}
	if err != nil {
		logger.ErrorContext(c, "failed to load customer", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return nil, false
	}

	if !cust.Email.Valid {
		a.fillProfile(c, cust)
	}
	return cust, true
}

// fillProfile copies email and name from the identity provider. Failures
// leave the profile empty; the next request tries again.
func (a *API) fillProfile(c *gin.Context, cust *customer.Customer) {
	if a.userInfo == nil {
		return
	}
	logger := middleware.GetLogger(c)

	token := middleware.BearerToken(c)
	if token == "" {
		return
	}
	info, err := a.userInfo.GetUserInfo(c, token)
	if err != nil {
		logger.WarnContext(c, "failed to fetch user profile", "error", err)
		return
	}
	if info.Email == "" {
		return
	}

	name := info.DisplayName()
	if err := a.cr.UpdateProfile(c, cust.Auth0ID, info.Email, name); err != nil {
		logger.WarnContext(c, "failed to store user profile", "error", err)
		return
	}
	cust.Email.String, cust.Email.Valid = info.Email, true
	cust.Name.String, cust.Name.Valid = name, name != ""
}

// uuidParam parses a path parameter, answering 400 when it is malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ID", "message": "Invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func internalError(c *gin.Context, msg string, err error) {
	middleware.GetLogger(c).ErrorContext(c, msg, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"code": "SERVICE_UNAVAILABLE", "message": what + " is not configured"})
}

type location struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

func toLocation(p pgtype.Point) *location {
	if !p.Valid {
		return nil
	}
	return &location{Lat: p.P.X, Lng: p.P.Y}
}
