package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/sanujarubasinghe/cyclechain/bike"
	"github.com/sanujarubasinghe/cyclechain/cart"
	"github.com/sanujarubasinghe/cyclechain/customer"
	"github.com/sanujarubasinghe/cyclechain/feedback"
	"github.com/sanujarubasinghe/cyclechain/internal/auth0"
	"github.com/sanujarubasinghe/cyclechain/internal/checkout"
	"github.com/sanujarubasinghe/cyclechain/internal/lock"
	"github.com/sanujarubasinghe/cyclechain/internal/mailer"
	"github.com/sanujarubasinghe/cyclechain/internal/middleware"
	"github.com/sanujarubasinghe/cyclechain/nft"
	"github.com/sanujarubasinghe/cyclechain/payment"
	"github.com/sanujarubasinghe/cyclechain/product"
	"github.com/sanujarubasinghe/cyclechain/reservation"
	"github.com/sanujarubasinghe/cyclechain/station"
)

type fakeBikes struct {
	mu    sync.Mutex
	bikes map[uuid.UUID]*bike.Bike
}

func (f *fakeBikes) GetBikes(_ context.Context, stationID *uuid.UUID) ([]bike.Bike, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bike.Bike
	for _, b := range f.bikes {
		if stationID != nil && (b.StationID == nil || *b.StationID != *stationID) {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (f *fakeBikes) GetBike(_ context.Context, id uuid.UUID) (bike.Bike, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bikes[id]
	if !ok {
		return bike.Bike{}, bike.ErrNotFound
	}
	return *b, nil
}

func (f *fakeBikes) GetBikeByLabel(_ context.Context, label string) (bike.Bike, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bikes {
		if b.Label == label {
			return *b, nil
		}
	}
	return bike.Bike{}, bike.ErrNotFound
}

func (f *fakeBikes) SetLocked(_ context.Context, id uuid.UUID, locked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bikes[id]
	if !ok {
		return bike.ErrNotFound
	}
	b.IsLocked = locked
	return nil
}

type fakeStations struct {
	stations []station.Station
}

func (f *fakeStations) GetStations(context.Context) ([]station.Station, error) {
	return f.stations, nil
}

func (f *fakeStations) GetStation(_ context.Context, id uuid.UUID) (station.Station, error) {
	for _, s := range f.stations {
		if s.ID == id {
			return s, nil
		}
	}
	return station.Station{}, station.ErrNotFound
}

type fakeCustomers struct {
	mu        sync.Mutex
	customers map[string]*customer.Customer
	cards     map[uuid.UUID]customer.Card
	// addErr makes AddLoyaltyPoints fail, as a lost connection would.
	addErr error
}

func (f *fakeCustomers) GetCustomerByAuth0ID(_ context.Context, auth0ID string) (*customer.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[auth0ID]
	if !ok {
		return nil, customer.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCustomers) CreateCustomer(_ context.Context, auth0ID string) (*customer.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.customers[auth0ID]; ok {
		cp := *c
		return &cp, nil
	}
	c := &customer.Customer{ID: uuid.New(), Auth0ID: auth0ID, CreatedAt: time.Now()}
	f.customers[auth0ID] = c
	cp := *c
	return &cp, nil
}

func (f *fakeCustomers) UpdateProfile(_ context.Context, auth0ID, email, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[auth0ID]
	if !ok {
		return customer.ErrNotFound
	}
	c.Email.String, c.Email.Valid = email, email != ""
	c.Name.String, c.Name.Valid = name, name != ""
	return nil
}

func (f *fakeCustomers) byID(id uuid.UUID) *customer.Customer {
	for _, c := range f.customers {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (f *fakeCustomers) SetLoyaltyPoints(_ context.Context, id uuid.UUID, points int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.byID(id)
	if c == nil {
		return customer.ErrNotFound
	}
	c.LoyaltyPoints = points
	return nil
}

func (f *fakeCustomers) AddLoyaltyPoints(_ context.Context, id uuid.UUID, points int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	c := f.byID(id)
	if c == nil {
		return customer.ErrNotFound
	}
	c.LoyaltyPoints += points
	return nil
}

func (f *fakeCustomers) GetCards(_ context.Context, customerID uuid.UUID) ([]customer.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []customer.Card
	for _, card := range f.cards {
		if card.CustomerID == customerID {
			out = append(out, card)
		}
	}
	return out, nil
}

func (f *fakeCustomers) AddCard(_ context.Context, card *customer.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	card.CreatedAt = time.Now()
	f.cards[card.ID] = *card
	return nil
}

func (f *fakeCustomers) DeleteCard(_ context.Context, customerID, cardID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[cardID]
	if !ok || card.CustomerID != customerID {
		return customer.ErrCardNotFound
	}
	delete(f.cards, cardID)
	return nil
}

type fakeReservations struct {
	mu    sync.Mutex
	bikes *fakeBikes
	res   map[uuid.UUID]*reservation.Reservation
}

func (f *fakeReservations) Create(_ context.Context, r *reservation.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bikes.mu.Lock()
	defer f.bikes.mu.Unlock()

	b, ok := f.bikes.bikes[r.BikeID]
	if !ok {
		return reservation.ErrBikeNotFound
	}
	if !b.Available {
		return reservation.ErrBikeUnavailable
	}
	for _, other := range f.res {
		if other.CustomerID == r.CustomerID && other.Status.Active() {
			return reservation.ErrActiveReservation
		}
	}
	r.Status = reservation.StatusReserved
	r.CreatedAt = time.Now()
	cp := *r
	f.res[r.ID] = &cp
	b.Available = false
	return nil
}

func (f *fakeReservations) GetByID(_ context.Context, id uuid.UUID) (reservation.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.res[id]
	if !ok {
		return reservation.Reservation{}, reservation.ErrNotFound
	}
	return *r, nil
}

func (f *fakeReservations) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]reservation.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []reservation.Reservation
	for _, r := range f.res {
		if r.CustomerID == customerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReservations) SetUnlockCode(_ context.Context, id uuid.UUID, code string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.res[id]
	if !ok || r.Status != reservation.StatusReserved {
		return reservation.ErrInvalidTransition
	}
	r.UnlockCode.String, r.UnlockCode.Valid = code, true
	r.UnlockCodeExpiresAt.Time, r.UnlockCodeExpiresAt.Valid = expiresAt, true
	return nil
}

func (f *fakeReservations) Start(_ context.Context, id uuid.UUID, at pgtype.Point) (reservation.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.res[id]
	if !ok || r.Status != reservation.StatusReserved {
		return reservation.Reservation{}, reservation.ErrInvalidTransition
	}
	r.Status = reservation.StatusInProgress
	r.UnlockCode.Valid = false
	r.UnlockCodeExpiresAt.Valid = false
	r.StartTime.Time, r.StartTime.Valid = time.Now(), true
	r.StartLocation = at
	return *r, nil
}

func (f *fakeReservations) End(_ context.Context, id uuid.UUID, c reservation.Completion) (reservation.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.res[id]
	if !ok || r.Status != reservation.StatusInProgress {
		return reservation.Reservation{}, reservation.ErrInvalidTransition
	}
	r.Status = reservation.StatusPaymentPending
	r.EndTime.Time, r.EndTime.Valid = time.Now(), true
	r.EndLocation = c.EndLocation
	r.DistanceKm.Float64, r.DistanceKm.Valid = c.DistanceKm, true
	r.Cost = decimal.NewNullDecimal(c.Cost)

	f.bikes.mu.Lock()
	if b, ok := f.bikes.bikes[r.BikeID]; ok {
		b.Available = true
		b.IsLocked = true
	}
	f.bikes.mu.Unlock()
	return *r, nil
}

func (f *fakeReservations) MarkPaid(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.res[id]
	if !ok || r.Status != reservation.StatusPaymentPending {
		return reservation.ErrInvalidTransition
	}
	r.Status = reservation.StatusPaid
	return nil
}

func (f *fakeReservations) Cancel(_ context.Context, id uuid.UUID) (reservation.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.res[id]
	if !ok || r.Status != reservation.StatusReserved {
		return reservation.Reservation{}, reservation.ErrInvalidTransition
	}
	r.Status = reservation.StatusCancelled
	f.bikes.mu.Lock()
	if b, ok := f.bikes.bikes[r.BikeID]; ok {
		b.Available = true
	}
	f.bikes.mu.Unlock()
	return *r, nil
}

func (f *fakeReservations) CompletedDistances(_ context.Context, customerID uuid.UUID) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []float64
	for _, r := range f.res {
		if r.CustomerID == customerID && r.Status.Completed() {
			out = append(out, r.DistanceKm.Float64)
		}
	}
	return out, nil
}

type fakePayments struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*payment.Payment

	reservations *fakeReservations
	products     *fakeProducts
	carts        *fakeCarts
}

func (f *fakePayments) Create(_ context.Context, p *payment.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	for i := range p.Items {
		p.Items[i].PaymentID = p.ID
	}
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakePayments) GetByID(_ context.Context, id uuid.UUID) (payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return payment.Payment{}, payment.ErrNotFound
	}
	return *p, nil
}

func (f *fakePayments) GetByTransactionID(_ context.Context, transactionID string) (payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.TransactionID.Valid && p.TransactionID.String == transactionID {
			return *p, nil
		}
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (f *fakePayments) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []payment.Payment
	for _, p := range f.payments {
		if p.CustomerID == customerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePayments) Attach(_ context.Context, id uuid.UUID, transactionID, checkoutURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return payment.ErrNotFound
	}
	p.TransactionID.String, p.TransactionID.Valid = transactionID, transactionID != ""
	p.CheckoutURL.String, p.CheckoutURL.Valid = checkoutURL, checkoutURL != ""
	return nil
}

func (f *fakePayments) Finalize(_ context.Context, id uuid.UUID, status payment.Status) (payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return payment.Payment{}, payment.ErrNotFound
	}
	if p.Status != payment.StatusPending {
		return payment.Payment{}, payment.ErrAlreadyFinalized
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	return *p, nil
}

func (f *fakePayments) Complete(ctx context.Context, id uuid.UUID) (payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return payment.Payment{}, payment.ErrNotFound
	}
	if p.Status != payment.StatusPending {
		return payment.Payment{}, payment.ErrAlreadyFinalized
	}

	var err error
	if p.IsOrder() {
		changes := make([]product.StockChange, 0, len(p.Items))
		for _, i := range p.Items {
			changes = append(changes, product.StockChange{ProductID: i.ProductID, Quantity: i.Quantity})
		}
		if err = f.products.DecrementStock(ctx, changes); err == nil {
			err = f.carts.Clear(ctx, p.CustomerID)
		}
	} else {
		err = f.reservations.MarkPaid(ctx, p.ReservationID.UUID)
	}

	p.UpdatedAt = time.Now()
	if err != nil {
		p.Status = payment.StatusFailed
		return payment.Payment{}, err
	}
	p.Status = payment.StatusCompleted
	return *p, nil
}

type fakeProducts struct {
	mu       sync.Mutex
	products map[uuid.UUID]*product.Product
}

func (f *fakeProducts) GetProducts(_ context.Context, category product.Category) ([]product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []product.Product
	for _, p := range f.products {
		if category == "" || p.Category == category {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeProducts) GetProduct(_ context.Context, id uuid.UUID) (product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return product.Product{}, product.ErrNotFound
	}
	return *p, nil
}

func (f *fakeProducts) DecrementStock(_ context.Context, changes []product.StockChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range changes {
		p, ok := f.products[c.ProductID]
		if !ok || p.Stock < c.Quantity {
			return product.ErrOutOfStock
		}
	}
	for _, c := range changes {
		f.products[c.ProductID].Stock -= c.Quantity
	}
	return nil
}

type fakeCarts struct {
	mu       sync.Mutex
	products *fakeProducts
	lines    map[uuid.UUID]map[uuid.UUID]int
}

func (f *fakeCarts) GetCart(_ context.Context, customerID uuid.UUID) ([]cart.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products.mu.Lock()
	defer f.products.mu.Unlock()
	var out []cart.Item
	for productID, qty := range f.lines[customerID] {
		p := f.products.products[productID]
		out = append(out, cart.Item{
			CustomerID: customerID,
			ProductID:  productID,
			Quantity:   qty,
			Name:       p.Name,
			UnitPrice:  p.Price,
			Stock:      p.Stock,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeCarts) AddItem(_ context.Context, customerID, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return cart.ErrInvalidQuantity
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lines[customerID] == nil {
		f.lines[customerID] = map[uuid.UUID]int{}
	}
	f.lines[customerID][productID] += quantity
	return nil
}

func (f *fakeCarts) SetItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) error {
	if quantity < 0 {
		return cart.ErrInvalidQuantity
	}
	if quantity == 0 {
		return f.RemoveItem(ctx, customerID, productID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lines[customerID] == nil {
		f.lines[customerID] = map[uuid.UUID]int{}
	}
	f.lines[customerID][productID] = quantity
	return nil
}

func (f *fakeCarts) RemoveItem(_ context.Context, customerID, productID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lines[customerID], productID)
	return nil
}

func (f *fakeCarts) Clear(_ context.Context, customerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lines, customerID)
	return nil
}

type fakeFeedback struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*feedback.Feedback
}

func (f *fakeFeedback) Create(_ context.Context, fb *feedback.Feedback) error {
	if err := fb.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fb.CreatedAt = time.Now()
	fb.UpdatedAt = fb.CreatedAt
	cp := *fb
	f.entries[fb.ID] = &cp
	return nil
}

func (f *fakeFeedback) GetByID(_ context.Context, id uuid.UUID) (feedback.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fb, ok := f.entries[id]
	if !ok {
		return feedback.Feedback{}, feedback.ErrNotFound
	}
	return *fb, nil
}

func (f *fakeFeedback) Update(_ context.Context, fb *feedback.Feedback) error {
	if err := fb.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.entries[fb.ID]
	if !ok {
		return feedback.ErrNotFound
	}
	stored.Rating = fb.Rating
	stored.Comment = fb.Comment
	stored.UpdatedAt = time.Now()
	*fb = *stored
	return nil
}

func (f *fakeFeedback) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[id]; !ok {
		return feedback.ErrNotFound
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeFeedback) list(match func(*feedback.Feedback) bool) []feedback.Feedback {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []feedback.Feedback
	for _, fb := range f.entries {
		if match(fb) {
			out = append(out, *fb)
		}
	}
	return out
}

func (f *fakeFeedback) ListByBike(_ context.Context, bikeID uuid.UUID) ([]feedback.Feedback, error) {
	return f.list(func(fb *feedback.Feedback) bool { return fb.BikeID == bikeID }), nil
}

func (f *fakeFeedback) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]feedback.Feedback, error) {
	return f.list(func(fb *feedback.Feedback) bool { return fb.CustomerID == customerID }), nil
}

type fakeCertificates struct {
	mu    sync.Mutex
	certs map[string]nft.Certificate
}

func (f *fakeCertificates) Insert(_ context.Context, c *nft.Certificate) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.certs[c.TokenID]; ok {
		return nft.ErrDuplicateTokenID
	}
	f.certs[c.TokenID] = *c
	return nil
}

func (f *fakeCertificates) FindByOwner(_ context.Context, email string) ([]nft.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []nft.Certificate
	for _, c := range f.certs {
		if c.OwnerEmail == email {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCertificates) FindByTokenID(_ context.Context, tokenID string) (nft.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.certs[tokenID]
	if !ok {
		return nft.Certificate{}, nft.ErrNotFound
	}
	return c, nil
}

type sentCommand struct {
	BikeID  string
	Command lock.Command
}

type fakeLocks struct {
	mu   sync.Mutex
	sent []sentCommand
	err  error
}

func (f *fakeLocks) Send(_ context.Context, bikeID string, cmd lock.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentCommand{BikeID: bikeID, Command: cmd})
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.UnlockCode
	err  error
}

func (f *fakeMailer) SendUnlockCode(_ context.Context, msg mailer.UnlockCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no unlock code was mailed")
	}
	return f.sent[len(f.sent)-1].Code
}

var errBadSignature = errors.New("bad signature")

type fakeCheckout struct {
	mu       sync.Mutex
	requests []checkout.Request
	err      error
	event    checkout.Event
}

func (f *fakeCheckout) CreateSession(_ context.Context, req checkout.Request) (checkout.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return checkout.Session{}, f.err
	}
	f.requests = append(f.requests, req)
	id := "cs_test_" + req.PaymentID
	return checkout.Session{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (f *fakeCheckout) ParseWebhook(_ []byte, signature string) (checkout.Event, error) {
	if signature != "valid" {
		return checkout.Event{}, errBadSignature
	}
	return f.event, nil
}

type fakeAssistant struct {
	chunks []string
	err    error
	prompt string
}

func (f *fakeAssistant) Stream(_ context.Context, prompt string, w io.Writer) error {
	f.prompt = prompt
	for _, c := range f.chunks {
		if _, err := io.WriteString(w, c); err != nil {
			return err
		}
	}
	return f.err
}

// fakeAuthMiddleware trusts the X-User-ID header.
func fakeAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
			return
		}
		middleware.SetAuth0ID(c, userID)
		c.Next()
	}
}

type testEnv struct {
	api *API

	bikes        *fakeBikes
	stations     *fakeStations
	customers    *fakeCustomers
	reservations *fakeReservations
	payments     *fakePayments
	products     *fakeProducts
	carts        *fakeCarts
	feedback     *fakeFeedback
	certificates *fakeCertificates

	locks     *fakeLocks
	mail      *fakeMailer
	checkout  *fakeCheckout
	assistant *fakeAssistant
	userInfo  *auth0.FakeClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bikes := &fakeBikes{bikes: map[uuid.UUID]*bike.Bike{}}
	products := &fakeProducts{products: map[uuid.UUID]*product.Product{}}
	reservations := &fakeReservations{bikes: bikes, res: map[uuid.UUID]*reservation.Reservation{}}
	carts := &fakeCarts{products: products, lines: map[uuid.UUID]map[uuid.UUID]int{}}
	env := &testEnv{
		bikes:        bikes,
		stations:     &fakeStations{},
		customers:    &fakeCustomers{customers: map[string]*customer.Customer{}, cards: map[uuid.UUID]customer.Card{}},
		reservations: reservations,
		payments: &fakePayments{
			payments:     map[uuid.UUID]*payment.Payment{},
			reservations: reservations,
			products:     products,
			carts:        carts,
		},
		products:     products,
		carts:        carts,
		feedback:     &fakeFeedback{entries: map[uuid.UUID]*feedback.Feedback{}},
		certificates: &fakeCertificates{certs: map[string]nft.Certificate{}},
		locks:        &fakeLocks{},
		mail:         &fakeMailer{},
		checkout:     &fakeCheckout{},
		assistant:    &fakeAssistant{},
		userInfo:     auth0.NewFakeClient(),
	}

	env.api = New(Stores{
		Bikes:        env.bikes,
		Stations:     env.stations,
		Customers:    env.customers,
		Reservations: env.reservations,
		Payments:     env.payments,
		Products:     env.products,
		Carts:        env.carts,
		Feedback:     env.feedback,
		Certificates: env.certificates,
	}, Services{
		Locks:     env.locks,
		Mail:      env.mail,
		Checkout:  env.checkout,
		Assistant: env.assistant,
		UserInfo:  env.userInfo,
	}, Config{
		Auth:             fakeAuthMiddleware(),
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		Currency:         "lkr",
		CryptoPaymentURL: "https://wallet.example/pay",
		QRPayBaseURL:     "cyclechain://pay",
	})
	return env
}

// user registers an identity whose profile the fake identity provider knows.
func (e *testEnv) user(id string) string {
	e.userInfo.AddUser("token-"+id, &auth0.UserInfo{Sub: id, Email: id + "@example.com", Name: "Rider " + id})
	return id
}

func (e *testEnv) customerID(t *testing.T, user string) uuid.UUID {
	t.Helper()
	c, err := e.customers.GetCustomerByAuth0ID(context.Background(), user)
	if err != nil {
		t.Fatalf("customer %s: %v", user, err)
	}
	return c.ID
}

func (e *testEnv) addBike(label string) bike.Bike {
	b := &bike.Bike{
		ID:           uuid.New(),
		Label:        label,
		Name:         "Bike " + label,
		Type:         bike.TypeCity,
		Location:     pgtype.Point{P: pgtype.Vec2{X: 6.9271, Y: 79.8612}, Valid: true},
		IsLocked:     true,
		Available:    true,
		BatteryLevel: 90,
		PricePerKm:   decimal.NewFromInt(50),
	}
	e.bikes.mu.Lock()
	e.bikes.bikes[b.ID] = b
	e.bikes.mu.Unlock()
	return *b
}

func (e *testEnv) bike(t *testing.T, id uuid.UUID) bike.Bike {
	t.Helper()
	b, err := e.bikes.GetBike(context.Background(), id)
	if err != nil {
		t.Fatalf("bike %s: %v", id, err)
	}
	return b
}

func (e *testEnv) reservation(t *testing.T, id uuid.UUID) reservation.Reservation {
	t.Helper()
	r, err := e.reservations.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reservation %s: %v", id, err)
	}
	return r
}

func (e *testEnv) addProduct(name string, price int64, stock int) product.Product {
	p := &product.Product{
		ID:       uuid.New(),
		Name:     name,
		Category: product.CategoryAccessory,
		Price:    decimal.NewFromInt(price),
		Stock:    stock,
	}
	e.products.mu.Lock()
	e.products.products[p.ID] = p
	e.products.mu.Unlock()
	return *p
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
		req.Header.Set("Authorization", "Bearer token-"+user)
	}
	w := httptest.NewRecorder()
	e.api.Router().ServeHTTP(w, req)
	return w
}

func (e *testEnv) doRaw(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
		req.Header.Set("Authorization", "Bearer token-"+user)
	}
	w := httptest.NewRecorder()
	e.api.Router().ServeHTTP(w, req)
	return w
}

func (e *testEnv) doRawSigned(t *testing.T, path, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)
	w := httptest.NewRecorder()
	e.api.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func expectCode(t *testing.T, w *httptest.ResponseRecorder, want string) {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	decode(t, w, &body)
	if body.Code != want {
		t.Errorf("expected error code %s, got %s", want, spew.Sdump(w.Body.String()))
	}
}

// reserve creates a reservation for user on b and returns its id.
func (e *testEnv) reserve(t *testing.T, user string, b bike.Bike) uuid.UUID {
	t.Helper()
	w := e.do(t, http.MethodPost, "/reservations", user, gin.H{"bikeId": b.ID})
	expectStatus(t, w, http.StatusCreated)
	var resp reservationResponse
	decode(t, w, &resp)
	return resp.ID
}

// startRide reserves b and takes the reservation through unlock code and start.
func (e *testEnv) startRide(t *testing.T, user string, b bike.Bike) uuid.UUID {
	t.Helper()
	id := e.reserve(t, user, b)
	expectStatus(t, e.do(t, http.MethodPost, "/reservations/"+id.String()+"/unlock-code", user, nil), http.StatusOK)
	w := e.do(t, http.MethodPost, "/reservations/"+id.String()+"/start", user, gin.H{"code": e.mail.lastCode(t)})
	expectStatus(t, w, http.StatusOK)
	return id
}

// endRide runs a full ride and leaves it awaiting payment.
func (e *testEnv) endRide(t *testing.T, user string, b bike.Bike) uuid.UUID {
	t.Helper()
	id := e.startRide(t, user, b)
	expectStatus(t, e.do(t, http.MethodPost, "/reservations/"+id.String()+"/end", user, nil), http.StatusOK)
	return id
}
