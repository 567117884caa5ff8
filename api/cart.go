package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sanujarubasinghe/cyclechain/cart"
	"github.com/sanujarubasinghe/cyclechain/payment"
	"github.com/sanujarubasinghe/cyclechain/product"
)

type cartItemResponse struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Total     decimal.Decimal `json:"total"`
	InStock   bool            `json:"inStock"`
}

type cartResponse struct {
	Items    []cartItemResponse `json:"items"`
	Total    decimal.Decimal    `json:"total"`
	Currency string             `json:"currency"`
}

func (a *API) toCartResponse(items []cart.Item) cartResponse {
	resp := cartResponse{
		Items:    make([]cartItemResponse, 0, len(items)),
		Total:    cart.Total(items),
		Currency: a.cfg.Currency,
	}
	for _, i := range items {
		resp.Items = append(resp.Items, cartItemResponse{
			ProductID: i.ProductID,
			Name:      i.Name,
			Quantity:  i.Quantity,
			UnitPrice: i.UnitPrice,
			Total:     i.Total(),
			InStock:   i.Quantity <= i.Stock,
		})
	}
	return resp
}

// respondCart answers with the caller's current cart.
func (a *API) respondCart(c *gin.Context, customerID uuid.UUID, status int) {
	items, err := a.cart.GetCart(c, customerID)
	if err != nil {
		internalError(c, "failed to load cart", err)
		return
	}
	c.JSON(status, a.toCartResponse(items))
}

func (a *API) getCartHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}
	a.respondCart(c, cust.ID, http.StatusOK)
}

type addCartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity"`
}

func (a *API) addCartItemHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}

	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ID", "message": "Invalid productId"})
		return
	}

	if _, err := a.prod.GetProduct(c, productID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "PRODUCT_NOT_FOUND", "message": "Product not found"})
			return
		}
		internalError(c, "failed to get product", err)
		return
	}

	err = a.cart.AddItem(c, cust.ID, productID, req.Quantity)
	if errors.Is(err, cart.ErrInvalidQuantity) {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_QUANTITY", "message": err.Error()})
		return
	}
	if err != nil {
		internalError(c, "failed to add cart item", err)
		return
	}

	a.respondCart(c, cust.ID, http.StatusOK)
}

type setCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (a *API) setCartItemHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}
	productID, ok := uuidParam(c, "productId")
	if !ok {
		return
	}

	var req setCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if *req.Quantity > 0 {
		if _, err := a.prod.GetProduct(c, productID); err != nil {
			if errors.Is(err, product.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": "PRODUCT_NOT_FOUND", "message": "Product not found"})
				return
			}
			internalError(c, "failed to get product", err)
			return
		}
	}

	err := a.cart.SetItem(c, cust.ID, productID, *req.Quantity)
	if errors.Is(err, cart.ErrInvalidQuantity) {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_QUANTITY", "message": err.Error()})
		return
	}
	if err != nil {
		internalError(c, "failed to update cart item", err)
		return
	}

	a.respondCart(c, cust.ID, http.StatusOK)
}

func (a *API) removeCartItemHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}
	productID, ok := uuidParam(c, "productId")
	if !ok {
		return
	}

	if err := a.cart.RemoveItem(c, cust.ID, productID); err != nil {
		internalError(c, "failed to remove cart item", err)
		return
	}

	a.respondCart(c, cust.ID, http.StatusOK)
}

type checkoutCartRequest struct {
	Method string `json:"method" binding:"required"`
}

// checkoutCartHandler turns the cart into an order payment. The cart is only
// cleared, and stock only taken, once the payment completes.
func (a *API) checkoutCartHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}

	var req checkoutCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	method := payment.Method(req.Method)
	if !method.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"code": "UNSUPPORTED_METHOD", "message": payment.ErrUnsupportedMethod.Error()})
		return
	}

	items, err := a.cart.GetCart(c, cust.ID)
	if err != nil {
		internalError(c, "failed to load cart", err)
		return
	}
	if len(items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "CART_EMPTY", "message": cart.ErrEmpty.Error()})
		return
	}
	if short := cart.Shortages(items); len(short) > 0 {
		names := make([]string, 0, len(short))
		for _, i := range short {
			names = append(names, i.Name)
		}
		c.JSON(http.StatusConflict, gin.H{"code": "OUT_OF_STOCK", "message": "Some items are not in stock", "items": names})
		return
	}

	p := payment.Payment{
		ID:         uuid.New(),
		CustomerID: cust.ID,
		Amount:     cart.Total(items),
		Currency:   a.cfg.Currency,
		Method:     method,
		Status:     payment.StatusPending,
		Items:      make([]payment.Item, 0, len(items)),
	}
	for _, i := range items {
		p.Items = append(p.Items, payment.Item{
			ProductID: i.ProductID,
			Name:      i.Name,
			Quantity:  i.Quantity,
			UnitPrice: i.UnitPrice,
		})
	}
	if err := a.pr.Create(c, &p); err != nil {
		internalError(c, "failed to create order payment", err)
		return
	}

	a.processPayment(c, cust, p)
}
