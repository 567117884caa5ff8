package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// loyaltyHandler recomputes the caller's points from ride history. GET and
// the explicit recalculate route behave the same; repeating either with no
// new rides returns the same total.
func (a *API) loyaltyHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}

	summary, err := a.loyalty.Recalculate(c, cust.ID)
	if err != nil {
		internalError(c, "failed to recalculate loyalty points", err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
