package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/service"
)

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, bindError(err))
		return
	}
	res, err := s.deps.Orders.CreateOrder(c.Request.Context(), identity(c).UserID, service.CreateOrderInput{
		Items:           req.items(),
		ShippingAddress: req.ShippingAddress.toDomain(),
		CouponCode:      req.CouponCode,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, createOrderResponse{OrderID: res.OrderID, PaymentURL: res.PaymentURL})
}

func (s *Server) myOrders(c *gin.Context) {
	orders, err := s.deps.Orders.ListForUser(c.Request.Context(), identity(c).UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponses(orders))
}

func (s *Server) applyCoupon(c *gin.Context) {
	var req applyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, bindError(err))
		return
	}
	coupon, err := s.deps.Orders.ApplyCoupon(c.Request.Context(), req.Code)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, couponResponse{Code: coupon.Code, Discount: money(coupon.Discount)})
}
