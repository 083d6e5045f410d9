package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) adminOrders(c *gin.Context) {
	orders, err := s.deps.Admin.ListOrders(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponses(orders))
}

func (s *Server) updateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, bindError(err))
		return
	}
	order, err := s.deps.Admin.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*order))
}

func (s *Server) addTracking(c *gin.Context) {
	var req addTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, bindError(err))
		return
	}
	order, err := s.deps.Admin.AddTracking(c.Request.Context(), c.Param("id"), req.TrackingLink)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*order))
}
