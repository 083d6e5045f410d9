package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) sendOTP(c *gin.Context) {
	var req sendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, bindError(err))
		return
	}
	if err := s.deps.Identity.RequestCode(c.Request.Context(), req.Email); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) verifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, bindError(err))
		return
	}
	res, err := s.deps.Identity.VerifyCode(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, verifyOTPResponse{
		Token: res.Token,
		User:  userSummary{ID: res.User.ID.String(), Email: res.User.Email},
	})
}

func (s *Server) me(c *gin.Context) {
	user, err := s.deps.Identity.Profile(c.Request.Context(), identity(c).UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileResponse{
		ID:      user.ID.String(),
		Email:   user.Email,
		Name:    user.Name,
		Phone:   user.Phone,
		Address: user.Address,
		City:    user.City,
		Pincode: user.Pincode,
	})
}
