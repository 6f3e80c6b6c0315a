package httpapi

import (
	"net/http"
	"strconv"

	"greenpulse/internal/greenpulse/models"
	"greenpulse/internal/greenpulse/service"

	"github.com/gin-gonic/gin"
)

type donationRequest struct {
	UserID          string  `json:"userId"`
	AmountCoins     float64 `json:"amountCoins"`
	BeneficiaryType string  `json:"beneficiaryType"`
	BeneficiaryID   *string `json:"beneficiaryId"`
}

func (s *Server) GetDashboard(c *gin.Context) {
	months := 0
	if raw := c.Query("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, badRequest("months", "months must be an integer"))
			return
		}
		months = n
	}

	resp, err := s.impact.Dashboard(c.Request.Context(), c.Param("userID"), months)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetLedger(c *gin.Context) {
	filter := models.ParseLedgerFilter(c.DefaultQuery("category", string(models.FilterAll)))
	txs, err := s.impact.Ledger(c.Request.Context(), c.Param("userID"), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"filter": filter, "transactions": txs})
}

func (s *Server) GetCoverage(c *gin.Context) {
	bill, err := strconv.ParseFloat(c.Query("bill"), 64)
	if err != nil {
		AbortWithError(c, badRequest("bill", "bill must be a number"))
		return
	}
	resp, err := s.impact.BillCoverage(c.Request.Context(), c.Param("userID"), bill)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetCommunityGoal(c *gin.Context) {
	resp, err := s.impact.CommunityGoal(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) PostDonation(c *gin.Context) {
	var req donationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, badRequest("body", "invalid request body"))
		return
	}

	event, err := s.donations.SubmitDonation(c.Request.Context(), service.DonationRequest{
		UserID:          req.UserID,
		AmountCoins:     req.AmountCoins,
		BeneficiaryType: models.BeneficiaryType(req.BeneficiaryType),
		BeneficiaryID:   req.BeneficiaryID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}
