package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"purescan-service/database"
	"purescan-service/models"
)

// GetProfile returns the stored profile. A 404 means the durable record
// is absent, which clients treat as logged out.
func (h *Handlers) GetProfile(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.db.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		log.Errorf("Failed to load profile: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// profileUpdate holds the client-editable profile fields. Identity, plan
// and quota fields are owned by the server and never taken from this
// payload.
type profileUpdate struct {
	Name      string              `json:"name" binding:"required,max=256"`
	Username  string              `json:"username"`
	PhotoURL  string              `json:"photoUrl"`
	Allergies []string            `json:"allergies"`
	Settings  models.UserSettings `json:"settings"`
}

// UpdateProfile replaces the editable profile fields whole-value.
func (h *Handlers) UpdateProfile(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req profileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.db.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		log.Errorf("Failed to load profile: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}

	user.Name = req.Name
	user.Username = req.Username
	user.PhotoURL = req.PhotoURL
	user.Settings = req.Settings
	user.Allergies = req.Allergies
	if user.Allergies == nil {
		user.Allergies = []string{}
	}

	if err := h.db.SaveProfile(c.Request.Context(), user); err != nil {
		log.Errorf("Failed to save profile: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save profile"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// Upgrade moves the account to a paid plan. The payment provider call is
// best-effort in demo mode: on failure the upgrade is simulated after a
// short delay instead of surfacing an error.
func (h *Handlers) Upgrade(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req models.UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidPlan(req.Plan) || req.Plan == models.PlanFree {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan"})
		return
	}

	user, err := h.db.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		log.Errorf("Failed to load profile: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}

	simulated := false
	if err := h.chargePayment(c, userID, req.Plan); err != nil {
		if !h.cfg.DemoFallback {
			log.Errorf("Payment failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable"})
			return
		}
		log.Warnf("Payment failed, simulating success: %v", err)
		time.Sleep(h.cfg.SimulatedPaymentDelay)
		simulated = true
	}

	user.Plan = req.Plan
	// Paid plans are not metered.
	user.ScansLeft = -1

	if err := h.db.SaveProfile(c.Request.Context(), user); err != nil {
		log.Errorf("Failed to save upgraded profile: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"simulated": simulated,
		"user":      user,
	})
}

// chargePayment posts the upgrade to the external payment provider. An
// unconfigured provider URL counts as a failure so demo mode can take
// over.
func (h *Handlers) chargePayment(c *gin.Context, userID string, plan models.SubscriptionPlan) error {
	if h.cfg.PaymentURL == "" {
		return errors.New("payment provider not configured")
	}

	body, err := json.Marshal(map[string]string{
		"user_id": userID,
		"plan":    string(plan),
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, h.cfg.PaymentURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.payments.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("payment provider returned " + resp.Status)
	}
	return nil
}
