package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"purescan-service/database"
	"purescan-service/history"
	"purescan-service/models"
	"purescan-service/prompt"
	"purescan-service/service"
)

// maxImageBytes caps uploaded label photos at 10 MB.
const maxImageBytes = 10 << 20

// Scan analyzes a label capture for the authenticated user. The request
// is multipart: either an "image" file part or an "ingredients" text
// field; when both are present the image wins.
func (h *Handlers) Scan(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.db.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}
		log.Errorf("Failed to load profile: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}

	if user.Plan == models.PlanFree && user.ScansLeft <= 0 {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "no scans left on the free plan"})
		return
	}

	capture, err := readCapture(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.scanner.Scan(c.Request.Context(), userID, capture)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrScanInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "a scan is already in progress"})
		case errors.Is(err, service.ErrScanAbandoned):
			c.JSON(http.StatusGone, gin.H{"error": "scan was abandoned"})
		default:
			log.Errorf("Scan failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "analysis failed"})
		}
		return
	}

	if user.Plan == models.PlanFree {
		user.ScansLeft--
		if err := h.db.SaveProfile(c.Request.Context(), user); err != nil {
			// The scan already succeeded; losing the decrement is the
			// lesser failure.
			log.Errorf("Failed to decrement scan quota: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"result":    result,
		"scansLeft": user.ScansLeft,
	})
}

// AbandonScan discards the in-flight analysis for the session, if any.
// Idempotent: abandoning with no active scan is a no-op.
func (h *Handlers) AbandonScan(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	h.scanner.Abandon(userID)
	c.JSON(http.StatusOK, gin.H{"message": "scan abandoned"})
}

// ListHistory returns the session's scan history, newest first.
func (h *Handlers) ListHistory(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	items := h.history.List(userID)
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// GetHistoryItem returns one stored result so it can be reopened without
// re-running analysis.
func (h *Handlers) GetHistoryItem(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	item, err := h.history.Get(userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "history item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history item"})
		return
	}

	c.JSON(http.StatusOK, item)
}

// readCapture extracts the image or ingredient input from the request:
// a multipart "image" file part, an "ingredients" form field, or a JSON
// body with an "ingredients" key. Exactly one capture is required.
func readCapture(c *gin.Context) (prompt.Capture, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var body struct {
			Ingredients string `json:"ingredients"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Ingredients == "" {
			return prompt.Capture{}, errors.New("provide a non-empty ingredients field")
		}
		return prompt.Capture{Ingredients: body.Ingredients}, nil
	}

	file, header, err := c.Request.FormFile("image")
	if err == nil {
		defer file.Close()
		data, readErr := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
		if readErr != nil {
			return prompt.Capture{}, errors.New("failed to read image upload")
		}
		if len(data) == 0 {
			return prompt.Capture{}, errors.New("image upload is empty")
		}
		if len(data) > maxImageBytes {
			return prompt.Capture{}, errors.New("image upload exceeds 10MB limit")
		}
		return prompt.Capture{
			ImageData: data,
			MimeType:  header.Header.Get("Content-Type"),
		}, nil
	}

	if ingredients := c.PostForm("ingredients"); ingredients != "" {
		return prompt.Capture{Ingredients: ingredients}, nil
	}

	return prompt.Capture{}, errors.New("provide an image file or an ingredients field")
}
