package models

// SubscriptionPlan is a user's plan tier.
type SubscriptionPlan string

const (
	PlanFree  SubscriptionPlan = "FREE"
	PlanPro   SubscriptionPlan = "PRO"
	PlanUltra SubscriptionPlan = "ULTRA"
)

// ValidPlan reports whether p is one of the known plan tiers.
func ValidPlan(p SubscriptionPlan) bool {
	switch p {
	case PlanFree, PlanPro, PlanUltra:
		return true
	}
	return false
}

// UserSettings holds per-user preferences.
type UserSettings struct {
	Notifications bool `json:"notifications"`
	DarkMode      bool `json:"darkMode"`
}

// User is the single durable record the service persists per account.
// Presence of the record means the session can auto-resume; absence means
// logged out.
type User struct {
	ID         string           `json:"id"`
	Email      string           `json:"email,omitempty"`
	Name       string           `json:"name"`
	Username   string           `json:"username,omitempty"`
	TelegramID string           `json:"telegramId,omitempty"`
	PhotoURL   string           `json:"photoUrl,omitempty"`
	Plan       SubscriptionPlan `json:"plan"`
	ScansLeft  int              `json:"scansLeft"`
	Allergies  []string         `json:"allergies"`
	Settings   UserSettings     `json:"settings"`
}

// RegisterRequest is the payload for creating a new account.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=256"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest is the email/password authentication payload.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is returned on successful authentication.
type TokenResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// UpgradeRequest asks to move the account to a new plan tier.
type UpgradeRequest struct {
	Plan SubscriptionPlan `json:"plan" binding:"required"`
}
