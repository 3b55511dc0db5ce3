package model

import (
	"fmt"
	"time"
)

// DiscoveryStatus is the review state of a merchant discovery.
type DiscoveryStatus string

// Discovery statuses. Pending is the only non-terminal status.
const (
	StatusPending   DiscoveryStatus = "pending"
	StatusConfirmed DiscoveryStatus = "confirmed"
	StatusCorrected DiscoveryStatus = "corrected"
	StatusRejected  DiscoveryStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s DiscoveryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCorrected, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s ends the review lifecycle.
func (s DiscoveryStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusCorrected || s == StatusRejected
}

// MerchantType is the coarse kind of business behind a code.
type MerchantType string

// Merchant types.
const (
	MerchantService      MerchantType = "service"
	MerchantProduct      MerchantType = "product"
	MerchantTransfer     MerchantType = "transfer"
	MerchantSubscription MerchantType = "subscription"
	MerchantMarketplace  MerchantType = "marketplace"
	MerchantOther        MerchantType = "other"
)

// ParseMerchantType maps free text onto a MerchantType, defaulting to other.
func ParseMerchantType(s string) MerchantType {
	switch MerchantType(s) {
	case MerchantService, MerchantProduct, MerchantTransfer, MerchantSubscription, MerchantMarketplace:
		return MerchantType(s)
	}
	return MerchantOther
}

// MerchantDiscovery is the persisted, reviewable inference for one code.
type MerchantDiscovery struct {
	CreatedAt         time.Time          `json:"created_at"`
	ValidatedAt       *time.Time         `json:"validated_at,omitempty"`
	UserValidatedName *string            `json:"user_validated_name,omitempty"`
	UserFeedbackNotes *string            `json:"user_feedback_notes,omitempty"`
	ContextSnapshot   TransactionContext `json:"context_snapshot"`
	ID                string             `json:"id"`
	RawCode           string             `json:"raw_code"`
	Reasoning         string             `json:"reasoning"`
	FinalInference    string             `json:"final_inference"`
	MerchantType      MerchantType       `json:"merchant_type"`
	ReasoningSummary  string             `json:"reasoning_summary"`
	Status            DiscoveryStatus    `json:"status"`
	Confidence        float64            `json:"confidence"`
	ImpactScore       float64            `json:"impact_score"`
	UsedWebSearch     bool               `json:"used_web_search"`
}

// ResolvedName returns the human-validated name when present.
func (d *MerchantDiscovery) ResolvedName() string {
	if d.UserValidatedName != nil && *d.UserValidatedName != "" {
		return *d.UserValidatedName
	}
	return d.FinalInference
}

// Confirmed reports whether a human accepted or corrected the inference.
func (d *MerchantDiscovery) Confirmed() bool {
	return d.Status == StatusConfirmed || d.Status == StatusCorrected
}

// StatusUpdate is a requested review transition.
type StatusUpdate struct {
	ValidatedName *string
	Notes         *string
	Status        DiscoveryStatus
}

// Validate checks that the update describes a legal terminal transition.
func (u StatusUpdate) Validate() error {
	if !u.Status.Terminal() {
		return fmt.Errorf("status %q is not a terminal review status", u.Status)
	}
	if u.Status == StatusCorrected && (u.ValidatedName == nil || *u.ValidatedName == "") {
		return fmt.Errorf("corrected status requires a validated name")
	}
	return nil
}

// DiscoveryResult summarizes one discovery run.
type DiscoveryResult struct {
	State            string   `json:"state"`
	Message          string   `json:"message,omitempty"`
	DiscoveryIDs     []string `json:"discovery_ids"`
	DiscoveriesCount int      `json:"discoveries_count"`
	TotalCodes       int      `json:"total_codes"`
}
