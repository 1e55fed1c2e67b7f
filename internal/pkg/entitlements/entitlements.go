package entitlements

import (
	"strings"
)

type Plan string

const (
	PlanFree       Plan = "free"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// Unlimited is the sentinel for dimensions without an upper bound.
const Unlimited = -1

// Dimension names a countable tier limit.
type Dimension string

const (
	DimensionVaults    Dimension = "vaults"
	DimensionContent   Dimension = "content"
	DimensionExecutors Dimension = "executors"
)

// TierLimits describes what a subscription tier is entitled to.
type TierLimits struct {
	MaxVaults           int
	MaxContentPerVault  int
	MaxExecutors        int
	AllowedTriggerTypes []string
	VideoUploads        bool
	Encryption          bool
}

var allTriggerTypes = []string{"inactivity", "scheduled", "manual", "death_certificate", "executor_vote"}

var tierLimits = map[Plan]TierLimits{
	PlanFree: {
		MaxVaults:           3,
		MaxContentPerVault:  25,
		MaxExecutors:        3,
		AllowedTriggerTypes: []string{"inactivity"},
		VideoUploads:        false,
		Encryption:          false,
	},
	PlanPremium: {
		MaxVaults:           Unlimited,
		MaxContentPerVault:  Unlimited,
		MaxExecutors:        Unlimited,
		AllowedTriggerTypes: allTriggerTypes,
		VideoUploads:        true,
		Encryption:          true,
	},
	PlanEnterprise: {
		MaxVaults:           Unlimited,
		MaxContentPerVault:  Unlimited,
		MaxExecutors:        Unlimited,
		AllowedTriggerTypes: allTriggerTypes,
		VideoUploads:        true,
		Encryption:          true,
	},
}

// NormalizePlan maps arbitrary tier strings onto a known plan; anything
// unrecognized falls back to free.
func NormalizePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPremium):
		return PlanPremium
	case string(PlanEnterprise):
		return PlanEnterprise
	default:
		return PlanFree
	}
}

// Limits returns the limit set for a plan.
func Limits(plan Plan) TierLimits {
	if limits, ok := tierLimits[plan]; ok {
		return limits
	}
	return tierLimits[PlanFree]
}

// CheckLimit reports whether one more item fits into the given dimension at
// the current count. Unlimited dimensions always allow.
func CheckLimit(plan Plan, dimension Dimension, currentCount int) bool {
	limits := Limits(plan)

	var max int
	switch dimension {
	case DimensionVaults:
		max = limits.MaxVaults
	case DimensionContent:
		max = limits.MaxContentPerVault
	case DimensionExecutors:
		max = limits.MaxExecutors
	default:
		return true
	}

	if max == Unlimited {
		return true
	}
	return currentCount < max
}

// IsTriggerTypeAllowed reports whether the plan may use the trigger type.
func IsTriggerTypeAllowed(plan Plan, triggerType string) bool {
	for _, t := range Limits(plan).AllowedTriggerTypes {
		if t == triggerType {
			return true
		}
	}
	return false
}

// EncryptionAllowed reports whether the plan may create encrypted vaults.
func EncryptionAllowed(plan Plan) bool {
	return Limits(plan).Encryption
}

// VideoUploadsAllowed reports whether the plan may upload video content.
func VideoUploadsAllowed(plan Plan) bool {
	return Limits(plan).VideoUploads
}
