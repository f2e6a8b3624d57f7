package models

// Service types offered for booking. The slot lock key space is partitioned
// by these values, so they are part of the wire contract and must stay stable.
const (
	ServiceQuickStampLocal    = "QUICK_STAMP_LOCAL"
	ServiceStandardNotary     = "STANDARD_NOTARY"
	ServiceExtendedHours      = "EXTENDED_HOURS"
	ServiceLoanSigning        = "LOAN_SIGNING"
	ServiceRONServices        = "RON_SERVICES"
	ServiceBusinessEssentials = "BUSINESS_ESSENTIALS"
	ServiceBusinessGrowth     = "BUSINESS_GROWTH"
)

var serviceTypes = map[string]struct{}{
	ServiceQuickStampLocal:    {},
	ServiceStandardNotary:     {},
	ServiceExtendedHours:      {},
	ServiceLoanSigning:        {},
	ServiceRONServices:        {},
	ServiceBusinessEssentials: {},
	ServiceBusinessGrowth:     {},
}

// IsServiceType reports whether s is one of the offered service categories.
func IsServiceType(s string) bool {
	_, ok := serviceTypes[s]
	return ok
}

// ServiceTypes returns the list of offered service categories.
func ServiceTypes() []string {
	out := make([]string, 0, len(serviceTypes))
	for s := range serviceTypes {
		out = append(out, s)
	}
	return out
}

const (
	// MinEstimatedDuration минимальная длительность визита в минутах
	MinEstimatedDuration = 15

	// MaxEstimatedDuration максимальная длительность визита в минутах
	MaxEstimatedDuration = 180

	// DefaultEstimatedDuration длительность визита по умолчанию
	DefaultEstimatedDuration = 60

	// MaxExtensionReasonLen предельная длина причины продления
	MaxExtensionReasonLen = 200
)

// SlotUpdatesChannel is the pub/sub channel carrying availability broadcasts.
const SlotUpdatesChannel = "slot_updates"
