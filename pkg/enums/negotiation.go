package enums

import (
	"fmt"
	"strings"
)

// NegotiationStatus tracks the lifecycle of a price negotiation.
type NegotiationStatus string

const (
	NegotiationStatusActive    NegotiationStatus = "active"
	NegotiationStatusAccepted  NegotiationStatus = "accepted"
	NegotiationStatusRejected  NegotiationStatus = "rejected"
	NegotiationStatusExpired   NegotiationStatus = "expired"
	NegotiationStatusCancelled NegotiationStatus = "cancelled"
)

var validNegotiationStatuses = []NegotiationStatus{
	NegotiationStatusActive,
	NegotiationStatusAccepted,
	NegotiationStatusRejected,
	NegotiationStatusExpired,
	NegotiationStatusCancelled,
}

// String implements fmt.Stringer.
func (s NegotiationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known NegotiationStatus.
func (s NegotiationStatus) IsValid() bool {
	for _, candidate := range validNegotiationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions may leave this status.
func (s NegotiationStatus) IsTerminal() bool {
	return s.IsValid() && s != NegotiationStatusActive
}

// ParseNegotiationStatus converts raw input into a NegotiationStatus.
func ParseNegotiationStatus(value string) (NegotiationStatus, error) {
	for _, candidate := range validNegotiationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid negotiation status %q", value)
}

// AccountRole identifies the kind of marketplace account acting in a request.
type AccountRole string

const (
	AccountRoleClient AccountRole = "client"
	AccountRoleVendor AccountRole = "vendor"
)

var validAccountRoles = []AccountRole{AccountRoleClient, AccountRoleVendor}

func (r AccountRole) String() string {
	return string(r)
}

func (r AccountRole) IsValid() bool {
	for _, candidate := range validAccountRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAccountRole converts raw input into an AccountRole.
func ParseAccountRole(value string) (AccountRole, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validAccountRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account role %q", value)
}

// OfferRole is the side of the negotiation an offer was authored from.
type OfferRole string

const (
	OfferRoleBuyer  OfferRole = "buyer"
	OfferRoleSeller OfferRole = "seller"
)

func (r OfferRole) String() string {
	return string(r)
}

func (r OfferRole) IsValid() bool {
	return r == OfferRoleBuyer || r == OfferRoleSeller
}

// Counterparty returns the opposite side.
func (r OfferRole) Counterparty() OfferRole {
	if r == OfferRoleBuyer {
		return OfferRoleSeller
	}
	return OfferRoleBuyer
}

// ParseOfferRole converts raw input into an OfferRole.
func ParseOfferRole(value string) (OfferRole, error) {
	switch OfferRole(strings.ToLower(strings.TrimSpace(value))) {
	case OfferRoleBuyer:
		return OfferRoleBuyer, nil
	case OfferRoleSeller:
		return OfferRoleSeller, nil
	}
	return "", fmt.Errorf("invalid offer role %q", value)
}

// NegotiationFilter selects a listing bucket. Only some buckets map to a
// single stored status.
type NegotiationFilter string

const (
	NegotiationFilterAll       NegotiationFilter = "all"
	NegotiationFilterActive    NegotiationFilter = "active"
	NegotiationFilterCompleted NegotiationFilter = "completed"
	NegotiationFilterAccepted  NegotiationFilter = "accepted"
	NegotiationFilterRejected  NegotiationFilter = "rejected"
	NegotiationFilterExpired   NegotiationFilter = "expired"
	NegotiationFilterCancelled NegotiationFilter = "cancelled"
	NegotiationFilterPaid      NegotiationFilter = "paid"
	NegotiationFilterCOD       NegotiationFilter = "cod"
)

var negotiationFilterStatuses = map[NegotiationFilter][]NegotiationStatus{
	NegotiationFilterAll:       nil,
	NegotiationFilterActive:    {NegotiationStatusActive},
	NegotiationFilterCompleted: {NegotiationStatusAccepted, NegotiationStatusRejected},
	NegotiationFilterAccepted:  {NegotiationStatusAccepted},
	NegotiationFilterRejected:  {NegotiationStatusRejected},
	NegotiationFilterExpired:   {NegotiationStatusExpired},
	NegotiationFilterCancelled: {NegotiationStatusCancelled},
	NegotiationFilterPaid:      {NegotiationStatusAccepted},
	NegotiationFilterCOD:       {NegotiationStatusAccepted},
}

func (f NegotiationFilter) String() string {
	return string(f)
}

// Statuses returns the stored statuses a filter resolves to; nil means all.
func (f NegotiationFilter) Statuses() []NegotiationStatus {
	return negotiationFilterStatuses[f]
}

// NeedsOrderContext reports whether the bucket depends on the linked order.
func (f NegotiationFilter) NeedsOrderContext() bool {
	switch f {
	case NegotiationFilterAll, NegotiationFilterAccepted, NegotiationFilterPaid, NegotiationFilterCOD:
		return true
	}
	return false
}

// ParseNegotiationFilter converts raw input into a filter; empty input means all.
func ParseNegotiationFilter(value string) (NegotiationFilter, error) {
	normalized := NegotiationFilter(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return NegotiationFilterAll, nil
	}
	if _, ok := negotiationFilterStatuses[normalized]; ok {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid negotiation filter %q", value)
}
