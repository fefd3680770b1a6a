package enums

import "fmt"

// PlanOrderStatus is the operator-managed fulfilment state of a plan order.
type PlanOrderStatus string

const (
	PlanOrderStatusPending   PlanOrderStatus = "pending"
	PlanOrderStatusPreparing PlanOrderStatus = "preparing"
	PlanOrderStatusDelivered PlanOrderStatus = "delivered"
	PlanOrderStatusCanceled  PlanOrderStatus = "canceled"
)

var validPlanOrderStatuses = []PlanOrderStatus{
	PlanOrderStatusPending,
	PlanOrderStatusPreparing,
	PlanOrderStatusDelivered,
	PlanOrderStatusCanceled,
}

// String implements fmt.Stringer.
func (p PlanOrderStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PlanOrderStatus.
func (p PlanOrderStatus) IsValid() bool {
	for _, candidate := range validPlanOrderStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlanOrderStatus converts raw input into a PlanOrderStatus.
func ParsePlanOrderStatus(value string) (PlanOrderStatus, error) {
	for _, candidate := range validPlanOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan order status %q", value)
}
