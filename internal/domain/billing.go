package domain

// CheckoutStatus tracks a subscription checkout through the hosted payment
// provider's lifecycle. The provider itself is an external collaborator; we
// only persist the intent and the webhook confirmation.
type CheckoutStatus string

const (
	CheckoutStatusPending CheckoutStatus = "PENDING"
	CheckoutStatusPaid    CheckoutStatus = "PAID"
	CheckoutStatusFailed  CheckoutStatus = "FAILED"
)
