package enums

// PaymentMethod describes how an order was settled.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

var paymentMethods = []PaymentMethod{PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool { return isOneOf(p, paymentMethods) }

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parseOneOf("payment method", value, paymentMethods)
}
