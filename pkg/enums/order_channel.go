package enums

// OrderChannel records where an order was placed: the web shop or the
// counter. It picks which income bucket the sale lands in.
type OrderChannel string

const (
	OrderChannelWeb    OrderChannel = "web"
	OrderChannelDirect OrderChannel = "direct"
)

var orderChannels = []OrderChannel{OrderChannelWeb, OrderChannelDirect}

func (c OrderChannel) String() string { return string(c) }

func (c OrderChannel) IsValid() bool { return isOneOf(c, orderChannels) }

func ParseOrderChannel(value string) (OrderChannel, error) {
	return parseOneOf("order channel", value, orderChannels)
}
