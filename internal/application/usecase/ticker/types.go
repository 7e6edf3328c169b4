package ticker

import "tickrelay/internal/application/port"

type (
	TickerSource           = port.TickerSource
	RelayPublisher         = port.RelayPublisher
	RelayListener          = port.RelayListener
	SubscriptionRepository = port.SubscriptionRepository
)
