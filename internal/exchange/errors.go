package exchange

import (
	"errors"

	ccxt "github.com/ccxt/ccxt/go/v4"
)

var (
	// ErrMaintenance 表示交易所处于维护状态，本次数据拉取无法完成。
	ErrMaintenance = errors.New("exchange on maintenance")
	// ErrUnsupportedExchange 表示配置的交易所未接入。
	ErrUnsupportedExchange = errors.New("exchange not supported")
)

// IsRetryable 判断 ccxt 错误是否属于可重试的网络类错误。
func IsRetryable(err error) bool {
	var ccxtErr *ccxt.Error
	if !errors.As(err, &ccxtErr) {
		return false
	}
	switch ccxtErr.Type {
	case ccxt.NetworkErrorErrType,
		ccxt.RequestTimeoutErrType,
		ccxt.ExchangeNotAvailableErrType,
		ccxt.RateLimitExceededErrType,
		ccxt.DDoSProtectionErrType,
		ccxt.BadResponseErrType,
		ccxt.NullResponseErrType:
		return true
	default:
		return false
	}
}
