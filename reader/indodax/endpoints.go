package indodax

import (
	"fmt"
	"strings"
)

// pairPath converts a configured pair like "BTC/IDR" into the lowercase
// underscore form Indodax uses in its URLs ("btc_idr").
func pairPath(symbol string) string {
	return strings.ToLower(strings.ReplaceAll(symbol, "/", "_"))
}

func tickerURL(base, symbol string) string {
	return fmt.Sprintf("%s/%s/ticker", strings.TrimSuffix(base, "/"), pairPath(symbol))
}

func depthURL(base, symbol string) string {
	return fmt.Sprintf("%s/%s/depth", strings.TrimSuffix(base, "/"), pairPath(symbol))
}
