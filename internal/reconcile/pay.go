package reconcile

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lhn-coaching/coachsync/internal/config"
)

const currencyPrefix = "$"

var amountPrinter = message.NewPrinter(language.AmericanEnglish)

// ResolvePay returns the pay string written for a new client of coach: the
// coach's configured pay, or the default pay when the coach has none.
func ResolvePay(cfg *config.Config, coach string) string {
	raw, ok := cfg.PayFor(coach)
	if !ok {
		return cfg.DefaultPay
	}
	return NormalizePay(raw, cfg.DefaultPay)
}

// NormalizePay returns raw unchanged when it already carries the currency
// prefix. Otherwise raw is read as an amount and formatted as "$N.NN";
// values that are not amounts yield fallback.
func NormalizePay(raw, fallback string) string {
	v := strings.TrimSpace(raw)
	if strings.HasPrefix(v, currencyPrefix) {
		return v
	}

	amount, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return fallback
	}
	return currencyPrefix + amountPrinter.Sprintf("%.2f", amount)
}
