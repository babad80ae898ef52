package cli

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/txgate/txgate/internal/transactions"
)

var gbPrinter = message.NewPrinter(language.BritishEnglish)

// FormatGBP renders an amount the way UK users read it, e.g. £1,234.50.
func FormatGBP(m transactions.Money) string {
	return gbPrinter.Sprintf("£%v", number.Decimal(m.InexactFloat64(), number.Scale(2)))
}
