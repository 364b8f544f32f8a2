package main

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// moneyFormatter renders whole-rupee amounts with locale digit grouping.
type moneyFormatter struct {
	printer *message.Printer
}

func newMoneyFormatter() moneyFormatter {
	return moneyFormatter{printer: message.NewPrinter(language.English)}
}

func (m moneyFormatter) format(amount int64) string {
	if amount < 0 {
		return m.printer.Sprintf("-₹%d", -amount)
	}
	return m.printer.Sprintf("₹%d", amount)
}
