package main

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// count renders n with thousands separators.
func count(n int) string {
	return printer.Sprintf("%d", n)
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
