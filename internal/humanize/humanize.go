// Package humanize formats byte counts and statistics for logs and the CLI.
package humanize

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

const (
	kib = 1 << 10
	mib = 1 << 20
	gib = 1 << 30
)

// Count formats n with thousands separators: 1048576 -> "1,048,576".
func Count[T ~int | ~int64 | ~uint64 | ~uintptr](n T) string {
	return printer.Sprintf("%d", n)
}

// Bytes formats n using the largest binary unit that divides it into a
// value of at least one: 1048576 -> "1 MiB", 1536 -> "1.5 KiB".
func Bytes[T ~int | ~int64 | ~uint64 | ~uintptr](n T) string {
	v := uint64(n)
	switch {
	case v >= gib:
		return unit(v, gib, "GiB")
	case v >= mib:
		return unit(v, mib, "MiB")
	case v >= kib:
		return unit(v, kib, "KiB")
	default:
		return printer.Sprintf("%d B", v)
	}
}

func unit(v, div uint64, name string) string {
	if v%div == 0 {
		return printer.Sprintf("%d %s", v/div, name)
	}
	return printer.Sprintf("%.1f %s", float64(v)/float64(div), name)
}

// Percent formats part/whole as a percentage with one decimal.
func Percent[T ~int | ~int64 | ~uint64 | ~uintptr](part, whole T) string {
	if whole == 0 {
		return "0.0%"
	}
	return printer.Sprintf("%.1f%%", float64(part)/float64(whole)*100)
}
