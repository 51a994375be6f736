package handler

import (
	"strings"

	"github.com/mileusna/useragent"
)

// deviceLabel turns a User-Agent header into a short label such as
// "Chrome on Windows (desktop)".
func deviceLabel(ua string) string {
	if ua == "" {
		return ""
	}
	parsed := useragent.Parse(ua)

	var kind string
	switch {
	case parsed.Bot:
		kind = "bot"
	case parsed.Tablet:
		kind = "tablet"
	case parsed.Mobile:
		kind = "mobile"
	case parsed.Desktop:
		kind = "desktop"
	}

	var b strings.Builder
	if parsed.Name != "" {
		b.WriteString(parsed.Name)
	} else {
		b.WriteString("Unknown client")
	}
	if parsed.OS != "" {
		b.WriteString(" on ")
		b.WriteString(parsed.OS)
	}
	if parsed.Device != "" {
		b.WriteString(" ")
		b.WriteString(parsed.Device)
	}
	if kind != "" {
		b.WriteString(" (")
		b.WriteString(kind)
		b.WriteString(")")
	}
	return b.String()
}
