package render

//go:generate templ generate -f html.templ

import (
	"encoding/base64"
	"fmt"
	"strings"
)

func generatedLine(c Cover) string {
	return fmt.Sprintf("Generated %s | %d report(s)",
		c.GeneratedAt.UTC().Format(DisplayDateLayout+" 15:04 MST"), c.ReportCount)
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// imageSrc inlines image evidence as a data URL so the page stands alone.
func imageSrc(ev EvidenceBlock) string {
	return "data:image/" + ev.Format + ";base64," + base64.StdEncoding.EncodeToString(ev.Data)
}
