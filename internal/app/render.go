package app

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// descRenderer turns a queue description from markdown into terminal
// output. The last result is kept since View runs on every message.
type descRenderer struct {
	style string
	width int
	r     *glamour.TermRenderer
	src   string
	out   string
}

func (d *descRenderer) render(src string, width int) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	if d.r == nil || d.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(d.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return src
		}
		d.r, d.width, d.src = r, width, ""
	}
	if src == d.src {
		return d.out
	}
	out, err := d.r.Render(src)
	if err != nil {
		return src
	}
	d.src, d.out = src, strings.Trim(out, "\n")
	return d.out
}
