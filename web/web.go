// Package web embeds the HTML pages served by the control surface.
package web

import "embed"

//go:embed templates/*.html
var TemplateFiles embed.FS
