// Package web embeds the page template served at /
package web

import "embed"

//go:embed *.tmpl
var Content embed.FS
