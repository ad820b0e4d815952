// Package web holds the embedded page templates and static assets served
// by internal/http.
package web

import "embed"

//go:embed templates/*.html
var TemplatesFS embed.FS

//go:embed static/*
var StaticFS embed.FS
