// Package web embeds the templates and static assets of the sales tracker.
package web

import "embed"

// TemplatesFS embeds HTML templates for server-side rendering.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the script, styles, icon, web manifest and service worker.
//
//go:embed static/*
var StaticFS embed.FS
