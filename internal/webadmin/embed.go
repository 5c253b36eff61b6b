// ABOUTME: Embeds admin UI templates into the binary
// ABOUTME: Keeps the dashboard deployable as a single file

package webadmin

import "embed"

//go:embed templates
var templateFS embed.FS
