// Package config handles configuration loading for quotedesk.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from QUOTEDESK_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/quotedesk/quotedesk.yaml
//  3. ~/.config/quotedesk/quotedesk.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	assistant:
//	  api_key: "${GROQ_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  base_url: "https://quotes.example.com"
//
// Database:
//
//	database:
//	  path: "/var/lib/quotedesk/quotedesk.db"
//
// Assistant (AI provider):
//
//	assistant:
//	  base_url: "https://api.groq.com/openai/v1/chat/completions"
//	  api_key: "${GROQ_API_KEY}"
//	  model: "llama-3.1-8b-instant"
//	  temperature: 0.3
//	  max_tokens: 500
//	  history_window: 6
//	  timeout: "30s"
//
// Admin dashboard:
//
//	admin:
//	  jwt_secret: "${QUOTEDESK_JWT_SECRET}"
//
// Messenger webhook:
//
//	messenger:
//	  enabled: true
//	  page_access_token: "${FB_PAGE_ACCESS_TOKEN}"
//	  verify_token: "${FB_VERIFY_TOKEN}"
//
// Affiliate partners:
//
//	affiliates:
//	  default: "thezebra"
//	  partners:
//	    thezebra: "https://www.thezebra.com/?agent=QUOTEDESK"
//	    policygenius: "https://www.policygenius.com/?ref=QUOTEDESK"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
