// Package messenger connects Facebook Messenger to the chat service.
//
// Inbound page messages arrive on the webhook, get routed through the
// conversation layer under a "fb_" prefixed session keyed by sender ID,
// and the assistant reply goes back out through the Send API. The whole
// package is optional: when no page token is configured the routes are
// simply not registered.
package messenger
