// Package tghtml builds message text for Telegram's HTML parse mode.
//
// Helpers return the H type so callers can tell escaped-and-safe fragments
// apart from raw strings. Compose with JoinH and send the final String().
package tghtml
