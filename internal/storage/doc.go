package storage

// Package storage persists which message the bot last posted to each
// destination, so status updates survive restarts as in-place edits
// instead of an ever-growing message history.
