package service

import "errors"

var (
	// ErrTaskNotFound means the task does not exist, belongs to someone else
	// or is no longer active.
	ErrTaskNotFound = errors.New("task not found or not active")
	// ErrEmptyDescription rejects blank task descriptions.
	ErrEmptyDescription = errors.New("task description is empty")
	// ErrRecipientUnreachable is returned by a Notifier when the owner can no
	// longer be messaged, for example after blocking the bot.
	ErrRecipientUnreachable = errors.New("recipient unreachable")
)
