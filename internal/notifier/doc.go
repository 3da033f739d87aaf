// Package notifier delivers growth notifications to chat destinations.
//
// Post only validates and enqueues. A fixed pool of workers drains the queue
// through a token bucket and retries failed sends with jittered exponential
// backoff. Every outcome is published on the event bus (notifier.queued,
// notifier.sent, notifier.failed, notifier.dropped); nothing here reports
// back to the caller after enqueue.
//
// Destinations are "<chat_id>" or "<chat_id>/<thread_id>".
package notifier
