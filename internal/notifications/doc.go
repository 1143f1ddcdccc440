// Package notifications pushes operator-facing alerts to an ntfy topic.
package notifications
