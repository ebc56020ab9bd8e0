// Package infra holds technical adapters: the MQTT notifier, the zerolog
// logger and the storage backends. These packages depend only on the
// interfaces defined under core.
package infra
