// Relay is a stateful chat relay in front of OpenAI-compatible completion
// backends.
//
// It accepts chat turns over HTTP, forwards them to the configured model,
// re-emits the backend's event stream to the client in real time and
// persists every conversation.
//
// Usage:
//
//	# Start the server with ./config.yaml
//	relay run
//
//	# Start with a custom configuration file and .env
//	relay run --config /etc/relay/config.yaml --env-file /etc/relay/.env
//
//	# Check a configuration file
//	relay validate --config config.yaml
//
//	# Inspect stored sessions
//	relay sessions list
//	relay sessions show 0192f7c3-7d2a-7cc4-a1f3-5c7a7a0e6f10
//
//	# Show version information
//	relay version
package main

import "os"

func main() {
	os.Exit(Execute())
}
