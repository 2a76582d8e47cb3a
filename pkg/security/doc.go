/*
Package security groups the relay's transport and credential handling.

# TLS

Package tls serves HTTPS on the relay listener with certificates that are
reloaded from disk when they change:

	server:
	  tls:
	    enabled: true
	    cert_file: /etc/relay/tls/server.crt
	    key_file: /etc/relay/tls/server.key
	    min_version: "1.3"

# Secrets

Package secrets resolves ${secret:name} references in model API keys, from
a directory of secret files first and the environment second:

	manager := secrets.NewManager(
		fileProvider,
		secrets.NewEnvProvider("RELAY_SECRET_"),
	)
	apiKey, err := manager.Resolve(ctx, "${secret:openai-api-key}")
*/
package security
