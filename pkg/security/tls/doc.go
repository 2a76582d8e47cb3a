// Package tls terminates HTTPS on the relay listener.
//
// A CertificateReloader serves the configured certificate pair and polls
// the files for changes, so renewed certificates take effect without a
// restart:
//
//	reloader := tls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, cfg.ReloadInterval, logger)
//	if err := reloader.Start(ctx); err != nil {
//		return err
//	}
//	tlsConfig, err := tls.ServerConfig(cfg, reloader)
//
// Only TLS 1.2 and 1.3 are accepted.
package tls
