// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files. It covers the HTTP server, the container
// runtime and redis endpoints, admission and rate-limit policy, and
// per-session execution limits. All values are fixed at process start.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Listening on: %s\n", cfg.Server.Addr)
package config
