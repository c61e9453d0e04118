// Package config handles loading and validating the bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML or TOML files
//   - Overriding with ORVIBO_BRIDGE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Defaults match the stock device: status lines are received on UDP port
// 14443 and sent to 127.0.0.1:14442, with a 2 second probe tick, a 30 tick
// liveness threshold and a 5 second recovery delay.
//
// Secrets (mqtt.auth.password, influxdb.token) should be supplied through
// the environment. Use Redacted before logging a Config.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.UDP.ListenPort)
package config
