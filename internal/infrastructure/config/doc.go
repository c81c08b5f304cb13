// Package config handles loading and validating the BSSID registry configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (including an optional .env file)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Credentials (POSTGRES_URL, MQTT password, InfluxDB token) should be set
//     via environment variables rather than committed to the YAML file
//   - api.expose_internal_errors leaks storage error text and stays off in production
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Database.Driver)
package config
