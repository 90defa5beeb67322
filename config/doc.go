// Package config loads the orchestrator's YAML configuration with Viper,
// layering a .env file and ORCHESTRATOR_* environment variables on top.
//
//	var cfg cli.Config
//	err := config.LoadConfig("orchestrator", &cfg, config.WithConfigFile(path))
//
// ORCHESTRATOR_SCHEDULER_TICK_INTERVAL=2s overrides scheduler.tick_interval.
package config
