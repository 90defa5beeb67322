// Package database provides a GORM-backed database component with connection
// retries, pooling and auto-migration. The driver is chosen by config:
// "sqlite" for embedded or development use, "postgres" for production.
//
//	database:
//	  enabled: true
//	  driver: postgres
//	  dsn: "host=localhost user=orchestrator dbname=orchestrator sslmode=disable"
//	  auto_migrate: true
//
// Stores register their models with Component.WithAutoMigrate before Start.
package database
