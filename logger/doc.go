// Package logger provides structured logging for the orchestrator using zerolog.
//
// Fields are passed as maps so call sites stay short:
//
//	log := logger.WithComponent("executor")
//	log.Info("run finished", logger.Fields(logger.FieldRunID, id, logger.FieldStatus, "Succeeded"))
package logger
