// Package kafka carries the connection settings and lifecycle component for
// the Kafka producer that streams run history events.
//
//	kafka:
//	  enabled: true
//	  brokers: ["localhost:9092"]
//	  topic: orchestrator.history
//	  compression: snappy
//
// The writer itself lives in kafka/producer.
package kafka
