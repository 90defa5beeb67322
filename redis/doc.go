// Package redis wraps go-redis with the service's logging, configuration
// and component lifecycle.
//
// The orchestrator keeps trigger activation state in Redis so operator
// start/stop actions survive restarts:
//
//	comp := redis.NewComponent(cfg.Redis, log)
//	// after Start:
//	store := redis.NewTypedStore[trigger.Activation](comp.Client(), cfg.Redis.KeyPrefix+":trigger")
package redis
