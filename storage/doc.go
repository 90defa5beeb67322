// Package storage is the object storage used for run history archives.
//
// Backends register themselves by provider name; import the ones you need:
//
//	import (
//	    _ "github.com/kbukum/orchestrator/storage/local"
//	    _ "github.com/kbukum/orchestrator/storage/s3"
//	)
//
// Configuration:
//
//	storage:
//	  enabled: true
//	  provider: s3
//	  bucket: orchestrator-archive
//	  region: eu-west-1
package storage
