// Package config provides configuration parsing for livemodel tools.
//
// The configuration is stored in livemodel.yaml. Every field can be
// overridden by a LIVEMODEL_* environment variable.
//
// # Configuration File Structure
//
//	devtools:
//	  addr: localhost:7357
//	  name: checkout
//	log:
//	  level: info      # debug, info, warn, error
//	  format: text     # text, json
//	metrics:
//	  enabled: true
//	  namespace: livemodel
//	tracing:
//	  enabled: false
//	  tracerName: livemodel
//	engine:
//	  keyCompare: shallow  # strict, shallow
//	  scheduler: goroutine # goroutine, sync
//	loader:
//	  dir: ./data
//	  bucket: my-bucket
//	  prefix: settings/
//	  region: eu-west-1
//	  maxSize: 1048576
//	  timeout: 5s
//
// # Environment
//
//	LIVEMODEL_LOG_LEVEL=debug
//	LIVEMODEL_DEVTOOLS_ADDR=:8080
//	LIVEMODEL_LOADER_TIMEOUT=10s
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.ApplyEnv(); err != nil {
//	    log.Fatal(err)
//	}
package config
