// Package definition loads pipeline and trigger definitions from YAML or
// HCL files and installs them into a pipeline.Catalog and trigger.Registry.
//
// Both formats describe the same model. YAML:
//
//	pipelines:
//	  - name: collect
//	    parameters: {base_url: "http://localhost:7071/api"}
//	    activities:
//	      - name: health
//	        url: "{base_url}/health"
//	triggers:
//	  - name: collect-every-5m
//	    pipeline: collect
//	    activated: true
//	    schedule:
//	      interval: {unit: minute, every: 5}
//
// HCL:
//
//	pipeline "collect" {
//	  parameters = { base_url = env("FUNCTION_APP_URL", "http://localhost:7071/api") }
//	  activity "health" {
//	    url = "{base_url}/health"
//	  }
//	}
//	trigger "collect-every-5m" {
//	  pipeline  = "collect"
//	  activated = true
//	  interval {
//	    unit  = "minute"
//	    every = 5
//	  }
//	}
//
// HCL expressions may call env(name, default) and a handful of string
// functions; "{name}" placeholders are left for run time.
package definition
