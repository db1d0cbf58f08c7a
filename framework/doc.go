// Package framework provides an end-to-end test framework for the CloudKitty
// rating pipeline of an OpenStack cloud.
//
// A scenario provisions a billed Cinder volume together with a hashmap rating
// rule, waits for the CloudKitty collector to rate the volume, fetches the
// rated dataframes and validates the record that describes the volume. Every
// provisioned object is deleted afterwards, even when a stage fails.
//
// # Quick Start
//
// Credentials are read from the usual OS_* environment variables (Keystone v3):
//
//	ctx := context.Background()
//	fw, err := framework.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	prereqs, _ := fw.CheckPrerequisites(ctx)
//	if !prereqs.AllMet {
//	    log.Fatal("Prerequisites not met: ", prereqs.String())
//	}
//
//	result, err := fw.RunScenario(ctx, "collect-dataframe")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("rating: %s\n", result.Record.Rating)
//
// # Stages
//
// Scenario.Run executes the stages in order and always cleans up:
//
//   - Provision: optional pre-clean and module enablement, then the volume
//     (waiting for "available"), the hashmap service and its mapping
//   - WaitForCollection: bounded poll with exponential backoff until a
//     dataframe for the volume exists, optionally after the usage series
//     shows up in Prometheus
//   - FetchDataframes: one request to the storage API
//   - Validate: locate the volume's record and check service, owner and rating
//   - Cleanup: LIFO deletion (mapping, service, volume, module state)
//
// # Configuration
//
// Defaults come from config.FromEnv and can be overridden per run with a
// YAML profile:
//
//	p, _ := profile.Load("profiles/volume-storage.yaml")
//	result, err := fw.RunProfile(ctx, p)
//
// # Kubernetes
//
// On openstack-k8s-operators deployments the framework can also check the
// CloudKitty CRDs and pods, collect pod logs and dump the telemetry CRs:
//
//	if err := fw.ConnectKubernetes(); err == nil {
//	    fw.CollectLogs(ctx, &framework.LogCollectionConfig{OutputDir: "logs"})
//	}
//
// # Package Structure
//
//   - config: Centralized configuration with environment variable support
//   - concurrent: Bounded parallel helpers
//   - dataframe: Dataframe records, response variants and validation
//   - gvr: GroupVersionResource definitions for the telemetry operator
//   - metrics: Prometheus queries and report export
//   - profile: YAML scenario profiles
//   - rating: CloudKitty rating API client
//   - retry: Retry logic with exponential backoff
//   - volume: Cinder volume client
//   - wait: Bounded polling helpers
package framework
