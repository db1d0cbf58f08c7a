// Package concurrent runs independent best-effort calls against the cloud
// with a bound on requests in flight.
//
// # ForEachWithLimit
//
// Delete hashmap services left behind by an earlier run, four at a time:
//
//	err := concurrent.ForEachWithLimit(ctx, stale, 4, func(ctx context.Context, svc rating.HashmapService) error {
//	    return client.DeleteHashmapService(ctx, svc.ServiceID)
//	})
//
// # MapWithLimit
//
// Fetch container logs while keeping results in input order:
//
//	logs, err := concurrent.MapWithLimit(ctx, targets, 4, func(ctx context.Context, t podContainer) (ContainerLogs, error) {
//	    return fetch(ctx, t)
//	})
//
// # Errors
//
// Every item is attempted. Failures, including items skipped because the
// context ended, are joined with errors.Join so callers see each of them.
package concurrent
