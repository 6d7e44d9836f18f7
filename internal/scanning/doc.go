// Package scanning is the scan engine of scanprobe.
//
// A Scanner takes a ScanJob, checks that the target answers on its
// reachability port, then pushes every port of the requested range onto a
// workers.Queue that a fixed-size workers.Pool drains. Each worker hands its
// port to a Prober, which performs one full TCP connect bounded by the job's
// timeout and, for open ports, a best-effort banner capture bounded by its
// own shorter timeout.
//
// # Outcomes
//
// Probers never return errors. Every attempt ends in an Outcome whose State
// is StateOpen, StateClosed (refused or timed out) or StateErrored (any other
// dial failure, with the cause in Err). Banner failures are carried in
// BannerResult and render as NoBanner.
//
// # Results
//
// Open ports are appended to a Results collection whose mutex also guards the
// live console lines, so output from concurrent workers never interleaves.
// Run returns only after the queue's drain barrier fires, and the ScanResult
// it returns lists open ports in ascending order.
//
// # Usage
//
//	scanner := scanning.NewScanner(scanning.DefaultOptions())
//	job := scanning.NewScanJob("192.168.1.10", 20, 25, time.Second)
//	result, err := scanner.Run(ctx, job)
//	if errors.IsCode(err, errors.CodeHostUnreachable) {
//		// no probes were made
//	}
package scanning
