// Package gse runs the ground support services: analog ingest with
// calibration, calibration directory updates, valve commands with
// acknowledgement, and the ack commit watchdog.
//
// All services share one RunFlag and are stopped cooperatively, see
// framework.RunStopper.
package gse
