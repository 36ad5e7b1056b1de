// Package snapshot persists field snapshots handed over by the stepper.
//
// Dataset stores every snapshot in one SQLite file, with the phase and
// temperature arrays kept as little-endian float64 blobs under the names
// "p" and "T". Renderer draws both fields side by side into a PNG per
// snapshot. Multi fans one snapshot out to several sinks.
package snapshot
