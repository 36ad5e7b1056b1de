// Package viz renders run results for the terminal.
//
//   - [Summary]: lipgloss panel with the run's grid, timing, metrics and
//     solver health
//   - [History]: asciigraph line plot of one metric across snapshots
//   - [FieldCanvas]: Braille rendering of the solid region of a phase field
//   - [ProgressBar], [SparklineChart]: inline widgets shared with the live view
package viz
