// Package cli turns the flowgrid command line into an app.Config. Bad input
// is reported as an ExitError carrying exit code 2.
package cli
