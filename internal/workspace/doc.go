// Package workspace holds the user's open flows, the layout tree and stored
// credentials, and persists them between runs.
package workspace
