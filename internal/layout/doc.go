// Package layout arranges output views in a recursive split tree.
//
// A Layout holds an ordered list of panes laid out horizontally or
// vertically. A pane is either a leaf, optionally showing one field of one
// node, or a branch holding a nested Layout; never both. Panes are addressed
// by a Path of sibling indices from the root.
//
// Every operation returns a new tree and leaves its input untouched.
package layout
