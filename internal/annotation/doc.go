// Package annotation holds the correctness markers placed on a submission
// and the click protocol used to edit them.
//
// Positions are percentages (0-100) of the associated page's full-resolution
// image and are clamped on the way in. Zoom and pan never reach the store:
// the Editor maps clicks through the viewport at click time and throws the
// viewport away.
//
// Ordering is insertion order. Later annotations render on top and win hit
// tests.
package annotation
