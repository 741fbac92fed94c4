// Package compositor burns annotations into page images.
//
// The output of BurnIn is a new JPEG asset; the source asset is never
// modified, and a page without annotations is returned as-is so it is not
// re-encoded.
//
// Markers scale with the page: the glyph size is max(20, width*0.05) source
// pixels. Check and cross glyphs are stroked with a white outline so they
// stay visible on any background. Text is drawn in Go Bold without an
// outline, centred on its point, except the score label which hangs from
// its point to the right and down.
package compositor
