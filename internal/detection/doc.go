// Package detection estimates where a photographed sheet of paper sits in a
// camera frame.
//
// The detector is a best-effort heuristic used only to seed the initial crop
// rectangle. It never returns an error and never panics: when it has no
// confident answer it reports NotDetected and the caller falls back to the
// full image (see Fallback and SuggestCrop).
//
// # Algorithm
//
//  1. Downscale the source so its long edge is about 300 px.
//  2. Sample a sparse grid (stride 2). A sample is an edge point when its
//     luminance (ITU-R BT.601: 0.299R + 0.587G + 0.114B) differs by more
//     than 30 from the sample 2 px to the right or 2 px below.
//  3. With fewer than 50 edge points, report NotDetected.
//  4. Sort edge X and Y coordinates independently and take the 5th and 95th
//     percentiles as the rectangle, trimming stray marks and sensor noise.
//  5. If the rectangle covers less than 20% of the working area, report
//     NotDetected.
//  6. Scale the rectangle back to source pixels and clamp it to the image.
//
// # Coordinate System
//
// Results are in source pixels with the origin at the top-left of the
// image, Min inclusive and Max exclusive, whatever the Bounds().Min of the
// input image.
//
// # Limitations
//
// There is no perspective correction or dewarping. Busy backgrounds
// (patterned tablecloths, keyboards) produce edge points outside the page and
// widen the rectangle. A white page on a white desk usually yields
// NotDetected.
package detection
