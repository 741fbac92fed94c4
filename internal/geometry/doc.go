// Package geometry converts between the three coordinate spaces of a page.
//
//   - Source pixels: the decoded image, origin top-left, X right, Y down.
//   - Percentages: 0-100 on each axis of the full-resolution page. Annotations
//     are stored in this space only, so they survive zoom, pan, crop preview
//     and save/resume.
//   - Display: the container the page is shown in. The page is letterboxed
//     ("contain" fit) into the container and then transformed by a Viewport.
//
// The viewport transform is centred on the container:
//
//	display = V + Pan + Zoom*(p - V)
//
// where V is the container centre and p a point of the unzoomed,
// letterboxed page. Zoom 1 with zero Pan is the identity, so a click then
// maps proportionally to its position within the displayed page.
//
// Everything here is pure arithmetic on float64 values.
package geometry
