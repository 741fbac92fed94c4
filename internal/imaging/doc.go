// Package imaging provides raster I/O and the crop executor for submission pages.
//
// Every page of a submission travels through the system as an Asset: the
// encoded bytes, their MIME type and the decoded pixel dimensions. Assets are
// treated as immutable values. Decoding, compressing, cropping and burning in
// annotations each produce a new Asset and never touch the input bytes.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with the origin at the top-left corner:
//   - X increases rightward, Y increases downward
//   - Rectangles use image.Rectangle semantics: Min is inclusive, Max is exclusive
//
// Percentage and viewport coordinates live in the geometry package; this
// package only ever sees source pixels.
//
// # Supported Formats
//
// Decoding accepts PNG, JPEG, GIF, BMP, TIFF and WebP. JPEG payloads are
// rotated according to their EXIF orientation tag, so phone photos come out
// upright and Asset dimensions always describe the upright image.
// Encoding always produces JPEG, matching what the grading collaborator and
// the share path expect.
//
// # Error Handling
//
//   - DecodeError: the payload is empty, corrupt or in an unsupported format
//   - CropRangeError: a crop rectangle is empty or leaves the image bounds
//
// Both are returned as pointers and can be matched with errors.As. Neither
// affects any other page: callers processing several pages independently
// keep going with the pages that succeeded.
//
// # Thread Safety
//
// All functions are stateless and can be called concurrently. AssetCache is
// safe for concurrent use.
package imaging
