// Package media defines what the viewer displays and how raw image bytes
// become something it can show.
//
// A [Reference] addresses one image: remotely by id, remotely by path at a
// chosen [Quality], or as bytes the caller already holds. [Reference.Key]
// derives the [SourceKey] that the cache and load scheduler use as
// identity; two references with equal keys are the same resource.
//
// The rest of the package works on byte slices:
//   - [ParseSizeMetadata] pulls the original-size hint out of fetch metadata
//   - [DecodeDimensions] and [Decode] read raster headers and pixels
//   - [Thumbnailer] produces small JPEG derivatives, using libvips when
//     [InitVips] succeeded and imaging otherwise
//   - [ExtractExif] reads capture metadata
//   - [Scanner] lists and watches a directory of images
package media
