// Package viewport implements the zoom/pan transform applied to the image
// on display.
//
// The image is first rendered at a base scale that fits it inside the
// container without upscaling. A [State] then applies a zoom factor on top
// of that base and a translation in container pixels, measured from the
// container centre. The free functions are pure and carry all of the
// arithmetic; [Engine] layers gesture sequences (wheel, click and
// double-click, rectangle select, pinch, pan) on top of them.
//
// Zoom never drops below [Floor] and translation never lets the scaled
// image under-fill the container. Whenever a container or natural size is
// not known yet (zero or negative) every operation yields the identity
// transform.
package viewport
