// Package mediatypes maps image file extensions and magic bytes to MIME
// types.
//
// It has no dependencies beyond the standard library so that media, fetch
// and handlers can all import it without cycles.
//
//	ext := strings.ToLower(filepath.Ext(name))
//	if mediatypes.IsImage(ext) {
//	    ct := mediatypes.GetMimeType(ext) // "image/jpeg"
//	}
//
// When a fetch collaborator returns bytes without a usable content type,
// [Sniff] inspects the leading bytes instead:
//
//	ct := mediatypes.Sniff(data) // "image/webp"
package mediatypes
