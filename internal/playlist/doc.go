// Package playlist turns playlist files into ordered image references.
//
// Supported formats:
//   - WPL (Windows Media Player): XML, one <media src=...> per entry
//   - M3U/M3U8: one path per line, # lines are comments
//
// Entries may carry paths from another machine:
//   - UNC paths (\\server\share\photos\a.jpg)
//   - Drive-letter paths (C:\Photos\a.jpg)
//   - Paths relative to the playlist file (../photos/a.jpg)
//
// Each entry is matched against the media directory by trying the path
// relative to the playlist, then progressively shorter trailing
// components of the path. Entries that match nothing, or that are not
// images, stay in the playlist as missing items so that slot positions
// follow the file.
package playlist
