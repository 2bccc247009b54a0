// Package cmd implements the media-viewer-engine command line.
//
//	media-viewer-engine serve       open a session and serve it over HTTP
//	media-viewer-engine preview     load a session and print what loaded
//	media-viewer-engine interactive drive a session from the keyboard
//	media-viewer-engine version     print build information
//
// Every command that opens a session takes its references from a YAML
// manifest (--manifest), a WPL or M3U playlist (--playlist), a directory
// (--dir), remote ids (--id), or any mix, in that order. With --playlist
// the directory only anchors the playlist's entries. Fetch collaborators come from the environment; see
// package startup.
package cmd
