// Package mediatypes classifies library entries by file extension.
//
// It has no dependencies beyond the standard library so the database and
// handler packages can share it without import cycles.
//
//	mediatypes.FileTypeFolder   // Directories
//	mediatypes.FileTypeAudio    // Music files (mp3, flac, ogg, etc.)
//	mediatypes.FileTypePlaylist // Playlists and cue sheets (m3u, pls, cue, etc.)
//	mediatypes.FileTypeImage    // Cover art
//	mediatypes.FileTypeOther    // Everything else
//
// The type is derived from the name alone and never stored; only names are
// indexed. Use Classify for a relative path:
//
//	mediatypes.Classify("Artist/Album/01 Intro.FLAC", false) // FileTypeAudio
package mediatypes
