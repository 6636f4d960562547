package mediatypes

import (
	"path"
	"strings"
)

// FileType represents the type of a library entry.
type FileType string

const (
	// FileTypeFolder represents a directory.
	FileTypeFolder FileType = "folder"
	// FileTypeAudio represents a music file.
	FileTypeAudio FileType = "audio"
	// FileTypePlaylist represents a playlist or cue sheet.
	FileTypePlaylist FileType = "playlist"
	// FileTypeImage represents cover art and other images.
	FileTypeImage FileType = "image"
	// FileTypeOther represents an unknown file type.
	FileTypeOther FileType = "other"
)

// AudioExtensions maps file extensions to whether they are audio formats.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".oga":  true,
	".opus": true,
	".m4a":  true,
	".aac":  true,
	".wav":  true,
	".wma":  true,
	".aiff": true,
	".aif":  true,
	".ape":  true,
	".wv":   true,
	".mpc":  true,
	".dsf":  true,
	".mid":  true,
	".mod":  true,
}

// PlaylistExtensions maps file extensions to whether they are playlist formats.
var PlaylistExtensions = map[string]bool{
	".m3u":  true,
	".m3u8": true,
	".pls":  true,
	".wpl":  true,
	".xspf": true,
	".cue":  true,
}

// ImageExtensions maps file extensions to whether they are image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Audio
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".wma":  "audio/x-ms-wma",
	".aiff": "audio/aiff",
	".aif":  "audio/aiff",
	".mid":  "audio/midi",

	// Playlists
	".m3u":  "audio/x-mpegurl",
	".m3u8": "application/vnd.apple.mpegurl",
	".pls":  "audio/x-scpls",
	".wpl":  "application/vnd.ms-wpl",
	".xspf": "application/xspf+xml",

	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".mp3").
// Returns FileTypeOther if the extension is not recognized.
func GetFileType(ext string) FileType {
	switch {
	case AudioExtensions[ext]:
		return FileTypeAudio
	case PlaylistExtensions[ext]:
		return FileTypePlaylist
	case ImageExtensions[ext]:
		return FileTypeImage
	}
	return FileTypeOther
}

// Classify returns the FileType of the entry at p. Directories are folders
// whatever their name.
func Classify(p string, isDir bool) FileType {
	if isDir {
		return FileTypeFolder
	}
	return GetFileType(strings.ToLower(path.Ext(p)))
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
