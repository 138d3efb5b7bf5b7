// Package models defines the core data structures for principals, stored
// objects, and credential records.
package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Principal represents the authenticated user identity that scopes all
// storage and record operations.
type Principal struct {
	// ID is the unique identifier assigned by the auth platform.
	ID string `json:"id"`
	// Email is the contact address the principal signed up with.
	Email string `json:"email"`
}

// Session is an authenticated session issued by the auth platform.
type Session struct {
	// AccessToken authorizes storage and record operations.
	AccessToken string
	// RefreshToken renews the session before AccessToken expires.
	RefreshToken string
	// ExpiresAt is the access token expiry time.
	ExpiresAt time.Time
	// Principal is the identity this session belongs to.
	Principal Principal
}

// Expired reports whether the session's access token has expired at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Category classifies a stored object for filtering and counting.
type Category string

const (
	// CategoryAll selects every stored object regardless of kind.
	CategoryAll Category = "all"
	// CategoryDocument covers text-like files and every unrecognized extension.
	CategoryDocument Category = "document"
	// CategoryImage covers raster and vector image files.
	CategoryImage Category = "image"
	// CategoryVideo covers video container files.
	CategoryVideo Category = "video"
)

// ParseCategory converts a request parameter into a Category.
// An empty value selects all objects.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(s)) {
	case "", CategoryAll:
		return CategoryAll, nil
	case CategoryDocument:
		return CategoryDocument, nil
	case CategoryImage:
		return CategoryImage, nil
	case CategoryVideo:
		return CategoryVideo, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// FileKind is the display hint derived from a filename extension. Audio is a
// distinct kind for icon purposes only; it has no category of its own and
// folds into CategoryDocument.
type FileKind string

const (
	// KindDocument marks text-like files and unrecognized extensions.
	KindDocument FileKind = "document"
	// KindImage marks image files.
	KindImage FileKind = "image"
	// KindVideo marks video files.
	KindVideo FileKind = "video"
	// KindAudio marks audio files.
	KindAudio FileKind = "audio"
)

// kindByExt is the single canonical extension table. Both icon selection and
// category derivation read from it so the two can never diverge.
var kindByExt = map[string]FileKind{
	".pdf":  KindDocument,
	".doc":  KindDocument,
	".docx": KindDocument,
	".txt":  KindDocument,
	".rtf":  KindDocument,
	".odt":  KindDocument,
	".xls":  KindDocument,
	".xlsx": KindDocument,
	".csv":  KindDocument,
	".ppt":  KindDocument,
	".pptx": KindDocument,

	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".gif":  KindImage,
	".webp": KindImage,
	".svg":  KindImage,
	".bmp":  KindImage,

	".mp4":  KindVideo,
	".mov":  KindVideo,
	".avi":  KindVideo,
	".mkv":  KindVideo,
	".webm": KindVideo,

	".mp3":  KindAudio,
	".wav":  KindAudio,
	".ogg":  KindAudio,
	".flac": KindAudio,
	".m4a":  KindAudio,
}

// KindOf returns the display kind for a filename. The match is a
// case-insensitive extension lookup; unknown and missing extensions are
// documents.
func KindOf(name string) FileKind {
	if k, ok := kindByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return k
	}
	return KindDocument
}

// CategoryOf derives the filter category for a filename. Audio files carry an
// audio icon but are counted and filtered as documents.
func CategoryOf(name string) Category {
	switch KindOf(name) {
	case KindImage:
		return CategoryImage
	case KindVideo:
		return CategoryVideo
	default:
		return CategoryDocument
	}
}

// StoredObject is one remote blob in the principal's namespace.
type StoredObject struct {
	// Name is the original filename as uploaded.
	Name string `json:"name"`
	// Size is the blob size in bytes.
	Size int64 `json:"size"`
	// CreatedAt is when the blob was stored.
	CreatedAt time.Time `json:"created_at"`
	// Key is the unique remote path: {principalID}/{epochMillis}-{name}.
	Key string `json:"key"`
	// Category is derived from the filename extension.
	Category Category `json:"category"`
	// Kind is the icon hint derived from the filename extension.
	Kind FileKind `json:"kind"`
}

// CredentialRecord is one saved login credential.
type CredentialRecord struct {
	// ID is the unique record identifier.
	ID string `json:"id"`
	// OwnerID is the principal the record belongs to.
	OwnerID string `json:"owner_id"`
	// Platform is the service the credential is for. Required, 1-100 chars.
	Platform string `json:"platform"`
	// Username is the login name. Required, 1-255 chars.
	Username string `json:"username"`
	// Secret is the password or passphrase in clear. Required, 1-500 chars.
	Secret string `json:"secret"`
	// Note is an optional free-text note, up to 500 chars.
	Note string `json:"note,omitempty"`
	// Token is an optional auxiliary token (API key, 2FA backup), up to 500 chars.
	Token string `json:"token,omitempty"`
	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`
}
