package port

import "context"

// FileRef is an opaque reference to a stored attachment. The core holds
// references only, never raw bytes.
type FileRef struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// FileMetadata describes a stored attachment.
type FileMetadata struct {
	Owner       string
	Filename    string
	ContentType string
}

// AttachmentStore persists attachment bytes and hands back references.
// Copy is used when carrying discussion attachments forward into an
// agreement overview.
type AttachmentStore interface {
	Store(ctx context.Context, data []byte, meta FileMetadata) (FileRef, error)
	Copy(ctx context.Context, ref FileRef, newOwner string) (FileRef, error)
}
