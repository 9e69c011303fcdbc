package core

import (
	"context"
	"io"
)

type (
	// UploadedFile is a file received from a client.
	UploadedFile struct {
		Filename string
		Size     int64
		Content  io.Reader
	}

	// StoredFile is a file saved by a MediaStorage. Path is relative to the media root.
	StoredFile struct {
		Path        string `json:"path"`
		URL         string `json:"url"`
		ContentType string `json:"contentType"`
		Size        int64  `json:"size"`
	}

	MediaStorage interface {
		// SaveImage stores a jpeg or png image under folder, downscaling it if too wide.
		SaveImage(ctx context.Context, folder string, f UploadedFile) (StoredFile, error)
		// SaveDocument stores a pdf, doc or docx document under folder.
		SaveDocument(ctx context.Context, folder string, f UploadedFile) (StoredFile, error)
		// AbsPath returns the location on disk of a stored file.
		AbsPath(path string) string
		Remove(path string) error
	}
)
