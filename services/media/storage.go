package mediasvc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
)

const docxType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var (
	imageTypes = map[string]imaging.Format{
		"image/jpeg": imaging.JPEG,
		"image/png":  imaging.PNG,
	}
	documentTypes = map[string]string{
		"application/pdf":           ".pdf",
		"application/msword":        ".doc",
		"application/x-ole-storage": ".doc",
		docxType:                    ".docx",
	}

	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]+`)
)

// diskStorage keeps uploaded files under the media root, served at the media URL prefix.
type diskStorage struct {
	conf core.MediaConfig
}

var _ core.MediaStorage = (*diskStorage)(nil)

func NewDiskStorage(conf *core.Config) core.MediaStorage {
	return &diskStorage{conf: conf.Media}
}

func fileError(msg string) error {
	return core.NewValidationError(errors.New(msg), core.FieldError{Field: "file", Error: msg})
}

// read loads f, refusing it when larger than maxSize.
func read(f core.UploadedFile, maxSize int64) ([]byte, error) {
	if f.Content == nil {
		return nil, fileError("this field is required")
	}
	tooLarge := fileError(fmt.Sprintf("file must not be larger than %d KB", maxSize>>10))
	if f.Size > maxSize {
		return nil, tooLarge
	}
	data, err := io.ReadAll(io.LimitReader(f.Content, maxSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "reading upload")
	}
	if int64(len(data)) > maxSize {
		return nil, tooLarge
	}
	if len(data) == 0 {
		return nil, fileError("file is empty")
	}
	return data, nil
}

// uniqueName returns <folder>/<yyyymmdd>-<uuid>-<safe filename><ext>.
func uniqueName(folder, filename, ext string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "_")
	if len(base) > 50 {
		base = base[:50]
	}
	name := time.Now().UTC().Format("20060102") + "-" + uuid.New().String()
	if base != "" {
		name += "-" + base
	}
	return path.Join(folder, name+ext)
}

func (s *diskStorage) write(rel string, data []byte) error {
	abs := s.AbsPath(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return errors.Wrap(err, "creating media folder")
	}
	return errors.Wrap(os.WriteFile(abs, data, 0o644), "writing media file")
}

func (s *diskStorage) stored(rel, contentType string, size int) core.StoredFile {
	return core.StoredFile{
		Path:        rel,
		URL:         strings.TrimSuffix(s.conf.URLPrefix, "/") + "/" + rel,
		ContentType: contentType,
		Size:        int64(size),
	}
}

func (s *diskStorage) SaveImage(_ context.Context, folder string, f core.UploadedFile) (core.StoredFile, error) {
	data, err := read(f, s.conf.MaxImageSize)
	if err != nil {
		return core.StoredFile{}, err
	}
	mtype := mimetype.Detect(data)
	format, ok := imageTypes[mtype.String()]
	if !ok {
		return core.StoredFile{}, fileError("only jpeg and png images are allowed")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return core.StoredFile{}, fileError("invalid image")
	}
	if s.conf.MaxImageWidth > 0 && img.Bounds().Dx() > s.conf.MaxImageWidth {
		img = imaging.Resize(img, s.conf.MaxImageWidth, 0, imaging.Lanczos)
	}
	data, err = encode(img, format)
	if err != nil {
		return core.StoredFile{}, err
	}

	rel := uniqueName(folder, f.Filename, mtype.Extension())
	if err = s.write(rel, data); err != nil {
		return core.StoredFile{}, err
	}
	return s.stored(rel, mtype.String(), len(data)), nil
}

func encode(img image.Image, format imaging.Format) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, format, imaging.JPEGQuality(85)); err != nil {
		return nil, errors.Wrap(err, "encoding image")
	}
	return buf.Bytes(), nil
}

func (s *diskStorage) SaveDocument(_ context.Context, folder string, f core.UploadedFile) (core.StoredFile, error) {
	data, err := read(f, s.conf.MaxDocSize)
	if err != nil {
		return core.StoredFile{}, err
	}
	mtype := mimetype.Detect(data)
	ext, ok := "", false
	for m := mtype; m != nil && !ok; m = m.Parent() {
		ext, ok = documentTypes[m.String()]
	}
	if !ok {
		return core.StoredFile{}, fileError("only pdf, doc and docx documents are allowed")
	}

	rel := uniqueName(folder, f.Filename, ext)
	if err = s.write(rel, data); err != nil {
		return core.StoredFile{}, err
	}
	return s.stored(rel, mtype.String(), len(data)), nil
}

func (s *diskStorage) AbsPath(rel string) string {
	return filepath.Join(s.conf.Root, filepath.FromSlash(path.Clean("/"+rel)))
}

func (s *diskStorage) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	if err := os.Remove(s.AbsPath(rel)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing media file")
	}
	return nil
}
