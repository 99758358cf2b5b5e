package source

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"sales-coach-go/internal/failure"
	"sales-coach-go/internal/types"
)

// MaxFileBytes is the inline-upload ceiling (20 MiB).
const MaxFileBytes int64 = 20 * 1024 * 1024

// File is a user-selected file as seen by the file adapter.
type File interface {
	Name() string
	Type() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// Validate checks the declared type, then the size, and returns a payload
// whose body opens the file lazily on first read.
func Validate(f File) (types.AudioPayload, error) {
	declared := strings.ToLower(strings.TrimSpace(f.Type()))
	if !strings.HasPrefix(declared, "audio/") {
		return types.AudioPayload{}, failure.Newf(failure.InvalidFileType, "source.file", "declared type %q is not audio", f.Type())
	}
	if f.Size() > MaxFileBytes {
		return types.AudioPayload{}, failure.Newf(failure.FileTooLarge, "source.file", "%d bytes exceeds %d", f.Size(), MaxFileBytes)
	}
	body := &lazyReader{open: f.Open}
	return types.NewAudioPayload(body, f.Size(), f.Type(), f.Name()), nil
}

// SelectFile validates an in-memory file.
func SelectFile(data []byte, declaredType, name string) (types.AudioPayload, error) {
	return Validate(memoryFile{data: data, mimeType: declaredType, name: name})
}

// FileSource adapts a validated File to the Source interface.
type FileSource struct {
	File File
}

func (s FileSource) Payload() (types.AudioPayload, error) {
	return Validate(s.File)
}

type memoryFile struct {
	data     []byte
	mimeType string
	name     string
}

func (m memoryFile) Name() string  { return m.name }
func (m memoryFile) Type() string  { return m.mimeType }
func (m memoryFile) Size() int64   { return int64(len(m.data)) }
func (m memoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

// UploadedFile wraps a multipart upload. The declared type is the part's
// Content-Type header.
type UploadedFile struct {
	Header *multipart.FileHeader
}

func (u UploadedFile) Name() string { return u.Header.Filename }
func (u UploadedFile) Type() string { return u.Header.Header.Get("Content-Type") }
func (u UploadedFile) Size() int64  { return u.Header.Size }
func (u UploadedFile) Open() (io.ReadCloser, error) {
	f, err := u.Header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %q: %w", u.Header.Filename, err)
	}
	return f, nil
}

var audioExtensions = map[string]string{
	".mp3":  "audio/mpeg",
	".mpeg": "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".mp4a": "audio/mp4",
	".aac":  "audio/aac",
	".webm": "audio/webm",
	".weba": "audio/webm",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
	".aiff": "audio/aiff",
	".aif":  "audio/aiff",
}

// LocalFile is a file on disk. Its declared type comes from the extension,
// falling back to content sniffing.
type LocalFile struct {
	Path string

	info     os.FileInfo
	mimeType string
}

// OpenLocalFile stats path and resolves its declared type.
func OpenLocalFile(path string) (*LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	lf := &LocalFile{Path: path, info: info}
	if t, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		lf.mimeType = t
	} else if m, err := mimetype.DetectFile(path); err == nil {
		lf.mimeType = m.String()
	}
	return lf, nil
}

func (l *LocalFile) Name() string { return filepath.Base(l.Path) }
func (l *LocalFile) Type() string { return l.mimeType }
func (l *LocalFile) Size() int64  { return l.info.Size() }
func (l *LocalFile) Open() (io.ReadCloser, error) {
	return os.Open(l.Path)
}

// lazyReader defers opening the file to the encoder so open and read
// errors surface in the encoding stage. It closes the file at EOF or error.
type lazyReader struct {
	open func() (io.ReadCloser, error)
	rc   io.ReadCloser
	done bool
}

func (l *lazyReader) Read(p []byte) (int, error) {
	if l.done {
		return 0, io.EOF
	}
	if l.rc == nil {
		rc, err := l.open()
		if err != nil {
			l.done = true
			return 0, err
		}
		l.rc = rc
	}
	n, err := l.rc.Read(p)
	if err != nil {
		l.done = true
		_ = l.rc.Close()
		l.rc = nil
	}
	return n, err
}

func (l *lazyReader) Close() error {
	l.done = true
	if l.rc != nil {
		return l.rc.Close()
	}
	return nil
}

// Detach reads a validated payload into memory so it outlives whatever
// carried it (an HTTP request's temporary files, for one). The original
// body is closed. The size ceiling is enforced again on the bytes actually
// read.
func Detach(p types.AudioPayload) (types.AudioPayload, error) {
	if p.Body == nil {
		return types.AudioPayload{}, failure.Newf(failure.EncodingFailed, "source.detach", "payload %q has no body", p.DisplayName)
	}
	if c, ok := p.Body.(io.Closer); ok {
		defer c.Close()
	}
	data, err := io.ReadAll(io.LimitReader(p.Body, MaxFileBytes+1))
	if err != nil {
		return types.AudioPayload{}, failure.New(failure.EncodingFailed, "source.detach", err)
	}
	if int64(len(data)) > MaxFileBytes {
		return types.AudioPayload{}, failure.Newf(failure.FileTooLarge, "source.detach", "content exceeds %d bytes", MaxFileBytes)
	}
	return types.NewAudioPayload(bytes.NewReader(data), int64(len(data)), p.MIMEType, p.DisplayName), nil
}
