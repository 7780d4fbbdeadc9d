// Package multipart builds multipart/form-data request bodies for the
// visual recognition upload endpoints.
//
// Fields are encoded in the order they were added. Repeated names are
// allowed and become independent parts. File contents are read fully into
// memory at encode time, so encoding never touches the network.
package multipart

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const boundaryPrefix = "visrec.boundary."

// Field is a single named part. A field with a non-empty Path is a file part;
// otherwise Value is sent as-is.
type Field struct {
	Name        string
	Value       []byte
	Path        string
	Filename    string
	ContentType string
}

// IsFile reports whether the field is backed by a file on disk.
func (f Field) IsFile() bool {
	return f.Path != ""
}

// Form is an ordered set of fields. The zero value is ready to use.
type Form struct {
	fields []Field
}

// Body is an encoded form together with the boundary that delimits its parts.
type Body struct {
	Bytes    []byte
	Boundary string
}

// ContentType returns the header value announcing the body's boundary.
func (b *Body) ContentType() string {
	return "multipart/form-data; boundary=" + b.Boundary
}

// FileError reports a file part whose source could not be read.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("read file %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// ValueError reports a text field that is not valid UTF-8.
type ValueError struct {
	Name string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("field %s is not valid UTF-8", e.Name)
}

// AddValue appends a text field.
func (f *Form) AddValue(name, value string) {
	f.fields = append(f.fields, Field{Name: name, Value: []byte(value)})
}

// AddFile appends a file part named after the file's base name. The content
// type is sniffed from the file contents when the part is encoded.
func (f *Form) AddFile(name, path string) {
	f.AddFileWithName(name, path, "", "")
}

// AddFileWithName appends a file part with an explicit filename and content
// type. Empty values fall back to the base name and content sniffing.
func (f *Form) AddFileWithName(name, path, filename, contentType string) {
	if filename == "" {
		filename = filepath.Base(path)
	}
	f.fields = append(f.fields, Field{
		Name:        name,
		Path:        path,
		Filename:    filename,
		ContentType: contentType,
	})
}

// Fields returns a copy of the fields in insertion order.
func (f *Form) Fields() []Field {
	out := make([]Field, len(f.fields))
	copy(out, f.fields)
	return out
}

// NewBoundary returns a random boundary token. The random suffix carries 122
// bits of entropy, so a collision with part content is not a practical concern.
func NewBoundary() string {
	return boundaryPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Encode encodes the form using a freshly generated boundary.
func (f *Form) Encode() (*Body, error) {
	return f.EncodeWithBoundary(NewBoundary())
}

// EncodeWithBoundary encodes the form using the given boundary. Output is
// byte-stable for a fixed boundary and field set.
func (f *Form) EncodeWithBoundary(boundary string) (*Body, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(boundary); err != nil {
		return nil, fmt.Errorf("invalid boundary %q: %w", boundary, err)
	}

	for _, field := range f.fields {
		content, header, err := field.part()
		if err != nil {
			return nil, err
		}
		pw, err := w.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("failed to create part %s: %w", field.Name, err)
		}
		if _, err := pw.Write(content); err != nil {
			return nil, fmt.Errorf("failed to write part %s: %w", field.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &Body{Bytes: buf.Bytes(), Boundary: boundary}, nil
}

func (f Field) part() ([]byte, textproto.MIMEHeader, error) {
	header := make(textproto.MIMEHeader)
	if !f.IsFile() {
		if !utf8.Valid(f.Value) {
			return nil, nil, &ValueError{Name: f.Name}
		}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, escapeQuotes(f.Name)))
		return f.Value, header, nil
	}

	content, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, nil, &FileError{Path: f.Path, Err: err}
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(content).String()
	}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(f.Name), escapeQuotes(f.Filename)))
	header.Set("Content-Type", contentType)
	return content, header, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
