package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"rag-chatbot/config"
	"rag-chatbot/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/ledongthuc/pdf"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// File is raw content fetched from a local path or an S3 object.
type File struct {
	URI  string
	Name string
	Data []byte
}

func (f File) Ext() string { return strings.ToLower(path.Ext(f.Name)) }

// ObjectStore is the subset of the S3 client the loader needs.
type ObjectStore interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Loader resolves a source URI to files: a local file, a local directory, an
// s3://bucket/key object or an s3://bucket/prefix/ listing. Directory and
// prefix walks keep only names matching one of the include globs.
type Loader struct {
	objects ObjectStore
	include []string
}

// NewLoader builds a loader. objects may be nil when S3 is not configured.
func NewLoader(objects ObjectStore, include []string) *Loader {
	return &Loader{objects: objects, include: include}
}

func (l *Loader) Load(ctx context.Context, uri string) ([]File, error) {
	if strings.HasPrefix(uri, "s3://") {
		return l.loadS3(ctx, uri)
	}
	return l.loadLocal(uri)
}

func (l *Loader) matches(name string) bool {
	if len(l.include) == 0 {
		return true
	}
	for _, pattern := range l.include {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (l *Loader) loadLocal(p string) ([]File, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", config.ModuleIngest, err)
	}
	if !info.IsDir() {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", config.ModuleIngest, err)
		}
		return []File{{URI: p, Name: filepath.Base(p), Data: data}}, nil
	}

	var files []File
	root := os.DirFS(p)
	err = doublestar.GlobWalk(root, "**", func(rel string, d fs.DirEntry) error {
		if d.IsDir() || !l.matches(rel) {
			return nil
		}
		data, err := fs.ReadFile(root, rel)
		if err != nil {
			return err
		}
		files = append(files, File{URI: filepath.Join(p, filepath.FromSlash(rel)), Name: rel, Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%v: walk %s: %w", config.ModuleIngest, p, err)
	}
	return files, nil
}

func (l *Loader) loadS3(ctx context.Context, uri string) ([]File, error) {
	if l.objects == nil {
		return nil, fmt.Errorf("%v: s3 is not configured, cannot load %s", config.ModuleIngest, uri)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", config.ModuleIngest, err)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")

	if key != "" && !strings.HasSuffix(key, "/") {
		f, err := l.getObject(ctx, bucket, key, path.Base(key))
		if err != nil {
			return nil, err
		}
		return []File{f}, nil
	}

	var files []File
	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket), Prefix: aws.String(key)}
	for {
		out, err := l.objects.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("%v: list %s: %w", config.ModuleIngest, uri, err)
		}
		for _, obj := range out.Contents {
			objKey := aws.ToString(obj.Key)
			rel := strings.TrimPrefix(objKey, key)
			if strings.HasSuffix(objKey, "/") || !l.matches(rel) {
				continue
			}
			f, err := l.getObject(ctx, bucket, objKey, rel)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	logger.Info("%v: %d objects matched under %s", config.ModuleIngest, len(files), uri)
	return files, nil
}

func (l *Loader) getObject(ctx context.Context, bucket, key, name string) (File, error) {
	out, err := l.objects.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return File{}, fmt.Errorf("%v: get s3://%s/%s: %w", config.ModuleIngest, bucket, key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return File{}, fmt.Errorf("%v: read s3://%s/%s: %w", config.ModuleIngest, bucket, key, err)
	}
	return File{URI: fmt.Sprintf("s3://%s/%s", bucket, key), Name: name, Data: data}, nil
}

// ExtractPages returns the text of f, one entry per page. Plain text and
// markdown are a single page.
func ExtractPages(f File) ([]string, error) {
	switch f.Ext() {
	case ".txt", ".md", ".markdown":
		text := sanitizeUTF8Printable(string(f.Data))
		if text == "" {
			return nil, nil
		}
		return []string{text}, nil
	case ".pdf":
		return extractPDFPages(f.Data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Name)
	}
}

func extractPDFPages(data []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%v: open pdf: %w", config.ModuleIngest, err)
	}
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%v: pdf page %d: %w", config.ModuleIngest, i, err)
		}
		pages = append(pages, sanitizeUTF8Printable(text))
	}
	return pages, nil
}

// sanitizeUTF8Printable removes BOM and non-printable runes, keeping common whitespace.
func sanitizeUTF8Printable(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\uFEFF' || r == unicode.ReplacementChar {
			continue
		}
		if r != '\n' && r != '\t' && r != '\r' && !unicode.IsPrint(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
