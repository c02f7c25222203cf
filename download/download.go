// Package download fetches verified ruling documents to local storage,
// rejecting HTML error pages served in place of a document.
package download

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/pevans/rulings/fault"
	"github.com/pevans/rulings/ruling"
)

// Format is the detected document format.
type Format string

const (
	FormatDOCX    Format = "docx"
	FormatRTF     Format = "rtf"
	FormatUnknown Format = ""
)

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	if f == FormatRTF {
		return ".rtf"
	}
	return ".docx"
}

// Config controls where and how documents are downloaded.
type Config struct {
	Dir        string        `yaml:"dir"`
	Timeout    time.Duration `yaml:"timeout"`
	MinBytes   int64         `yaml:"min_bytes"`
	SniffBytes int           `yaml:"sniff_bytes"`
	UserAgent  string        `yaml:"user_agent"`
}

// DefaultConfig returns the download settings.
func DefaultConfig() Config {
	return Config{
		Dir:        filepath.Join("documents", "scraping"),
		Timeout:    30 * time.Second,
		MinBytes:   100,
		SniffBytes: 500,
		UserAgent:  "SistemaEditorialJuridico/1.0",
	}
}

// Artifact is a document saved to disk.
type Artifact struct {
	Path   string
	Size   int64
	Format Format
}

// Downloader saves documents under Config.Dir, one subdirectory per format.
type Downloader struct {
	config Config
	client *resty.Client
	log    *zap.SugaredLogger
}

// New creates a downloader.
func New(config Config, log *zap.SugaredLogger) *Downloader {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	client := resty.New().
		SetTimeout(config.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	if config.UserAgent != "" {
		client.SetHeader("User-Agent", config.UserAgent)
	}
	return &Downloader{config: config, client: client, log: log}
}

// Download is Fetch for callers that only care whether a file was saved.
// Failures are logged and yield nil.
func (d *Downloader) Download(ctx context.Context, url string, id ruling.Identifier) *Artifact {
	artifact, err := d.Fetch(ctx, url, id)
	if err != nil {
		d.log.Warnw("Download failed",
			"id", id,
			"url", url,
			"kind", fault.KindOf(err).String(),
			"transport", fault.TransportOf(err).String(),
			"error", fault.Message(err, 120),
		)
		return nil
	}
	d.log.Infow("Downloaded", "id", id, "path", artifact.Path, "bytes", artifact.Size, "format", artifact.Format)
	return artifact
}

// Fetch downloads url and stores it as <dir>/<format>/<id><ext>. The file
// appears only once it is complete and at least MinBytes long.
func (d *Downloader) Fetch(ctx context.Context, url string, id ruling.Identifier) (*Artifact, error) {
	op := "download " + string(id)

	res, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fault.New(fault.KindDownloadTransport, op, err)
	}
	body := res.RawBody()
	defer body.Close()

	if !res.IsSuccess() {
		return nil, fault.Newf(fault.KindDownloadTransport, op, "HTTP %d from %s", res.StatusCode(), url)
	}
	if strings.Contains(strings.ToLower(res.Header().Get("Content-Type")), "text/html") {
		return nil, fault.Newf(fault.KindDownloadRejected, op, "server returned HTML instead of a document")
	}

	reader := bufio.NewReaderSize(body, max(d.config.SniffBytes, 16))
	prefix, err := reader.Peek(d.config.SniffBytes)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fault.New(fault.KindDownloadTransport, op, err)
	}
	if LooksLikeHTML(prefix) {
		return nil, fault.Newf(fault.KindDownloadRejected, op, "body is an HTML page")
	}

	// Bodies without a known signature keep the extension the URL suggests
	// and are filed with the rtf documents.
	format := Sniff(prefix)
	folder := format
	if format == FormatUnknown {
		format = GuessFormat(url)
		folder = FormatRTF
	}

	if err := d.prepareDirs(); err != nil {
		return nil, fault.New(fault.KindInternal, op, err)
	}
	dest := filepath.Join(d.config.Dir, string(folder), id.Slug()+format.Extension())

	size, err := d.save(reader, dest)
	if errors.Is(err, errTooSmall) {
		return nil, fault.Newf(fault.KindDownloadRejected, op, "file too small (%d bytes)", size)
	}
	if err != nil {
		return nil, fault.New(fault.KindDownloadTransport, op, err)
	}

	return &Artifact{Path: dest, Size: size, Format: format}, nil
}

var errTooSmall = errors.New("download too small")

// prepareDirs creates the rtf and docx folders under the download root.
func (d *Downloader) prepareDirs() error {
	for _, f := range []Format{FormatRTF, FormatDOCX} {
		if err := os.MkdirAll(filepath.Join(d.config.Dir, string(f)), 0755); err != nil {
			return errors.Wrap(err, "create download directory")
		}
	}
	return nil
}

// save streams r into destPath through a temp file in the same directory.
// Files shorter than MinBytes are discarded before they reach destPath.
func (d *Downloader) save(r io.Reader, destPath string) (int64, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*.tmp")
	if err != nil {
		return 0, errors.Wrap(err, "create temp file")
	}
	tmpPath := tmpFile.Name()

	size, copyErr := io.Copy(tmpFile, r)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return 0, errors.Wrap(copyErr, "write download")
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, errors.Wrap(closeErr, "close temp file")
	}
	if size < d.config.MinBytes {
		os.Remove(tmpPath)
		return size, errTooSmall
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return 0, errors.Wrap(err, "rename temp file")
	}
	return size, nil
}

var (
	zipMagic = []byte("PK")
	rtfMagic = []byte(`{\rtf`)
)

// Sniff identifies a document format from its first bytes.
func Sniff(prefix []byte) Format {
	switch {
	case bytes.HasPrefix(prefix, zipMagic):
		return FormatDOCX
	case bytes.HasPrefix(prefix, rtfMagic):
		return FormatRTF
	default:
		return FormatUnknown
	}
}

// LooksLikeHTML reports whether prefix is the start of an HTML page.
func LooksLikeHTML(prefix []byte) bool {
	lower := bytes.ToLower(prefix)
	return bytes.Contains(lower, []byte("<!doctype html")) || bytes.Contains(lower, []byte("<html"))
}

// GuessFormat picks a format from the URL when the content gives no hint.
func GuessFormat(url string) Format {
	if strings.HasSuffix(strings.ToLower(url), ".rtf") {
		return FormatRTF
	}
	return FormatDOCX
}
