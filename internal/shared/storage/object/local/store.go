package local

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"construction-monitor/internal/shared/storage/object"
)

const metaSuffix = ".meta.json"

var (
	// ErrExpired is returned by Verify when the signed URL has lapsed.
	ErrExpired = errors.New("signed url expired")
	// ErrBadSignature is returned by Verify when the signature does not match.
	ErrBadSignature = errors.New("signed url signature mismatch")
)

// Meta is persisted next to each object so downloads replay the upload headers.
type Meta struct {
	ContentType        string `json:"contentType"`
	ContentDisposition string `json:"contentDisposition"`
}

// Store implements object.Store using the local filesystem. Signed URLs point
// at baseURL and carry an HMAC over key and expiry.
type Store struct {
	baseDir    string
	baseURL    string
	signingKey []byte
	now        func() time.Time
}

// New creates a new local object store rooted at baseDir.
func New(baseDir, baseURL, signingKey string) *Store {
	return &Store{
		baseDir:    baseDir,
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: []byte(signingKey),
		now:        time.Now,
	}
}

// Exists reports whether a file is stored at key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat %s: %w", object.ErrStore, key, err)
	}
	return true, nil
}

// Put writes data at key, replacing any previous object.
func (s *Store) Put(ctx context.Context, key string, data []byte, opts object.PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir: %w", object.ErrStore, err)
	}

	// Write to a temp file and rename so concurrent readers never see a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %w", object.ErrStore, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: write body: %w", object.ErrStore, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: close temp: %w", object.ErrStore, err)
	}

	meta, err := json.Marshal(Meta{ContentType: opts.ContentType, ContentDisposition: opts.ContentDisposition})
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: encode meta: %w", object.ErrStore, err)
	}
	if err := os.WriteFile(fullPath+metaSuffix, meta, 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: write meta: %w", object.ErrStore, err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: rename: %w", object.ErrStore, err)
	}
	return nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, object.ErrNotFound
		}
		return nil, fmt.Errorf("%w: open %s: %w", object.ErrStore, key, err)
	}
	return f, nil
}

// Meta returns the headers recorded when key was uploaded.
func (s *Store) Meta(key string) (Meta, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return Meta{}, err
	}
	raw, err := os.ReadFile(fullPath + metaSuffix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Meta{ContentType: "application/octet-stream"}, nil
		}
		return Meta{}, fmt.Errorf("%w: read meta: %w", object.ErrStore, err)
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return Meta{}, fmt.Errorf("%w: decode meta: %w", object.ErrStore, err)
	}
	return m, nil
}

// SignedURL builds {baseURL}/{key}?expires=..&signature=.. valid for ttl.
// The key is path-escaped in the URL; the signature covers the raw key.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", fmt.Errorf("signed url ttl must be positive")
	}
	if _, err := s.resolve(key); err != nil {
		return "", err
	}
	clean := strings.TrimLeft(filepath.ToSlash(filepath.Clean(key)), "/")
	expires := s.now().Add(ttl).Unix()

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.sign(clean, expires))
	escaped := (&url.URL{Path: clean}).EscapedPath()
	return s.baseURL + "/" + escaped + "?" + q.Encode(), nil
}

// Verify checks a signature produced by SignedURL.
func (s *Store) Verify(key, expires, signature string) error {
	clean := strings.TrimLeft(filepath.ToSlash(filepath.Clean(key)), "/")
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	want := s.sign(clean, exp)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return ErrBadSignature
	}
	if s.now().Unix() > exp {
		return ErrExpired
	}
	return nil
}

func (s *Store) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Store) resolve(key string) (string, error) {
	clean := filepath.Clean(strings.TrimLeft(key, "/"))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) || strings.HasSuffix(clean, metaSuffix) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.baseDir, clean), nil
}

var _ object.Store = (*Store)(nil)
