// Package digest computes the SHA-256 and MD5 digests of a body in one pass.
package digest

import (
	"bytes"
	"crypto/md5" //nolint:gosec // MD5 is the blob store's upload integrity check, not a security boundary.
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// Sum holds the digests of one body.
type Sum struct {
	SHA256 [sha256.Size]byte
	MD5    [md5.Size]byte
	Size   int64
}

// SHA256Hex returns the lowercase hex SHA-256 digest.
func (s Sum) SHA256Hex() string {
	return hex.EncodeToString(s.SHA256[:])
}

// SHA256Base64 returns the standard base64 SHA-256 digest.
func (s Sum) SHA256Base64() string {
	return base64.StdEncoding.EncodeToString(s.SHA256[:])
}

// MD5Base64 returns the standard base64 MD5 digest.
func (s Sum) MD5Base64() string {
	return base64.StdEncoding.EncodeToString(s.MD5[:])
}

// Writer hashes everything written to it.
type Writer struct {
	sha hash.Hash
	md5 hash.Hash
	n   int64
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{
		sha: sha256.New(),
		md5: md5.New(), //nolint:gosec // see import
	}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	w.sha.Write(p) //nolint:errcheck // hash.Hash never returns an error
	w.md5.Write(p) //nolint:errcheck // hash.Hash never returns an error
	w.n += int64(len(p))
	return len(p), nil
}

// Sum returns the digests of the bytes written so far.
func (w *Writer) Sum() Sum {
	var s Sum
	copy(s.SHA256[:], w.sha.Sum(nil))
	copy(s.MD5[:], w.md5.Sum(nil))
	s.Size = w.n
	return s
}

// ReadAll drains r into memory while hashing it.
func ReadAll(r io.Reader) ([]byte, Sum, error) {
	var buf bytes.Buffer
	w := NewWriter()
	if _, err := io.Copy(io.MultiWriter(&buf, w), r); err != nil {
		return nil, Sum{}, fmt.Errorf("read body: %w", err)
	}
	return buf.Bytes(), w.Sum(), nil
}

// Bytes hashes an in-memory body.
func Bytes(data []byte) Sum {
	w := NewWriter()
	w.Write(data) //nolint:errcheck // Writer never fails
	return w.Sum()
}
