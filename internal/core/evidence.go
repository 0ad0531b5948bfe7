package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/assurelog/internal/logging"
)

// evidenceTypes lists the accepted evidence extensions and the MIME type
// used when the client does not declare one.
var evidenceTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"webp": "image/webp",
	"mp4":  "video/mp4",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"wmv":  "video/x-ms-wmv",
	"flv":  "video/x-flv",
	"webm": "video/webm",
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"txt":  "text/plain",
	"rtf":  "application/rtf",
	"zip":  "application/zip",
	"rar":  "application/vnd.rar",
	"7z":   "application/x-7z-compressed",
}

// EvidenceAllowed reports whether a file name has an accepted extension.
func EvidenceAllowed(fileName string) bool {
	_, ok := evidenceTypes[FileKind(fileName)]
	return ok
}

// EvidenceContentType picks the content type served for a stored blob.
func EvidenceContentType(ev Evidence) string {
	if ev.MIMEType != "" && ev.MIMEType != "application/octet-stream" {
		return ev.MIMEType
	}
	if t, ok := evidenceTypes[FileKind(ev.StoredName)]; ok {
		return t
	}
	if t := mime.TypeByExtension("." + FileKind(ev.StoredName)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// EvidenceUpload is one evidence file sent by a client.
type EvidenceUpload struct {
	TestCaseID  string
	FileName    string
	ContentType string
	Body        io.Reader
}

// UploadEvidence stores a blob and appends its reference to a test case.
// If the reference cannot be written the blob is removed again.
func (s *Service) UploadEvidence(ctx context.Context, id Identity, up EvidenceUpload) (*Evidence, error) {
	ext := FileKind(up.FileName)
	fallbackType, ok := evidenceTypes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEvidenceType, up.FileName)
	}

	if _, err := s.authorizeTestCase(ctx, s.store, id, up.TestCaseID); err != nil {
		return nil, err
	}

	ev := &Evidence{
		TestCaseID:   up.TestCaseID,
		StoredName:   strings.ReplaceAll(uuid.NewString(), "-", "") + "." + ext,
		OriginalName: originalName(up.FileName),
		MIMEType:     strings.TrimSpace(up.ContentType),
		CreatedAt:    s.now().UTC(),
	}
	if ev.MIMEType == "" || ev.MIMEType == "application/octet-stream" {
		ev.MIMEType = fallbackType
	}

	n, err := s.blobs.Put(ctx, ev.StoredName, io.LimitReader(up.Body, s.maxEvidenceSize+1))
	if err != nil {
		return nil, fmt.Errorf("store evidence: %w", err)
	}
	switch {
	case n > s.maxEvidenceSize:
		s.discardBlob(ctx, ev.StoredName)
		return nil, fmt.Errorf("%w: evidence exceeds %d bytes", ErrFileTooLarge, s.maxEvidenceSize)
	case n == 0:
		s.discardBlob(ctx, ev.StoredName)
		return nil, ErrEmptyFile
	}

	err = s.store.InTx(ctx, func(repo Repository) error {
		if _, err := s.authorizeTestCase(ctx, repo, id, up.TestCaseID); err != nil {
			return err
		}
		return repo.AddEvidence(ctx, ev)
	})
	if err != nil {
		s.discardBlob(ctx, ev.StoredName)
		return nil, fmt.Errorf("add evidence: %w", err)
	}

	logging.FromContext(ctx).Info("evidence uploaded",
		"test_case_id", up.TestCaseID,
		"stored_name", ev.StoredName,
		"bytes", n,
	)
	return ev, nil
}

// OpenEvidence returns an evidence reference and a reader for its blob.
// The caller must close the reader.
func (s *Service) OpenEvidence(ctx context.Context, id Identity, storedName string) (*Evidence, io.ReadCloser, error) {
	ev, err := s.authorizeEvidence(ctx, s.store, id, storedName)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.blobs.Open(ctx, storedName)
	if err != nil {
		return nil, nil, fmt.Errorf("open evidence %s: %w", storedName, err)
	}
	return ev, rc, nil
}

// DeleteEvidence removes an evidence reference, then its blob.
func (s *Service) DeleteEvidence(ctx context.Context, id Identity, storedName string) error {
	err := s.store.InTx(ctx, func(repo Repository) error {
		ev, err := s.authorizeEvidence(ctx, repo, id, storedName)
		if err != nil {
			return err
		}
		if err := repo.DeleteEvidence(ctx, ev.StoredName); err != nil {
			return fmt.Errorf("delete evidence: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.discardBlob(ctx, storedName)
	return nil
}

// discardBlob removes a blob nothing references any more. Failures are
// logged as orphans; it reports whether the blob is gone.
func (s *Service) discardBlob(ctx context.Context, name string) bool {
	if err := s.blobs.Delete(ctx, name); err != nil && !errors.Is(err, ErrNotFound) {
		logging.FromContext(ctx).Warn("orphaned evidence blob", "stored_name", name, "error", err)
		return false
	}
	return true
}

// originalName keeps only the base name of a client-supplied path.
func originalName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "file"
	}
	return name
}
