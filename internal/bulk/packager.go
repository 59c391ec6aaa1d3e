package bulk

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"certificate-studio/certificate-backend/internal/certificates"
	"certificate-studio/certificate-backend/internal/metrics"
	"certificate-studio/certificate-backend/internal/notifications"
	"certificate-studio/certificate-backend/pkg/storage"
)

// Source resolves certificate references to files on disk
type Source interface {
	ResolveFiles(ctx context.Context, owner primitive.ObjectID, refs []string, format string) ([]certificates.ArchiveEntry, []string)
}

// Packager streams generated files into zip archives
type Packager struct {
	source        Source
	archives      *storage.Disk
	registry      *Registry
	notifier      notifications.Notifier
	metrics       *metrics.Metrics
	publicBaseURL string
	logger        *zap.Logger
	now           func() time.Time
}

func NewPackager(source Source, archives *storage.Disk, registry *Registry, notifier notifications.Notifier, m *metrics.Metrics, publicBaseURL string, logger *zap.Logger) *Packager {
	if notifier == nil {
		notifier = notifications.NopNotifier{}
	}
	return &Packager{
		source:        source,
		archives:      archives,
		registry:      registry,
		notifier:      notifier,
		metrics:       m,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
		now:           time.Now,
	}
}

// item is one unit of progress: a file to add, or a reference to skip
type item struct {
	ref   string
	entry *certificates.ArchiveEntry
}

// Package builds one archive for the requested certificates. Entries are
// added one at a time and a progress event follows each of them. Once
// started the archive runs to completion or fails outright; request
// cancellation does not interrupt it.
func (p *Packager) Package(ctx context.Context, owner primitive.ObjectID, req *DownloadRequest) (*Result, error) {
	refs := dedupe(req.CertificateIDs)
	if len(refs) == 0 {
		return nil, ErrNoCertificates
	}
	if len(refs) > MaxArchiveCertificates {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyFiles, len(refs), MaxArchiveCertificates)
	}
	formats, err := formatsFor(strings.ToLower(req.Format))
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	var (
		items   []item
		skipped []string
	)
	for _, format := range formats {
		entries, missing := p.source.ResolveFiles(ctx, owner, refs, format)
		for i := range entries {
			items = append(items, item{ref: entries[i].CertificateID, entry: &entries[i]})
		}
		for _, ref := range missing {
			items = append(items, item{ref: ref})
			skipped = append(skipped, ref+"."+format)
		}
	}

	progress := Progress{Status: StatusStarted, Total: len(items)}
	p.emit(owner, progress)

	name := fmt.Sprintf("certificates-%s-%s.zip", p.now().UTC().Format("20060102-150405"), uuid.New().String()[:8])
	added, err := p.write(name, items, owner, &progress)
	if err == nil && added == 0 {
		err = ErrNothingToArchive
	}
	if err != nil {
		p.archives.Remove(name)
		p.metrics.IncArchives(StatusError)
		progress.Status = StatusError
		progress.CurrentFile = ""
		progress.Message = err.Error()
		p.emit(owner, progress)
		p.logger.Warn("Bulk archive failed", zap.String("admin_id", owner.Hex()), zap.Error(err))
		return nil, err
	}

	info, err := p.archives.Stat(name)
	if err != nil {
		return nil, err
	}
	p.registry.Record(name, owner, p.now())
	p.metrics.IncArchives(StatusCompleted)

	progress.Status = StatusCompleted
	progress.CurrentFile = ""
	progress.ZipFileName = name
	progress.Percentage = 100
	p.emit(owner, progress)

	p.logger.Info("Bulk archive built",
		zap.String("zip", name),
		zap.Int("added", added),
		zap.Int("skipped", len(skipped)),
		zap.Int64("bytes", info.Size),
	)
	if skipped == nil {
		skipped = []string{}
	}
	return &Result{
		ZipFileName: name,
		DownloadURL: fmt.Sprintf("%s/api/v1/certificates/bulk-download/%s", p.publicBaseURL, name),
		Size:        info.Size,
		Total:       len(items),
		Added:       added,
		Skipped:     skipped,
	}, nil
}

func (p *Packager) write(name string, items []item, owner primitive.ObjectID, progress *Progress) (int, error) {
	f, err := p.archives.Create(name)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	added := 0
	for _, it := range items {
		progress.Status = StatusProcessing
		progress.CurrentFile = it.ref
		if it.entry != nil {
			if err := addFile(zw, it.entry, p.now()); err != nil {
				zw.Close()
				return added, err
			}
			added++
			progress.CurrentFile = it.entry.Name
		}
		progress.Processed++
		progress.Added = added
		progress.Percentage = percentage(progress.Processed, progress.Total)
		p.emit(owner, *progress)
	}

	if err := zw.Close(); err != nil {
		return added, fmt.Errorf("finish archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return added, fmt.Errorf("close archive: %w", err)
	}
	return added, nil
}

func addFile(zw *zip.Writer, e *certificates.ArchiveEntry, modified time.Time) error {
	src, err := os.Open(e.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", e.Name, err)
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Deflate, Modified: modified})
	if err != nil {
		return fmt.Errorf("add %s: %w", e.Name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("copy %s: %w", e.Name, err)
	}
	return nil
}

func (p *Packager) emit(owner primitive.ObjectID, progress Progress) {
	err := p.notifier.SendToUser(owner.Hex(), notifications.NewMessage(notifications.WSMessageTypeBulkDownloadProgress, progress))
	if err != nil && !errors.Is(err, notifications.ErrUserNotConnected) {
		p.logger.Debug("Failed to push archive progress", zap.Error(err))
	}
}

// Open returns the location of an archive owned by owner
func (p *Packager) Open(owner primitive.ObjectID, name string) (string, error) {
	if !p.registry.Owns(name, owner) {
		return "", ErrArchiveNotFound
	}
	path, err := p.archives.Path(name)
	if err != nil {
		return "", ErrArchiveNotFound
	}
	if _, err := os.Stat(path); err != nil {
		p.registry.Forget(name)
		return "", ErrArchiveNotFound
	}
	return path, nil
}

func dedupe(refs []string) []string {
	seen := make(map[string]bool, len(refs))
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

func percentage(done, total int) float64 {
	if total == 0 {
		return 100
	}
	return math.Round(float64(done)/float64(total)*10000) / 100
}
