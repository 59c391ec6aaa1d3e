package bulk

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"certificate-studio/certificate-backend/internal/certificates"
	"certificate-studio/certificate-backend/internal/notifications"
	"certificate-studio/certificate-backend/pkg/storage"
)

// fakeSource serves files from a directory keyed by "<ref>.<format>"
type fakeSource struct {
	dir string
}

func (s fakeSource) ResolveFiles(_ context.Context, _ primitive.ObjectID, refs []string, format string) ([]certificates.ArchiveEntry, []string) {
	var entries []certificates.ArchiveEntry
	var skipped []string
	for _, ref := range refs {
		name := ref + "." + format
		path := filepath.Join(s.dir, name)
		if _, err := os.Stat(path); err != nil {
			skipped = append(skipped, ref)
			continue
		}
		entries = append(entries, certificates.ArchiveEntry{CertificateID: ref, Name: name, Path: path})
	}
	return entries, skipped
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Progress
}

func (n *recordingNotifier) SendToUser(_ string, msg notifications.WebSocketMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if msg.Type == notifications.WSMessageTypeBulkDownloadProgress {
		n.events = append(n.events, msg.Data.(Progress))
	}
	return nil
}

type fixture struct {
	packager *Packager
	notifier *recordingNotifier
	archives *storage.Disk
	registry *Registry
	owner    primitive.ObjectID
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	src := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(src, name), []byte(body), 0o644))
	}
	archives, err := storage.NewDisk(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		notifier: &recordingNotifier{},
		archives: archives,
		registry: NewRegistry(),
		owner:    primitive.NewObjectID(),
	}
	f.packager = NewPackager(fakeSource{dir: src}, archives, f.registry, f.notifier, nil, "", zap.NewNop())
	f.packager.now = func() time.Time { return time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC) }
	return f
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(data)
	}
	return out
}

func TestPackage_SkipsMissingFiles(t *testing.T) {
	f := newFixture(t, map[string]string{
		"CERT-2024-001.pdf": "pdf-1",
		"CERT-2024-002.pdf": "pdf-2",
	})

	result, err := f.packager.Package(context.Background(), f.owner, &DownloadRequest{
		CertificateIDs: []string{"CERT-2024-001", "CERT-2024-404", "CERT-2024-002", "CERT-2024-001"},
	})
	require.NoError(t, err)

	assert.Regexp(t, `^certificates-20240517-103000-[0-9a-f]{8}\.zip$`, result.ZipFileName)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, []string{"CERT-2024-404.pdf"}, result.Skipped)
	assert.Equal(t, "/api/v1/certificates/bulk-download/"+result.ZipFileName, result.DownloadURL)

	path, err := f.packager.Open(f.owner, result.ZipFileName)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"CERT-2024-001.pdf": "pdf-1", "CERT-2024-002.pdf": "pdf-2"}, readZip(t, path))

	events := f.notifier.events
	require.Len(t, events, 5)
	assert.Equal(t, StatusStarted, events[0].Status)
	assert.Equal(t, StatusProcessing, events[1].Status)
	assert.Equal(t, 1, events[1].Processed)
	assert.Equal(t, "CERT-2024-001.pdf", events[1].CurrentFile)

	skip := events[3]
	assert.Equal(t, 3, skip.Processed)
	assert.Equal(t, 2, skip.Added)
	assert.Equal(t, "CERT-2024-404", skip.CurrentFile)

	done := events[4]
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, result.ZipFileName, done.ZipFileName)
	assert.Equal(t, float64(100), done.Percentage)
}

func TestPackage_BothFormats(t *testing.T) {
	f := newFixture(t, map[string]string{
		"CERT-2024-001.pdf": "pdf",
		"CERT-2024-001.png": "png",
	})

	result, err := f.packager.Package(context.Background(), f.owner, &DownloadRequest{
		CertificateIDs: []string{"CERT-2024-001"},
		Format:         "BOTH",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Added)

	path, err := f.packager.Open(f.owner, result.ZipFileName)
	require.NoError(t, err)
	assert.Len(t, readZip(t, path), 2)
}

func TestPackage_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.packager.Package(ctx, f.owner, &DownloadRequest{CertificateIDs: []string{" "}})
	assert.ErrorIs(t, err, ErrNoCertificates)

	_, err = f.packager.Package(ctx, f.owner, &DownloadRequest{CertificateIDs: []string{"CERT-2024-001"}, Format: "tiff"})
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = f.packager.Package(ctx, f.owner, &DownloadRequest{CertificateIDs: []string{"CERT-2024-001"}})
	assert.ErrorIs(t, err, ErrNothingToArchive)

	last := f.notifier.events[len(f.notifier.events)-1]
	assert.Equal(t, StatusError, last.Status)
	assert.Equal(t, ErrNothingToArchive.Error(), last.Message)

	left, err := f.archives.List(".zip")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestOpen_RequiresOwner(t *testing.T) {
	f := newFixture(t, map[string]string{"CERT-2024-001.pdf": "pdf"})
	result, err := f.packager.Package(context.Background(), f.owner, &DownloadRequest{CertificateIDs: []string{"CERT-2024-001"}})
	require.NoError(t, err)

	_, err = f.packager.Open(primitive.NewObjectID(), result.ZipFileName)
	assert.ErrorIs(t, err, ErrArchiveNotFound)
	_, err = f.packager.Open(f.owner, "../"+result.ZipFileName)
	assert.ErrorIs(t, err, ErrArchiveNotFound)
}

func TestCleaner_RemovesExpiredArchives(t *testing.T) {
	archives, err := storage.NewDisk(t.TempDir())
	require.NoError(t, err)
	registry := NewRegistry()
	owner := primitive.NewObjectID()
	now := time.Now()

	old, err := archives.Write("certificates-old.zip", []byte("old"))
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(old.Path, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))
	registry.Record("certificates-old.zip", owner, now.Add(-2*time.Hour))

	_, err = archives.Write("certificates-new.zip", []byte("new"))
	require.NoError(t, err)
	registry.Record("certificates-new.zip", owner, now)

	c := NewCleaner(archives, registry, time.Hour, "@every 15m", nil, zap.NewNop())
	c.now = func() time.Time { return now }

	assert.Equal(t, 1, c.RunOnce())
	left, err := archives.List(".zip")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "certificates-new.zip", left[0].Name)
	assert.False(t, registry.Owns("certificates-old.zip", owner))
	assert.True(t, registry.Owns("certificates-new.zip", owner))
}

func TestCleaner_StartStop(t *testing.T) {
	archives, err := storage.NewDisk(t.TempDir())
	require.NoError(t, err)

	bad := NewCleaner(archives, NewRegistry(), time.Hour, "not a schedule", nil, zap.NewNop())
	assert.Error(t, bad.Start())

	c := NewCleaner(archives, NewRegistry(), time.Hour, "@every 15m", nil, zap.NewNop())
	require.NoError(t, c.Start())
	assert.Error(t, c.Start())
	c.Stop()
	c.Stop()
}
