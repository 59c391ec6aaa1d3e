package certificates

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"certificate-studio/certificate-backend/internal/metrics"
	"certificate-studio/certificate-backend/internal/notifications"
	"certificate-studio/certificate-backend/internal/render"
	"certificate-studio/certificate-backend/internal/templates"
	"certificate-studio/certificate-backend/pkg/storage"
	"certificate-studio/certificate-backend/pkg/workflows"
)

const (
	maxIDAttempts   = 3
	defaultPageSize = 20
	maxPageSize     = 100
)

// TemplateSource is the slice of the template service generation needs
type TemplateSource interface {
	GetForGeneration(ctx context.Context, owner, id primitive.ObjectID) (*templates.Template, error)
	LoadAsset(t *templates.Template) (render.Asset, error)
	IncrementUsage(ctx context.Context, id primitive.ObjectID) error
}

// Renderer produces both output formats for one job
type Renderer interface {
	Run(ctx context.Context, job render.Job) (*render.Result, error)
}

type Deps struct {
	Repo          Repository
	IDs           *IDGenerator
	Templates     TemplateSource
	Renderer      Renderer
	Files         *storage.Disk
	Mirror        Mirror
	Notifier      notifications.Notifier
	Metrics       *metrics.Metrics
	DefaultWidth  float64
	PublicBaseURL string
	Logger        *zap.Logger
}

type Service struct {
	repo          Repository
	ids           *IDGenerator
	templates     TemplateSource
	renderer      Renderer
	files         *storage.Disk
	mirror        Mirror
	notifier      notifications.Notifier
	metrics       *metrics.Metrics
	states        *workflows.StateMachine
	defaultWidth  float64
	publicBaseURL string
	logger        *zap.Logger
	now           func() time.Time
}

func NewService(d Deps) *Service {
	if d.Notifier == nil {
		d.Notifier = notifications.NopNotifier{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{
		repo:          d.Repo,
		ids:           d.IDs,
		templates:     d.Templates,
		renderer:      d.Renderer,
		files:         d.Files,
		mirror:        d.Mirror,
		notifier:      d.Notifier,
		metrics:       d.Metrics,
		states:        workflows.NewCertificateStateMachine(),
		defaultWidth:  d.DefaultWidth,
		publicBaseURL: strings.TrimRight(d.PublicBaseURL, "/"),
		logger:        d.Logger,
		now:           time.Now,
	}
}

// plan is everything about a generation that does not depend on the
// participant, resolved once and shared by bulk runs
type plan struct {
	tpl       *templates.Template
	asset     render.Asset
	items     []render.Placed
	container render.Size
}

// prepare runs every check that can reject a request before any record
// exists: template ownership and state, placeholder completeness, and the
// coordinate mapping itself
func (s *Service) prepare(ctx context.Context, owner primitive.ObjectID, templateID string, container render.Size) (*plan, error) {
	tplID, err := primitive.ObjectIDFromHex(templateID)
	if err != nil {
		return nil, ErrInvalidTemplateID
	}
	tpl, err := s.templates.GetForGeneration(ctx, owner, tplID)
	if err != nil {
		return nil, err
	}

	if err := render.ValidatePlaceholders(tpl.Placeholders); err != nil {
		return nil, err
	}
	effective := render.ContainerOrDefault(tpl.Size(), container, s.defaultWidth)
	items, _, err := render.MapPlaceholders(tpl.Size(), effective, tpl.Placeholders, s.defaultWidth)
	if err != nil {
		return nil, err
	}

	asset, err := s.templates.LoadAsset(tpl)
	if err != nil {
		return nil, err
	}
	return &plan{tpl: tpl, asset: asset, items: items, container: effective}, nil
}

// Generate issues one certificate. A rendering or storage failure still
// returns the failed record alongside an error wrapping ErrGenerationFailed.
func (s *Service) Generate(ctx context.Context, owner primitive.ObjectID, req *GenerateRequest) (*Certificate, error) {
	name := strings.TrimSpace(req.ParticipantName)
	if name == "" {
		return nil, ErrEmptyParticipant
	}
	p, err := s.prepare(ctx, owner, req.TemplateID, req.ContainerDimensions)
	if err != nil {
		return nil, err
	}

	cert, err := s.generate(ctx, owner, p, name)
	if err == nil {
		s.notify(owner, notifications.WSMessageTypeCertificateGenerated, cert)
	}
	return cert, err
}

func (s *Service) generate(ctx context.Context, owner primitive.ObjectID, p *plan, name string) (*Certificate, error) {
	cert, err := s.createPending(ctx, owner, p, name)
	if err != nil {
		return nil, err
	}

	if err := s.templates.IncrementUsage(ctx, p.tpl.ID); err != nil {
		s.logger.Warn("Failed to increment template usage", zap.String("template_id", p.tpl.ID.Hex()), zap.Error(err))
	}

	res, err := s.renderer.Run(ctx, render.Job{
		Asset: p.asset,
		Size:  p.tpl.Size(),
		Items: p.items,
		Values: map[render.PlaceholderType]string{
			render.PlaceholderName: name,
			render.PlaceholderID:   cert.CertificateID,
		},
	})
	if err != nil {
		return s.fail(ctx, cert, err)
	}

	files, err := s.writeFiles(cert.CertificateID, res)
	if err != nil {
		return s.fail(ctx, cert, err)
	}
	s.mirrorFiles(ctx, &files)

	if err := s.transition(cert, StatusGenerated); err != nil {
		s.removeFiles(ctx, files)
		return s.fail(ctx, cert, err)
	}
	now := s.now().UTC()
	cert.Files = files
	cert.GeneratedAt = &now
	cert.UpdatedAt = now
	if err := s.repo.UpdateCertificate(ctx, cert); err != nil {
		s.removeFiles(ctx, files)
		return s.fail(ctx, cert, fmt.Errorf("mark certificate generated: %w", err))
	}

	s.metrics.IncCertificates(string(StatusGenerated))
	s.logger.Info("Certificate generated",
		zap.String("certificate_id", cert.CertificateID),
		zap.String("template_id", p.tpl.ID.Hex()),
	)
	return cert, nil
}

// createPending assigns an identifier and inserts the pending record. A
// duplicate identifier means the counter was reset underneath us, so a fresh
// value is drawn a bounded number of times.
func (s *Service) createPending(ctx context.Context, owner primitive.ObjectID, p *plan, name string) (*Certificate, error) {
	now := s.now().UTC()
	cert := &Certificate{
		ID:                  primitive.NewObjectID(),
		ParticipantName:     name,
		TemplateID:          p.tpl.ID,
		Template:            snapshot(p.tpl),
		ContainerDimensions: p.container,
		Status:              StatusPending,
		IsActive:            true,
		CreatedBy:           owner,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	var err error
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		cert.CertificateID, err = s.ids.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("assign certificate id: %w", err)
		}
		err = s.repo.CreateCertificate(ctx, cert)
		if !errors.Is(err, ErrDuplicateCertificateID) {
			break
		}
		s.logger.Warn("Certificate id already taken, drawing another", zap.String("certificate_id", cert.CertificateID))
	}
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	s.metrics.IncCertificates(string(StatusPending))
	return cert, nil
}

// fail removes partial output and records the reason. It uses a context
// detached from cancellation so a client disconnect still lands the record
// in a terminal state.
func (s *Service) fail(ctx context.Context, cert *Certificate, cause error) (*Certificate, error) {
	ctx = context.WithoutCancel(ctx)
	s.removeFiles(ctx, Files{
		PDF: &FileRef{Name: fileName(cert.CertificateID, FormatPDF)},
		PNG: &FileRef{Name: fileName(cert.CertificateID, FormatPNG)},
	})

	cert.Status = StatusFailed
	cert.Files = Files{}
	cert.FailureReason = cause.Error()
	cert.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateCertificate(ctx, cert); err != nil {
		s.logger.Error("Failed to record generation failure",
			zap.String("certificate_id", cert.CertificateID), zap.Error(err))
	}

	s.metrics.IncCertificates(string(StatusFailed))
	s.logger.Warn("Certificate generation failed",
		zap.String("certificate_id", cert.CertificateID), zap.Error(cause))
	return cert, fmt.Errorf("%w: %w", ErrGenerationFailed, cause)
}

func (s *Service) transition(cert *Certificate, to Status) error {
	if err := s.states.Transition(string(cert.Status), string(to)); err != nil {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, cert.Status, to)
	}
	cert.Status = to
	return nil
}

func (s *Service) writeFiles(certificateID string, res *render.Result) (Files, error) {
	png, err := s.writeFile(certificateID, FormatPNG, res.PNG.Data)
	if err != nil {
		return Files{}, err
	}
	pdf, err := s.writeFile(certificateID, FormatPDF, res.PDF.Data)
	if err != nil {
		s.files.Remove(png.Name)
		return Files{}, err
	}
	return Files{PDF: pdf, PNG: png}, nil
}

func (s *Service) writeFile(certificateID, format string, data []byte) (*FileRef, error) {
	name := fileName(certificateID, format)
	info, err := s.files.Write(name, data)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	return &FileRef{Name: name, Size: info.Size, URL: s.downloadURL(certificateID, format)}, nil
}

// mirrorFiles uploads both files when a mirror is configured. Failures are
// logged and leave ObjectKey empty.
func (s *Service) mirrorFiles(ctx context.Context, files *Files) {
	if s.mirror == nil {
		return
	}
	for format, ref := range map[string]*FileRef{FormatPDF: files.PDF, FormatPNG: files.PNG} {
		data, err := s.files.Read(ref.Name)
		if err == nil {
			ref.ObjectKey, err = s.mirror.Put(ctx, ref.Name, contentType(format), data)
		}
		if err != nil {
			s.logger.Warn("Failed to mirror certificate file", zap.String("file", ref.Name), zap.Error(err))
		}
	}
}

func (s *Service) removeFiles(ctx context.Context, files Files) {
	for _, ref := range []*FileRef{files.PDF, files.PNG} {
		if ref == nil {
			continue
		}
		if err := s.files.Remove(ref.Name); err != nil {
			s.logger.Warn("Failed to remove certificate file", zap.String("file", ref.Name), zap.Error(err))
		}
		if s.mirror != nil && ref.ObjectKey != "" {
			if err := s.mirror.Remove(ctx, ref.ObjectKey); err != nil {
				s.logger.Warn("Failed to remove mirrored file", zap.String("key", ref.ObjectKey), zap.Error(err))
			}
		}
	}
}

func (s *Service) downloadURL(certificateID, format string) string {
	return fmt.Sprintf("%s/api/v1/certificates/%s/download/%s", s.publicBaseURL, certificateID, format)
}

func (s *Service) notify(owner primitive.ObjectID, msgType string, data interface{}) {
	err := s.notifier.SendToUser(owner.Hex(), notifications.NewMessage(msgType, data))
	if err != nil && !errors.Is(err, notifications.ErrUserNotConnected) {
		s.logger.Debug("Failed to push notification", zap.String("type", msgType), zap.Error(err))
	}
}

// Get accepts either the record's ObjectID or its CERT-<year>-<seq> id
func (s *Service) Get(ctx context.Context, owner primitive.ObjectID, ref string) (*Certificate, error) {
	var (
		cert *Certificate
		err  error
	)
	if oid, perr := primitive.ObjectIDFromHex(ref); perr == nil {
		cert, err = s.repo.GetCertificate(ctx, oid)
	} else {
		cert, err = s.repo.GetByCertificateID(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if cert.CreatedBy != owner || !cert.IsActive {
		return nil, ErrNotFound
	}
	return cert, nil
}

func (s *Service) List(ctx context.Context, owner primitive.ObjectID, filters ListFilters) (*ListResponse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = defaultPageSize
	}
	if filters.PageSize > maxPageSize {
		filters.PageSize = maxPageSize
	}

	certs, total, err := s.repo.ListCertificates(ctx, owner, filters)
	if err != nil {
		return nil, err
	}
	return &ListResponse{Certificates: certs, Total: total, Page: filters.Page, PageSize: filters.PageSize}, nil
}

// Archive hides a generated or failed certificate from default listings.
// Its files stay downloadable only while generated, so archiving stops
// downloads.
func (s *Service) Archive(ctx context.Context, owner primitive.ObjectID, ref string) (*Certificate, error) {
	cert, err := s.Get(ctx, owner, ref)
	if err != nil {
		return nil, err
	}
	if err := s.transition(cert, StatusArchived); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	cert.ArchivedAt = &now
	cert.UpdatedAt = now
	if err := s.repo.UpdateCertificate(ctx, cert); err != nil {
		return nil, err
	}
	s.metrics.IncCertificates(string(StatusArchived))
	return cert, nil
}

// SoftDelete marks the record inactive. Files are kept until DeleteAll.
func (s *Service) SoftDelete(ctx context.Context, owner primitive.ObjectID, ref string) error {
	cert, err := s.Get(ctx, owner, ref)
	if err != nil {
		return err
	}
	cert.IsActive = false
	cert.UpdatedAt = s.now().UTC()
	return s.repo.UpdateCertificate(ctx, cert)
}

// DeleteAll hard-deletes every certificate the admin owns, including
// archived and soft-deleted ones, together with their files. The
// confirmation must match ConfirmationPhrase exactly.
func (s *Service) DeleteAll(ctx context.Context, owner primitive.ObjectID, confirmation string) (int64, error) {
	if confirmation != ConfirmationPhrase {
		return 0, ErrConfirmationMismatch
	}

	certs, err := s.repo.ListAllByOwner(ctx, owner)
	if err != nil {
		return 0, err
	}
	for _, c := range certs {
		s.removeFiles(ctx, c.Files)
	}

	n, err := s.repo.DeleteAllByOwner(ctx, owner)
	if err != nil {
		return 0, err
	}
	s.logger.Warn("All certificates deleted", zap.String("admin_id", owner.Hex()), zap.Int64("count", n))
	return n, nil
}

// Download resolves a file for serving and counts the download
func (s *Service) Download(ctx context.Context, owner primitive.ObjectID, ref, format string) (*Download, error) {
	format = strings.ToLower(format)
	if format != FormatPDF && format != FormatPNG {
		return nil, ErrInvalidFormat
	}
	cert, err := s.Get(ctx, owner, ref)
	if err != nil {
		return nil, err
	}
	file := cert.file(format)
	if !cert.Downloadable() || file == nil {
		return nil, ErrNotDownloadable
	}

	d := &Download{
		FileName:    file.Name,
		ContentType: contentType(format),
	}
	p, err := s.files.Path(file.Name)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(p); statErr == nil {
		d.Path = p
	} else if s.mirror != nil && file.ObjectKey != "" {
		if d.RedirectURL, err = s.mirror.URL(ctx, file.ObjectKey); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("%w: %s is missing", ErrNotDownloadable, file.Name)
	}

	if err := s.repo.IncrementDownloads(ctx, cert.ID); err != nil {
		s.logger.Warn("Failed to count download", zap.String("certificate_id", cert.CertificateID), zap.Error(err))
	}
	s.metrics.IncDownloads(format)
	return d, nil
}

func (s *Service) Stats(ctx context.Context, owner primitive.ObjectID) (*Stats, error) {
	return s.repo.Stats(ctx, owner)
}

// ArchiveEntry is one file to add to a bulk download
type ArchiveEntry struct {
	CertificateID string
	Name          string
	Path          string
}

// ResolveFiles maps certificate references to their files on disk.
// References that are unknown, not owned, not generated, or missing on disk
// are returned as skipped rather than failing the whole request.
func (s *Service) ResolveFiles(ctx context.Context, owner primitive.ObjectID, refs []string, format string) ([]ArchiveEntry, []string) {
	var (
		entries []ArchiveEntry
		skipped []string
	)
	for _, ref := range refs {
		cert, err := s.Get(ctx, owner, ref)
		if err != nil || !cert.Downloadable() {
			skipped = append(skipped, ref)
			continue
		}
		file := cert.file(format)
		if file == nil {
			skipped = append(skipped, ref)
			continue
		}
		p, err := s.files.Path(file.Name)
		if err != nil {
			skipped = append(skipped, ref)
			continue
		}
		if _, err := os.Stat(p); err != nil {
			skipped = append(skipped, ref)
			continue
		}
		entries = append(entries, ArchiveEntry{CertificateID: cert.CertificateID, Name: file.Name, Path: p})
	}
	return entries, skipped
}

func snapshot(t *templates.Template) TemplateSnapshot {
	return TemplateSnapshot{
		ID:           t.ID,
		Name:         t.Name,
		Width:        t.Width,
		Height:       t.Height,
		FileType:     t.FileType,
		Placeholders: render.ClonePlaceholders(t.Placeholders),
	}
}

func fileName(certificateID, format string) string {
	return certificateID + "." + format
}

func contentType(format string) string {
	if format == FormatPNG {
		return render.MIMEPNG
	}
	return render.MIMEPDF
}

// IsValidationError reports errors caused by the request rather than the
// server
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidTemplateID,
		ErrEmptyParticipant,
		ErrNoParticipants,
		ErrTooManyParticipants,
		ErrInvalidFormat,
		templates.ErrInactive,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return templates.IsValidationError(err)
}
