package templates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"certificate-studio/certificate-backend/internal/render"
	"certificate-studio/certificate-backend/pkg/storage"
)

const samplePreviewName = "Participant Name"

// Service provides template store operations
type Service struct {
	repo         Repository
	files        *storage.Disk
	pipeline     *render.Pipeline
	defaultWidth float64
	logger       *zap.Logger
}

func NewService(repo Repository, files *storage.Disk, pipeline *render.Pipeline, defaultWidth float64, logger *zap.Logger) *Service {
	if defaultWidth <= 0 {
		defaultWidth = render.DefaultContainerWidth
	}
	return &Service{
		repo:         repo,
		files:        files,
		pipeline:     pipeline,
		defaultWidth: defaultWidth,
		logger:       logger,
	}
}

// Upload stores a template asset and creates its record. Dimensions come
// from the decoded image (or the preview of a PDF) unless both are declared.
func (s *Service) Upload(ctx context.Context, owner primitive.ObjectID, req *UploadRequest) (*Template, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.TrimSuffix(req.FileName, filepath.Ext(req.FileName))
	}
	if name == "" {
		return nil, ErrInvalidName
	}
	if len(req.Content) == 0 {
		return nil, ErrEmptyFile
	}

	fileType, ext, err := detectType(req.Content, false)
	if err != nil {
		return nil, err
	}

	width, height := req.Width, req.Height
	var previewExt string
	if len(req.Preview) > 0 {
		_, previewExt, err = detectType(req.Preview, true)
		if err != nil {
			return nil, fmt.Errorf("preview: %w", err)
		}
	}

	if width <= 0 || height <= 0 {
		source := req.Content
		if fileType == render.MIMEPDF {
			source = req.Preview
		}
		if len(source) == 0 {
			return nil, ErrMissingDimension
		}
		width, height, err = imageSize(source)
		if err != nil {
			return nil, err
		}
	}

	id := primitive.NewObjectID()
	base := id.Hex() + "-" + uuid.NewString()[:8]

	t := &Template{
		ID:           id,
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		Tags:         cleanTags(req.Tags),
		FileName:     filepath.Base(req.FileName),
		StoredName:   base + ext,
		FileType:     fileType,
		FileSize:     int64(len(req.Content)),
		Width:        width,
		Height:       height,
		Placeholders: []render.Placeholder{},
		IsActive:     true,
		CreatedBy:    owner,
		CreatedAt:    time.Now().UTC(),
	}
	t.UpdatedAt = t.CreatedAt

	if _, err := s.files.Write(t.StoredName, req.Content); err != nil {
		return nil, fmt.Errorf("store template file: %w", err)
	}
	if len(req.Preview) > 0 {
		t.PreviewName = base + "-preview" + previewExt
		if _, err := s.files.Write(t.PreviewName, req.Preview); err != nil {
			_ = s.files.Remove(t.StoredName)
			return nil, fmt.Errorf("store preview file: %w", err)
		}
	}

	if err := s.repo.CreateTemplate(ctx, t); err != nil {
		_ = s.files.Remove(t.StoredName)
		if t.PreviewName != "" {
			_ = s.files.Remove(t.PreviewName)
		}
		return nil, err
	}

	s.logger.Info("Template uploaded",
		zap.String("template_id", t.ID.Hex()),
		zap.String("file_type", t.FileType),
		zap.Int("width", t.Width),
		zap.Int("height", t.Height),
	)
	return t.fill(), nil
}

// ListTemplates returns the owner's templates, active only by default
func (s *Service) ListTemplates(ctx context.Context, owner primitive.ObjectID, filters ListFilters) (*ListResponse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	items, total, err := s.repo.ListTemplates(ctx, owner, filters)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return &ListResponse{Templates: items, Total: total, Page: filters.Page, PageSize: filters.PageSize}, nil
}

// GetTemplate returns a template owned by owner. Another admin's template
// is reported as not found.
func (s *Service) GetTemplate(ctx context.Context, owner, id primitive.ObjectID) (*Template, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.CreatedBy != owner {
		return nil, ErrNotFound
	}
	return t, nil
}

// SavePlaceholders replaces the placeholder layout. An empty list is
// accepted; the template just cannot be used for generation until both
// placeholder kinds exist.
func (s *Service) SavePlaceholders(ctx context.Context, owner, id primitive.ObjectID, ps []render.Placeholder) (*Template, error) {
	t, err := s.GetTemplate(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if err := render.ValidatePlaceholders(ps); err != nil {
		return nil, err
	}

	ps = render.ClonePlaceholders(ps)
	for i := range ps {
		if ps[i].ID == "" {
			ps[i].ID = uuid.NewString()
		}
	}

	if err := s.repo.UpdatePlaceholders(ctx, t.ID, ps); err != nil {
		return nil, fmt.Errorf("save placeholders: %w", err)
	}
	t.Placeholders = ps
	t.UpdatedAt = time.Now().UTC()
	return t, nil
}

func (s *Service) UpdateMetadata(ctx context.Context, owner, id primitive.ObjectID, req *UpdateMetadataRequest) (*Template, error) {
	t, err := s.GetTemplate(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrInvalidName
		}
		t.Name = name
	}
	if req.Description != nil {
		t.Description = strings.TrimSpace(*req.Description)
	}
	if req.Tags != nil {
		t.Tags = cleanTags(*req.Tags)
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	t.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return t, nil
}

// Deactivate hides a template. Templates are never physically deleted
// because certificates keep referring to them.
func (s *Service) Deactivate(ctx context.Context, owner, id primitive.ObjectID) error {
	inactive := false
	_, err := s.UpdateMetadata(ctx, owner, id, &UpdateMetadataRequest{IsActive: &inactive})
	return err
}

// AssetName returns the stored file name and MIME type of the template or
// of its preview image
func (s *Service) AssetName(ctx context.Context, owner, id primitive.ObjectID, preview bool) (string, string, error) {
	t, err := s.GetTemplate(ctx, owner, id)
	if err != nil {
		return "", "", err
	}
	if !preview {
		return t.StoredName, t.FileType, nil
	}
	if t.PreviewName == "" {
		return "", "", ErrNotFound
	}
	mime := render.MIMEPNG
	if strings.HasSuffix(t.PreviewName, ".jpg") {
		mime = render.MIMEJPEG
	}
	return t.PreviewName, mime, nil
}

// FilePath resolves a stored file name to its location on disk
func (s *Service) FilePath(name string) (string, error) {
	return s.files.Path(name)
}

// LoadAsset reads the template file and its preview for rendering
func (s *Service) LoadAsset(t *Template) (render.Asset, error) {
	data, err := s.files.Read(t.StoredName)
	if err != nil {
		return render.Asset{}, fmt.Errorf("read template file: %w", err)
	}
	asset := render.Asset{Data: data, MIMEType: t.FileType}
	if t.PreviewName != "" {
		preview, err := s.files.Read(t.PreviewName)
		if err != nil {
			return render.Asset{}, fmt.Errorf("read preview file: %w", err)
		}
		asset.Preview = preview
	}
	return asset, nil
}

// GetForGeneration returns an owned, active template that has both
// placeholder kinds, or the reason it cannot be used
func (s *Service) GetForGeneration(ctx context.Context, owner, id primitive.ObjectID) (*Template, error) {
	t, err := s.GetTemplate(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, ErrInactive
	}
	if err := render.RequireUsable(t.Placeholders); err != nil {
		return nil, err
	}
	if t.FileType == render.MIMEPDF && t.PreviewName == "" {
		return nil, render.ErrMissingPreview
	}
	return t, nil
}

// IncrementUsage records one generation attempt against the template
func (s *Service) IncrementUsage(ctx context.Context, id primitive.ObjectID) error {
	return s.repo.IncrementUsage(ctx, id)
}

// Preview renders the template as PNG with sample values. Nothing is
// persisted and no certificate id is consumed.
func (s *Service) Preview(ctx context.Context, owner, id primitive.ObjectID, req *PreviewRequest) ([]byte, error) {
	t, err := s.GetTemplate(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	ps := t.Placeholders
	if req.Placeholders != nil {
		if err := render.ValidatePlaceholders(req.Placeholders); err != nil {
			return nil, err
		}
		ps = req.Placeholders
	}

	placed, _, err := render.MapPlaceholders(t.Size(), req.ContainerDimensions, ps, s.defaultWidth)
	if err != nil {
		return nil, err
	}

	asset, err := s.LoadAsset(t)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = samplePreviewName
	}
	certID := strings.TrimSpace(req.CertificateID)
	if certID == "" {
		certID = fmt.Sprintf("CERT-%d-001", time.Now().Year())
	}

	out, err := s.pipeline.Preview(ctx, render.Job{
		Asset: asset,
		Size:  t.Size(),
		Items: placed,
		Values: map[render.PlaceholderType]string{
			render.PlaceholderName: name,
			render.PlaceholderID:   certID,
		},
	})
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

func detectType(data []byte, imageOnly bool) (string, string, error) {
	m := mimetype.Detect(data)
	switch {
	case m.Is(render.MIMEPNG):
		return render.MIMEPNG, ".png", nil
	case m.Is(render.MIMEJPEG):
		return render.MIMEJPEG, ".jpg", nil
	case m.Is(render.MIMEPDF) && !imageOnly:
		return render.MIMEPDF, ".pdf", nil
	}
	return "", "", ErrUnsupportedType
}

func imageSize(data []byte) (int, int, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", render.ErrDecodeTemplate, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return 0, 0, render.ErrInvalidDimensions
	}
	return b.Dx(), b.Dy(), nil
}

func cleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := []string{}
	for _, raw := range tags {
		for _, tag := range strings.Split(raw, ",") {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}

// IsValidationError reports whether err was caused by bad client input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrMissingDimension) ||
		errors.Is(err, ErrEmptyFile) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, render.ErrDecodeTemplate) ||
		errors.Is(err, render.ErrInvalidDimensions) ||
		errors.Is(err, render.ErrMissingPreview) ||
		errors.Is(err, render.ErrTemplateIncomplete) ||
		errors.Is(err, render.ErrInvalidPlaceholder)
}
