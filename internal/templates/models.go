package templates

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"certificate-studio/certificate-backend/internal/render"
)

var (
	ErrNotFound         = errors.New("template not found")
	ErrInactive         = errors.New("template is inactive")
	ErrUnsupportedType  = errors.New("template must be a PNG, JPEG or PDF file")
	ErrMissingDimension = errors.New("pdf template needs a preview image or explicit width and height")
	ErrEmptyFile        = errors.New("template file is empty")
	ErrInvalidName      = errors.New("template name is required")
)

// Template is an uploaded certificate background with its placeholder layout.
// Width and Height are the true pixel dimensions and are authoritative for
// every coordinate computation.
type Template struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name         string               `bson:"name" json:"name"`
	Description  string               `bson:"description" json:"description"`
	Tags         []string             `bson:"tags" json:"tags"`
	FileName     string               `bson:"fileName" json:"fileName"`
	StoredName   string               `bson:"storedName" json:"-"`
	FileType     string               `bson:"fileType" json:"fileType"`
	FileSize     int64                `bson:"fileSize" json:"fileSize"`
	PreviewName  string               `bson:"previewName,omitempty" json:"-"`
	HasPreview   bool                 `bson:"-" json:"hasPreview"`
	Width        int                  `bson:"width" json:"width"`
	Height       int                  `bson:"height" json:"height"`
	Placeholders []render.Placeholder `bson:"placeholders" json:"placeholders"`
	IsActive     bool                 `bson:"isActive" json:"isActive"`
	UsageCount   int64                `bson:"usageCount" json:"usageCount"`
	CreatedBy    primitive.ObjectID   `bson:"createdBy" json:"createdBy"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// Size returns the true pixel dimensions
func (t *Template) Size() render.Size {
	return render.Size{Width: float64(t.Width), Height: float64(t.Height)}
}

// Usable reports whether the template has both a name and an id placeholder
func (t *Template) Usable() bool {
	return render.RequireUsable(t.Placeholders) == nil
}

func (t *Template) fill() *Template {
	t.HasPreview = t.PreviewName != ""
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Placeholders == nil {
		t.Placeholders = []render.Placeholder{}
	}
	return t
}

// UploadRequest carries a parsed multipart upload
type UploadRequest struct {
	Name        string
	Description string
	Tags        []string
	FileName    string
	Content     []byte
	Preview     []byte
	Width       int
	Height      int
}

type UpdateMetadataRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
	IsActive    *bool     `json:"isActive"`
}

type SavePlaceholdersRequest struct {
	Placeholders []render.Placeholder `json:"placeholders"`
}

// PreviewRequest renders a template with sample values. Placeholders, when
// set, override the stored layout so the editor can preview unsaved changes.
type PreviewRequest struct {
	ContainerDimensions render.Size          `json:"containerDimensions"`
	Placeholders        []render.Placeholder `json:"placeholders"`
	Name                string               `json:"name"`
	CertificateID       string               `json:"certificateId"`
}

type ListFilters struct {
	Search          string
	Tag             string
	IncludeInactive bool
	Page            int
	PageSize        int
}

type ListResponse struct {
	Templates []Template `json:"templates"`
	Total     int64      `json:"total"`
	Page      int        `json:"page"`
	PageSize  int        `json:"pageSize"`
}
