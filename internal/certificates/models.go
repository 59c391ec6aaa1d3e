package certificates

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"certificate-studio/certificate-backend/internal/render"
)

// ConfirmationPhrase must be sent verbatim to hard-delete every certificate
const ConfirmationPhrase = "DELETE ALL CERTIFICATES"

var (
	ErrNotFound               = errors.New("certificate not found")
	ErrInvalidTemplateID      = errors.New("invalid template id")
	ErrEmptyParticipant       = errors.New("participant name is required")
	ErrNoParticipants         = errors.New("at least one participant name is required")
	ErrTooManyParticipants    = errors.New("too many participants in one request")
	ErrGenerationFailed       = errors.New("certificate generation failed")
	ErrDuplicateCertificateID = errors.New("certificate id already exists")
	ErrNotDownloadable        = errors.New("certificate has no generated files")
	ErrInvalidFormat          = errors.New("format must be pdf or png")
	ErrInvalidTransition      = errors.New("status change not allowed")
	ErrConfirmationMismatch   = errors.New("confirmation phrase does not match")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusGenerated Status = "generated"
	StatusFailed    Status = "failed"
	StatusArchived  Status = "archived"
)

// Output formats
const (
	FormatPDF = "pdf"
	FormatPNG = "png"
)

// FileRef points at one generated file in the output directory
type FileRef struct {
	Name      string `bson:"name" json:"name"`
	Size      int64  `bson:"size" json:"size"`
	URL       string `bson:"url" json:"url"`
	ObjectKey string `bson:"objectKey,omitempty" json:"-"`
}

type Files struct {
	PDF *FileRef `bson:"pdf,omitempty" json:"pdf,omitempty"`
	PNG *FileRef `bson:"png,omitempty" json:"png,omitempty"`
}

// TemplateSnapshot is a value copy of the template taken at generation
// time; later template edits never change an issued certificate's record.
type TemplateSnapshot struct {
	ID           primitive.ObjectID   `bson:"id" json:"id"`
	Name         string               `bson:"name" json:"name"`
	Width        int                  `bson:"width" json:"width"`
	Height       int                  `bson:"height" json:"height"`
	FileType     string               `bson:"fileType" json:"fileType"`
	Placeholders []render.Placeholder `bson:"placeholders" json:"placeholders"`
}

// Certificate is one participant's issued certificate
type Certificate struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CertificateID       string             `bson:"certificateId" json:"certificateId"`
	ParticipantName     string             `bson:"participantName" json:"participantName"`
	TemplateID          primitive.ObjectID `bson:"templateId" json:"templateId"`
	Template            TemplateSnapshot   `bson:"templateSnapshot" json:"templateSnapshot"`
	ContainerDimensions render.Size        `bson:"containerDimensions" json:"containerDimensions"`
	Status              Status             `bson:"status" json:"status"`
	Files               Files              `bson:"files" json:"files"`
	FailureReason       string             `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	DownloadCount       int64              `bson:"downloadCount" json:"downloadCount"`
	IsActive            bool               `bson:"isActive" json:"isActive"`
	GeneratedAt         *time.Time         `bson:"generatedAt,omitempty" json:"generatedAt,omitempty"`
	ArchivedAt          *time.Time         `bson:"archivedAt,omitempty" json:"archivedAt,omitempty"`
	CreatedBy           primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Downloadable reports whether the certificate's files may be served
func (c *Certificate) Downloadable() bool {
	return c.Status == StatusGenerated && c.IsActive
}

func (c *Certificate) file(format string) *FileRef {
	switch format {
	case FormatPDF:
		return c.Files.PDF
	case FormatPNG:
		return c.Files.PNG
	}
	return nil
}

type GenerateRequest struct {
	TemplateID          string      `json:"templateId" binding:"required"`
	ParticipantName     string      `json:"participantName" binding:"required"`
	ContainerDimensions render.Size `json:"containerDimensions"`
}

type BulkGenerateRequest struct {
	TemplateID          string      `json:"templateId" binding:"required"`
	Participants        []string    `json:"participants"`
	ContainerDimensions render.Size `json:"containerDimensions"`
}

type BulkGenerateError struct {
	Index           int    `json:"index"`
	ParticipantName string `json:"participantName"`
	CertificateID   string `json:"certificateId,omitempty"`
	Error           string `json:"error"`
}

type BulkGenerateResult struct {
	Total        int                 `json:"total"`
	Generated    int                 `json:"generated"`
	Failed       int                 `json:"failed"`
	Certificates []Certificate       `json:"certificates"`
	Errors       []BulkGenerateError `json:"errors"`
}

// BulkGenerateProgress is pushed to the admin's websocket connections
type BulkGenerateProgress struct {
	Status     string  `json:"status"`
	Total      int     `json:"total"`
	Processed  int     `json:"processed"`
	Generated  int     `json:"generated"`
	Failed     int     `json:"failed"`
	Current    string  `json:"current,omitempty"`
	Percentage float64 `json:"percentage"`
}

type ListFilters struct {
	Status          Status
	TemplateID      *primitive.ObjectID
	Search          string
	IncludeArchived bool
	Page            int
	PageSize        int
}

type ListResponse struct {
	Certificates []Certificate `json:"certificates"`
	Total        int64         `json:"total"`
	Page         int           `json:"page"`
	PageSize     int           `json:"pageSize"`
}

type Stats struct {
	Total          int64            `json:"total"`
	ByStatus       map[Status]int64 `json:"byStatus"`
	TotalDownloads int64            `json:"totalDownloads"`
}

type DeleteAllRequest struct {
	Confirmation string `json:"confirmation"`
}

// Download describes how to serve one certificate file. RedirectURL is set
// when the file is only available from the object store mirror.
type Download struct {
	Path        string
	FileName    string
	ContentType string
	RedirectURL string
}
