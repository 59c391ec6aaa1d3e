package bulk

import "errors"

var (
	ErrNoCertificates   = errors.New("at least one certificate id is required")
	ErrTooManyFiles     = errors.New("too many certificates in one archive")
	ErrInvalidFormat    = errors.New("format must be pdf, png or both")
	ErrNothingToArchive = errors.New("none of the requested certificates have files to download")
	ErrArchiveNotFound  = errors.New("archive not found")
)

// MaxArchiveCertificates caps one bulk download request
const MaxArchiveCertificates = 1000

// Format selects which generated files go into the archive
const (
	FormatPDF  = "pdf"
	FormatPNG  = "png"
	FormatBoth = "both"
)

// Progress statuses
const (
	StatusStarted    = "started"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

type DownloadRequest struct {
	CertificateIDs []string `json:"certificateIds" binding:"required"`
	Format         string   `json:"format"`
}

// Progress is pushed to the requesting admin while an archive is built
type Progress struct {
	Status      string  `json:"status"`
	Total       int     `json:"total"`
	Processed   int     `json:"processed"`
	Added       int     `json:"added"`
	CurrentFile string  `json:"currentFile,omitempty"`
	Percentage  float64 `json:"percentage"`
	ZipFileName string  `json:"zipFileName,omitempty"`
	Message     string  `json:"message,omitempty"`
}

type Result struct {
	ZipFileName string   `json:"zipFileName"`
	DownloadURL string   `json:"downloadUrl"`
	Size        int64    `json:"size"`
	Total       int      `json:"total"`
	Added       int      `json:"added"`
	Skipped     []string `json:"skipped"`
}

func formatsFor(format string) ([]string, error) {
	switch format {
	case "", FormatPDF:
		return []string{FormatPDF}, nil
	case FormatPNG:
		return []string{FormatPNG}, nil
	case FormatBoth:
		return []string{FormatPDF, FormatPNG}, nil
	}
	return nil, ErrInvalidFormat
}
