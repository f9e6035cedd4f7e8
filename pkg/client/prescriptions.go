package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	medtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

// maxBatchRequests caps a single DigitizeBatch call client-side so an
// accidental bulk import cannot flood the server.
const maxBatchRequests = 100

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// BatchDigitizeResult is the response envelope for DigitizeBatch.  Responses
// are positional: Responses[i] belongs to the i-th request, and a failed
// request yields a degraded response rather than sinking the batch.
type BatchDigitizeResult struct {
	Responses []*medtypes.DigitizeResponse `json:"responses"`
	Count     int                          `json:"count"`
}

// ScanUploadRequest describes a prescription scan to upload.  ContentType is
// optional; the server sniffs the format when it is empty.
type ScanUploadRequest struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ScanResult is returned after a scan upload.  Digitize is populated when the
// server could extract text from the scan and run it through the
// digitization pipeline.
type ScanResult struct {
	ScanID     string                     `json:"scan_id"`
	Format     string                     `json:"format"`
	SizeBytes  int                        `json:"size_bytes"`
	OCRApplied bool                       `json:"ocr_applied"`
	Digitize   *medtypes.DigitizeResponse `json:"digitize,omitempty"`
	Warnings   []string                   `json:"warnings,omitempty"`
}

// ScanDownload holds the raw bytes of a stored prescription scan.
type ScanDownload struct {
	ScanID      string `json:"scan_id"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// ScanURLResult is the presigned (or direct) retrieval URL for a stored scan.
type ScanURLResult struct {
	ScanID string `json:"scan_id"`
	URL    string `json:"url"`
}

// ---------------------------------------------------------------------------
// PrescriptionsClient
// ---------------------------------------------------------------------------

// PrescriptionsClient provides access to prescription digitization and scan
// storage endpoints.
type PrescriptionsClient struct {
	client *Client
}

// ---------------------------------------------------------------------------
// Public methods
// ---------------------------------------------------------------------------

// Digitize extracts structured medication records from free-form
// prescription text.
// POST /api/v1/prescriptions/digitize
func (pc *PrescriptionsClient) Digitize(ctx context.Context, req *medtypes.DigitizeRequest) (*medtypes.DigitizeResponse, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, invalidArg("text is required")
	}

	var resp medtypes.DigitizeResponse
	if err := pc.client.post(ctx, "/api/v1/prescriptions/digitize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DigitizeBatch digitizes up to 100 prescriptions in one call.  Per-item
// failures are reported as degraded responses in the result, not as an error.
// POST /api/v1/prescriptions/digitize/batch
func (pc *PrescriptionsClient) DigitizeBatch(ctx context.Context, reqs []*medtypes.DigitizeRequest) (*BatchDigitizeResult, error) {
	if len(reqs) == 0 {
		return nil, invalidArg("requests list is required")
	}
	if len(reqs) > maxBatchRequests {
		return nil, invalidArg(fmt.Sprintf("requests list exceeds maximum of %d entries", maxBatchRequests))
	}
	for i, req := range reqs {
		if req == nil || strings.TrimSpace(req.Text) == "" {
			return nil, invalidArg(fmt.Sprintf("requests[%d]: text is required", i))
		}
	}

	body := struct {
		Requests []*medtypes.DigitizeRequest `json:"requests"`
	}{Requests: reqs}

	var result BatchDigitizeResult
	if err := pc.client.post(ctx, "/api/v1/prescriptions/digitize/batch", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadScan stores a prescription scan and, for text-bearing formats, runs
// it through the digitization pipeline.
// POST /api/v1/prescriptions/scans
func (pc *PrescriptionsClient) UploadScan(ctx context.Context, req *ScanUploadRequest) (*ScanResult, error) {
	if req == nil || len(req.Data) == 0 {
		return nil, invalidArg("scan data is required")
	}
	filename := req.Filename
	if filename == "" {
		filename = "scan"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="scan"; filename="%s"`, escapeQuotes(filename)))
	if req.ContentType != "" {
		header.Set("Content-Type", req.ContentType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}

	var result ScanResult
	if err := pc.client.send(ctx, http.MethodPost, "/api/v1/prescriptions/scans", buf.Bytes(), writer.FormDataContentType(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DownloadScan retrieves the raw bytes of a stored scan.
// GET /api/v1/prescriptions/scans/{scanID}
func (pc *PrescriptionsClient) DownloadScan(ctx context.Context, scanID string) (*ScanDownload, error) {
	if scanID == "" {
		return nil, invalidArg("scanID is required")
	}

	var bin binaryResult
	path := fmt.Sprintf("/api/v1/prescriptions/scans/%s", url.PathEscape(scanID))
	if err := pc.client.send(ctx, http.MethodGet, path, nil, "", &bin); err != nil {
		return nil, err
	}
	return &ScanDownload{
		ScanID:      scanID,
		ContentType: bin.contentType,
		Data:        bin.data,
	}, nil
}

// ScanURL returns a retrieval URL for a stored scan, suitable for handing to
// a browser or image viewer.
// GET /api/v1/prescriptions/scans/{scanID}/url
func (pc *PrescriptionsClient) ScanURL(ctx context.Context, scanID string) (*ScanURLResult, error) {
	if scanID == "" {
		return nil, invalidArg("scanID is required")
	}

	var result ScanURLResult
	path := fmt.Sprintf("/api/v1/prescriptions/scans/%s/url", url.PathEscape(scanID))
	if err := pc.client.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// escapeQuotes sanitizes a filename for a Content-Disposition header.
func escapeQuotes(s string) string {
	return strings.NewReplacer("\\", "\\\\", `"`, "\\\"").Replace(s)
}
