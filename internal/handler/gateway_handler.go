package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-gateway/internal/domain"
	"github.com/prn-tf/alexander-gateway/internal/identity"
	"github.com/prn-tf/alexander-gateway/internal/service"
)

// Gateway is implemented by *service.GatewayService.
type Gateway interface {
	CreateBucket(ctx context.Context, input service.CreateBucketInput) (*service.CreateBucketOutput, error)
	CheckQuota(ctx context.Context, input service.CheckQuotaInput) (*service.CheckQuotaOutput, error)
	Upload(ctx context.Context, input service.UploadInput) (*service.UploadOutput, error)
	List(ctx context.Context, input service.ListInput) (*service.ListOutput, error)
}

// GatewayHandler serves the single JSON endpoint.
type GatewayHandler struct {
	gateway     Gateway
	maxBodySize int64
	logger      zerolog.Logger
}

// NewGatewayHandler creates a new GatewayHandler. A maxBodySize of zero disables the cap.
func NewGatewayHandler(gateway Gateway, maxBodySize int64, logger zerolog.Logger) *GatewayHandler {
	return &GatewayHandler{
		gateway:     gateway,
		maxBodySize: maxBodySize,
		logger:      logger.With().Str("handler", "gateway").Logger(),
	}
}

// =============================================================================
// Request/Response Bodies
// =============================================================================

type gatewayRequest struct {
	Action     string `json:"action"`
	FileData   string `json:"fileData,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	FileType   string `json:"fileType,omitempty"`
	BucketPath string `json:"bucketPath,omitempty"`
}

type createBucketResponse struct {
	Success    bool   `json:"success"`
	BucketName string `json:"bucketName"`
}

type quotaBody struct {
	UserID        string     `json:"user_id"`
	BucketName    string     `json:"bucket_name"`
	TotalQuotaMB  float64    `json:"total_quota_mb"`
	UsedStorageMB float64    `json:"used_storage_mb"`
	AvailableMB   float64    `json:"available_mb"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

type checkQuotaResponse struct {
	Success bool      `json:"success"`
	Quota   quotaBody `json:"quota"`
}

type uploadResponse struct {
	Success   bool    `json:"success"`
	URL       string  `json:"url"`
	Path      string  `json:"path"`
	FileName  string  `json:"fileName"`
	FileType  string  `json:"fileType"`
	QuotaUsed float64 `json:"quotaUsed"`
}

type listResponse struct {
	Success bool   `json:"success"`
	Files   string `json:"files"`
}

var (
	errInvalidBody   = domain.NewDomainError(domain.ErrValidation, "request body must be a JSON object", "")
	errBodyTooLarge  = domain.NewDomainError(domain.ErrValidation, "request body too large", "")
	errMissingAction = domain.NewDomainError(domain.ErrValidation, "action is required", "")
)

// =============================================================================
// Handlers
// =============================================================================

// ServeHTTP dispatches on the action field of the JSON body.
func (h *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := identity.FromContext(ctx)
	if !ok {
		h.fail(w, r, "", domain.ErrAuthentication)
		return
	}

	if h.maxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	}

	var req gatewayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, req.Action, errBodyTooLarge)
			return
		}
		h.fail(w, r, "", errInvalidBody)
		return
	}
	annotate(ctx, id.UserID.String(), req.Action)

	switch req.Action {
	case service.ActionCreateBucket:
		out, err := h.gateway.CreateBucket(ctx, service.CreateBucketInput{UserID: id.UserID})
		if err != nil {
			h.fail(w, r, req.Action, err)
			return
		}
		writeJSON(w, http.StatusOK, createBucketResponse{Success: true, BucketName: out.BucketName})

	case service.ActionCheckQuota:
		out, err := h.gateway.CheckQuota(ctx, service.CheckQuotaInput{UserID: id.UserID})
		if err != nil {
			h.fail(w, r, req.Action, err)
			return
		}
		writeJSON(w, http.StatusOK, checkQuotaResponse{Success: true, Quota: newQuotaBody(out.Quota)})

	case service.ActionUpload:
		out, err := h.gateway.Upload(ctx, service.UploadInput{
			UserID:     id.UserID,
			FileData:   req.FileData,
			FileName:   req.FileName,
			FileType:   req.FileType,
			BucketPath: req.BucketPath,
		})
		if err != nil {
			h.fail(w, r, req.Action, err)
			return
		}
		writeJSON(w, http.StatusOK, uploadResponse{
			Success:   true,
			URL:       out.URL,
			Path:      out.Path,
			FileName:  out.FileName,
			FileType:  out.FileType,
			QuotaUsed: out.QuotaUsed,
		})

	case service.ActionList:
		out, err := h.gateway.List(ctx, service.ListInput{UserID: id.UserID, BucketPath: req.BucketPath})
		if err != nil {
			h.fail(w, r, req.Action, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse{Success: true, Files: out.Files})

	case "":
		h.fail(w, r, req.Action, errMissingAction)

	default:
		h.fail(w, r, req.Action, domain.NewDomainError(domain.ErrValidation, fmt.Sprintf("unknown action %q", req.Action), ""))
	}
}

// Unauthorized is the identity.ErrorHandler for the gateway endpoint.
func (h *GatewayHandler) Unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	h.fail(w, r, "", err)
}

func (h *GatewayHandler) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	h.logger.WithLevel(logLevel(err)).
		Err(err).
		Str("action", action).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeError(w, err)
}

func newQuotaBody(q *domain.StorageQuota) quotaBody {
	body := quotaBody{
		UserID:        q.UserID.String(),
		BucketName:    q.BucketName,
		TotalQuotaMB:  q.TotalQuotaMB,
		UsedStorageMB: q.UsedStorageMB,
		AvailableMB:   q.AvailableMB(),
	}
	if !q.UpdatedAt.IsZero() {
		updated := q.UpdatedAt
		body.UpdatedAt = &updated
	}
	return body
}
