package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rohits-web03/peerlink/internal/api/middleware"
	"github.com/rohits-web03/peerlink/internal/models"
	"github.com/rohits-web03/peerlink/internal/services"
	"github.com/rohits-web03/peerlink/internal/utils"
)

// multipart parts above this size spill to temporary files
const multipartMemory = 32 << 20

type UploadResponse struct {
	ShareCode string `json:"shareCode"`
}

type DownloadResponse struct {
	RedirectURL string `json:"redirectUrl"`
}

// UploadFile godoc
// @Summary Upload a file
// @Description Uploads a single file and returns its share code. A session cookie is optional; without one the upload is a guest upload.
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Param guestId formData string false "Client-chosen guest identifier"
// @Success 200 {object} utils.Payload{data=handlers.UploadResponse}
// @Failure 400 {object} utils.Payload
// @Failure 413 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /files/upload [post]
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	if h.opts.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadSize)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.JSONResponse(w, http.StatusRequestEntityTooLarge, utils.Payload{
				Success: false,
				Message: fmt.Sprintf("File exceeds the %d MB upload limit", tooLarge.Limit>>20),
			})
			return
		}
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid file upload form",
		})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "No file provided",
		})
		return
	}
	defer file.Close()

	rec, err := h.files.Upload(r.Context(), services.UploadInput{
		Body:        file,
		Size:        header.Size,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		GuestID:     r.FormValue("guestId"),
	}, middleware.PrincipalFrom(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "File uploaded successfully",
		Data:    UploadResponse{ShareCode: rec.ShareCode},
	})
}

// DownloadFile godoc
// @Summary Get a download link
// @Description Issues a presigned URL valid for 10 minutes. Every call counts as one download.
// @Tags Files
// @Produce json
// @Param shareCode path string true "Share code"
// @Success 200 {object} utils.Payload{data=handlers.DownloadResponse}
// @Failure 404 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /files/download/{shareCode} [get]
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	url, err := h.files.DownloadURL(r.Context(), r.PathValue("shareCode"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Download link generated",
		Data:    DownloadResponse{RedirectURL: url},
	})
}

// FileInfo godoc
// @Summary Get file metadata
// @Description Returns public metadata for a share code without counting a download.
// @Tags Files
// @Produce json
// @Param shareCode path string true "Share code"
// @Success 200 {object} utils.Payload{data=models.FileRecord}
// @Failure 404 {object} utils.Payload
// @Router /files/info/{shareCode} [get]
func (h *Handler) FileInfo(w http.ResponseWriter, r *http.Request) {
	rec, err := h.files.FileInfo(r.Context(), r.PathValue("shareCode"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "File found",
		Data:    rec,
	})
}

// UserHistory godoc
// @Summary List my files
// @Description Lists the caller's uploads, newest first.
// @Tags Files
// @Produce json
// @Success 200 {object} utils.Payload{data=[]models.FileRecord}
// @Failure 401 {object} utils.Payload
// @Router /files/user/history [get]
func (h *Handler) UserHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := h.files.ListFiles(r.Context(), middleware.PrincipalFrom(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if recs == nil {
		recs = []models.FileRecord{}
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Files retrieved successfully",
		Data:    recs,
	})
}

// DeleteFile godoc
// @Summary Delete one of my files
// @Description Removes the stored object and its record. Unknown codes and codes owned by someone else get the same answer.
// @Tags Files
// @Produce json
// @Param shareCode path string true "Share code"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /files/user/delete/{shareCode} [delete]
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	err := h.files.DeleteFile(r.Context(), r.PathValue("shareCode"), middleware.PrincipalFrom(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "File deleted successfully.",
	})
}
