package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/reelproof/reelproof/internal/common"
	"github.com/reelproof/reelproof/internal/server/models"
	"github.com/reelproof/reelproof/internal/server/services"
)

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	users   *services.UserService
	records *services.RecordService
}

func NewHandler(users *services.UserService, records *services.RecordService) *Handler {
	return &Handler{users: users, records: records}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type createRecordRequest struct {
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
	Category string `json:"category"`
}

type recordResponse struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	UploadURL string `json:"upload_url"`
	Offset    int64  `json:"offset"`
}

type downloadResponse struct {
	URL string `json:"url"`
}

func errorBody(msg string) map[string]string {
	return map[string]string{"message": msg}
}

func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleRegister(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil || req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, errorBody("username and password are required"))
	}
	if _, err := h.users.Register(c.Request().Context(), req.Username, req.Password); err != nil {
		return h.serviceError(c, err)
	}
	return c.NoContent(http.StatusCreated)
}

func (h *Handler) HandleLogin(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil || req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, errorBody("username and password are required"))
	}
	pair, err := h.users.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, tokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *Handler) HandleRefresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, errorBody("refresh_token is required"))
	}
	pair, err := h.users.RefreshToken(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, tokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *Handler) HandleCreateRecord(c echo.Context) error {
	var req createRecordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if req.FileName == "" || req.FileSize <= 0 {
		return c.JSON(http.StatusBadRequest, errorBody("file_name and a positive file_size are required"))
	}

	rec, err := h.records.Create(c.Request().Context(), userID(c), services.RecordMeta{
		FileName: req.FileName,
		FileSize: req.FileSize,
		MimeType: req.MimeType,
		Category: req.Category,
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, recordToResponse(rec))
}

func (h *Handler) HandleGetRecord(c echo.Context) error {
	rec, err := h.records.Get(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, recordToResponse(rec))
}

func (h *Handler) HandleDeleteRecord(c echo.Context) error {
	if err := h.records.Delete(c.Request().Context(), userID(c), c.Param("id")); err != nil {
		return h.serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleDownloadURL(c echo.Context) error {
	url, err := h.records.DownloadURL(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, downloadResponse{URL: url})
}

// HandleUploadOffset answers HEAD with the committed byte offset, letting a
// client re-synchronize an interrupted upload.
func (h *Handler) HandleUploadOffset(c echo.Context) error {
	offset, err := h.records.Offset(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return h.serviceError(c, err)
	}
	c.Response().Header().Set(common.UploadOffsetHeaderName, strconv.FormatInt(offset, 10))
	return c.NoContent(http.StatusOK)
}

// HandleUploadChunk appends one chunk at the offset declared in the
// Upload-Offset header and answers with the new committed offset.
func (h *Handler) HandleUploadChunk(c echo.Context) error {
	offset, err := strconv.ParseInt(c.Request().Header.Get(common.UploadOffsetHeaderName), 10, 64)
	if err != nil || offset < 0 {
		return c.JSON(http.StatusBadRequest, errorBody("missing or invalid Upload-Offset header"))
	}

	committed, err := h.records.AppendChunk(c.Request().Context(), userID(c), c.Param("id"), offset, c.Request().Body)
	if err != nil {
		if errors.Is(err, common.ErrOffsetMismatch) {
			c.Response().Header().Set(common.UploadOffsetHeaderName, strconv.FormatInt(committed, 10))
			return c.JSON(http.StatusConflict, errorBody(err.Error()))
		}
		return h.serviceError(c, err)
	}

	c.Response().Header().Set(common.UploadOffsetHeaderName, strconv.FormatInt(committed, 10))
	return c.NoContent(http.StatusNoContent)
}

func recordToResponse(rec *models.MediaRecord) recordResponse {
	return recordResponse{
		ID:        rec.ID,
		State:     rec.State,
		UploadURL: "/api/uploads/" + rec.ID,
		Offset:    rec.Offset,
	}
}

// serviceError maps service-level sentinels to HTTP statuses.
func (h *Handler) serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return c.JSON(http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrRefreshTokenExpired):
		return c.JSON(http.StatusUnauthorized, errorBody("unauthorized"))
	case errors.Is(err, common.ErrRecordGone):
		return c.JSON(http.StatusGone, errorBody(err.Error()))
	case errors.Is(err, common.ErrRecordNotPending):
		return c.JSON(http.StatusConflict, errorBody(err.Error()))
	default:
		return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
	}
}
