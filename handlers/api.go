// Package handlers wires the HTTP surface of the gateway: authentication,
// document access, the PDF viewer endpoints and annotation persistence.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmark/openmark/internal/annotations"
	"github.com/openmark/openmark/internal/authority"
	"github.com/openmark/openmark/internal/documents"
	"github.com/openmark/openmark/internal/plugin"
	"github.com/openmark/openmark/pkg/logger"
	"github.com/openmark/openmark/pkg/middleware"
)

// APIHandler holds dependencies
type APIHandler struct {
	auth     *authority.Authority
	docs     *documents.Service
	store    plugin.AnnotationStore
	registry *plugin.Registry
}

func NewAPIHandler(auth *authority.Authority, docs *documents.Service, store plugin.AnnotationStore, registry *plugin.Registry) *APIHandler {
	return &APIHandler{auth: auth, docs: docs, store: store, registry: registry}
}

// Register mounts all routes on the engine.
func (h *APIHandler) Register(r *gin.Engine) {
	api := r.Group("/api")
	api.POST("/authenticate", h.Authenticate)
	api.POST("/quickView", h.QuickView)

	protected := api.Group("", middleware.RequireAT(h.auth))
	protected.POST("/logout", h.Logout)
	protected.POST("/requestDocument", h.RequestDocument)
	protected.POST("/saveAnnotations", h.SaveAnnotations)
	protected.GET("/getAnnotations", h.GetAnnotations)
	protected.GET("/plugins", h.ListPlugins)

	// viewer endpoints authenticate with the document token, not the AT
	api.GET("/viewDocument", h.ViewDocument)
	r.GET("/pdf/:tempDocumentId", h.ServePDF)
}

type authenticateRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Authenticate verifies credentials and returns an Authentication Token.
func (h *APIHandler) Authenticate(c *gin.Context) {
	var req authenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing username or password"})
		return
	}

	token, claims, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, authority.ErrBackendUnavailable) {
			logger.Errorf("authentication backend: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "service unavailable"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"token":      token,
		"expires_at": claims.ExpiresAt,
	})
}

// Logout revokes the presented Authentication Token.
func (h *APIHandler) Logout(c *gin.Context) {
	if err := h.auth.Invalidate(c.Request.Context(), middleware.RawToken(c)); err != nil {
		if errors.Is(err, authority.ErrBackendUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "service unavailable"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type requestDocumentRequest struct {
	DocumentID          string `json:"documentId" binding:"required"`
	HideAnnotationTools bool   `json:"hideAnnotationTools"`
	HideAnnotations     bool   `json:"hideAnnotations"`
	HideLogo            bool   `json:"hideLogo"`
}

// RequestDocument grants access to one document: it mints a Document Access
// Token and materializes the PDF in the cache under the token's temp id.
func (h *APIHandler) RequestDocument(c *gin.Context) {
	var req requestDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing documentId"})
		return
	}

	exists, err := h.docs.Exists(c.Request.Context(), req.DocumentID)
	if err != nil {
		logger.Errorf("source plugin: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "service unavailable"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "document not found"})
		return
	}

	opts := authority.ViewOptions{
		HideAnnotationTools: req.HideAnnotationTools,
		HideAnnotations:     req.HideAnnotations,
		HideLogo:            req.HideLogo,
	}
	dat, claims, err := h.auth.RequestDocumentAccess(c.Request.Context(), middleware.RawToken(c), req.DocumentID, opts)
	if err != nil {
		if errors.Is(err, authority.ErrBackendUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "service unavailable"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication failed"})
		return
	}

	if err := h.docs.Materialize(c.Request.Context(), claims.TempDocumentID, req.DocumentID, claims.Subject); err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "document not found"})
			return
		}
		logger.Errorf("materializing document %q: %v", req.DocumentID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "service unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"tempDocumentId": claims.TempDocumentID,
		"documentToken":  dat,
		"expires_at":     claims.ExpiresAt,
	})
}

type quickViewRequest struct {
	Username            string `json:"username" binding:"required"`
	Password            string `json:"password" binding:"required"`
	DocumentID          string `json:"documentId" binding:"required"`
	HideAnnotationTools bool   `json:"hideAnnotationTools"`
	HideAnnotations     bool   `json:"hideAnnotations"`
	HideLogo            bool   `json:"hideLogo"`
}

// QuickView is the single-call integration path: credentials plus document
// id in, viewer URL out. Validation is identical to the two-step flow.
func (h *APIHandler) QuickView(c *gin.Context) {
	var req quickViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing username, password or documentId"})
		return
	}

	exists, err := h.docs.Exists(c.Request.Context(), req.DocumentID)
	if err != nil {
		logger.Errorf("source plugin: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "service unavailable"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "document not found"})
		return
	}

	opts := authority.ViewOptions{
		HideAnnotationTools: req.HideAnnotationTools,
		HideAnnotations:     req.HideAnnotations,
		HideLogo:            req.HideLogo,
	}
	dat, claims, err := h.auth.QuickView(c.Request.Context(), req.Username, req.Password, req.DocumentID, opts)
	if err != nil {
		if errors.Is(err, authority.ErrBackendUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "service unavailable"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid credentials"})
		return
	}

	if err := h.docs.Materialize(c.Request.Context(), claims.TempDocumentID, req.DocumentID, claims.Subject); err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "document not found"})
			return
		}
		logger.Errorf("materializing document %q: %v", req.DocumentID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "service unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"tempDocumentId": claims.TempDocumentID,
		"documentToken":  dat,
		"viewerUrl":      fmt.Sprintf("/api/viewDocument?tempDocumentId=%s&token=%s", claims.TempDocumentID, dat),
		"expires_at":     claims.ExpiresAt,
	})
}

// ViewDocument resolves a viewer session from a Document Access Token. The
// response carries everything a viewer frontend needs: the PDF URL and the
// presentation flags baked into the token.
func (h *APIHandler) ViewDocument(c *gin.Context) {
	tempID := c.Query("tempDocumentId")
	token := c.Query("token")
	if tempID == "" || token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing tempDocumentId or token"})
		return
	}

	claims, err := h.auth.ValidateDAT(c.Request.Context(), token)
	if err != nil || claims.TempDocumentID != tempID {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "access denied"})
		return
	}

	if _, err := h.docs.Open(claims.Subject, tempID); err != nil {
		h.docError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"tempDocumentId": tempID,
		"documentId":     claims.DocumentID,
		"pdfUrl":         fmt.Sprintf("/pdf/%s?token=%s", tempID, token),
		"viewOptions": gin.H{
			"hideAnnotationTools": claims.HideAnnotationTools,
			"hideAnnotations":     claims.HideAnnotations,
			"hideLogo":            claims.HideLogo,
		},
	})
}

// ServePDF streams a cached document. The temp id in the path must match
// the one inside the token; a token for one document never opens another.
func (h *APIHandler) ServePDF(c *gin.Context) {
	tempID := c.Param("tempDocumentId")

	claims, err := h.auth.ValidateDAT(c.Request.Context(), c.Query("token"))
	if err != nil || claims.TempDocumentID != tempID {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "access denied"})
		return
	}

	path, err := h.docs.Open(claims.Subject, tempID)
	if err != nil {
		h.docError(c, err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.File(path)
}

type saveAnnotationsRequest struct {
	DocumentID  string           `json:"documentId" binding:"required"`
	Annotations *annotations.Set `json:"annotations" binding:"required"`
}

// SaveAnnotations replaces the caller's annotation set for a document.
func (h *APIHandler) SaveAnnotations(c *gin.Context) {
	var req saveAnnotationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing documentId or annotations"})
		return
	}
	if err := req.Annotations.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	claims, _ := middleware.ATClaims(c)
	if err := h.store.Save(c.Request.Context(), claims.Subject, req.DocumentID, req.Annotations); err != nil {
		logger.Errorf("annotation store: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to save annotations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "annotations saved"})
}

// GetAnnotations returns the caller's annotation set for a document. A
// document without saved annotations yields an empty set.
func (h *APIHandler) GetAnnotations(c *gin.Context) {
	documentID := c.Query("documentId")
	if documentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing documentId"})
		return
	}

	claims, _ := middleware.ATClaims(c)
	set, err := h.store.Load(c.Request.Context(), claims.Subject, documentID)
	if err != nil {
		logger.Errorf("annotation store: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load annotations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "annotations": set})
}

// ListPlugins reports the registered plugin names per family. Admin only.
func (h *APIHandler) ListPlugins(c *gin.Context) {
	claims, _ := middleware.ATClaims(c)
	if claims.Role != string(plugin.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "access denied"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"plugins": gin.H{
			string(plugin.FamilyAuth):        h.registry.ListNames(plugin.FamilyAuth),
			string(plugin.FamilySource):      h.registry.ListNames(plugin.FamilySource),
			string(plugin.FamilyAnnotations): h.registry.ListNames(plugin.FamilyAnnotations),
		},
	})
}

func (h *APIHandler) docError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, documents.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "document not found"})
	case errors.Is(err, documents.ErrExpired):
		c.JSON(http.StatusGone, gin.H{"success": false, "error": "document expired"})
	case errors.Is(err, documents.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "access denied"})
	default:
		logger.Errorf("document cache: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
	}
}
