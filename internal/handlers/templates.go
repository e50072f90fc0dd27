package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeeper/internal/services"
	"github.com/charlesng35/gatekeeper/pkg/response"
)

// TemplateHandler manages permission templates.
type TemplateHandler struct {
	svc *services.TemplateService
}

// NewTemplateHandler constructs a TemplateHandler.
func NewTemplateHandler(svc *services.TemplateService) *TemplateHandler {
	return &TemplateHandler{svc: svc}
}

// GET /api/templates
func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.svc.ListTemplates(requestContext(c), services.TemplateListOptions{
		IncludeInactive: parseBoolQuery(c, "include_inactive"),
		TemplateType:    strings.TrimSpace(c.Query("template_type")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, templates)
}

// GET /api/templates/:id
func (h *TemplateHandler) Get(c *gin.Context) {
	view, err := h.svc.GetTemplate(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// POST /api/templates
func (h *TemplateHandler) Create(c *gin.Context) {
	var body services.CreateTemplateInput
	if !bindAndValidate(c, &body) {
		return
	}

	view, err := h.svc.CreateTemplate(requestContext(c), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, view)
}

// PATCH /api/templates/:id
func (h *TemplateHandler) SetActive(c *gin.Context) {
	var body struct {
		IsActive *bool `json:"is_active" validate:"required"`
	}
	if !bindAndValidate(c, &body) {
		return
	}

	view, err := h.svc.SetTemplateActive(requestContext(c), c.Param("id"), *body.IsActive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// DELETE /api/templates/:id
func (h *TemplateHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteTemplate(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/templates/:id/export
func (h *TemplateHandler) Export(c *gin.Context) {
	doc, err := h.svc.ExportTemplate(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, doc)
}

// POST /api/templates/import?update=true
func (h *TemplateHandler) Import(c *gin.Context) {
	var body services.TemplateDocument
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.svc.ImportTemplate(requestContext(c), body, parseBoolQuery(c, "update"))
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.Success(c, status, result)
}

// POST /api/templates/:id/apply
func (h *TemplateHandler) Apply(c *gin.Context) {
	var body services.ApplyTarget
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.svc.ApplyTemplate(requestContext(c), c.Param("id"), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// POST /api/templates/:id/roles
func (h *TemplateHandler) CreateRole(c *gin.Context) {
	var body services.CreateRoleInput
	if !bindAndValidate(c, &body) {
		return
	}

	role, err := h.svc.CreateRoleFromTemplate(requestContext(c), c.Param("id"), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, role)
}

// POST /api/templates/:id/clone
func (h *TemplateHandler) Clone(c *gin.Context) {
	var body struct {
		Name string `json:"name" validate:"required,max=120"`
	}
	if !bindAndValidate(c, &body) {
		return
	}

	view, err := h.svc.CloneTemplate(requestContext(c), c.Param("id"), body.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, view)
}

// POST /api/roles/:id/template
func (h *TemplateHandler) ExportRole(c *gin.Context) {
	var body services.ExportRoleInput
	if !bindAndValidate(c, &body) {
		return
	}

	view, err := h.svc.ExportRoleAsTemplate(requestContext(c), c.Param("id"), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, view)
}
