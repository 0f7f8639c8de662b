package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the gateway.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Header("Content-Type", "application/json")
		c.String(http.StatusOK, swaggerJSON)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>openmark — Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document describing the gateway endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "openmark", "version": "v1.0.0" },
  "paths": {
    "/api/authenticate": {
      "post": {
        "summary": "Authenticate and obtain an authentication token",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"username":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "token returned" }, "401": { "description": "invalid credentials" } }
      }
    },
    "/api/logout": {
      "post": { "summary": "Revoke the presented authentication token", "responses": { "200": { "description": "logged out" }, "401": { "description": "authentication failed" } } }
    },
    "/api/requestDocument": {
      "post": {
        "summary": "Request viewing access to a document",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"documentId":{"type":"string"},"hideAnnotationTools":{"type":"boolean"},"hideAnnotations":{"type":"boolean"},"hideLogo":{"type":"boolean"}}}}}},
        "responses": { "200": { "description": "document token returned" }, "404": { "description": "document not found" } }
      }
    },
    "/api/quickView": {
      "post": { "summary": "Authenticate and request a document in one call", "responses": { "200": { "description": "viewer URL returned" } } }
    },
    "/api/viewDocument": {
      "get": { "summary": "Resolve a viewer session from a document token", "responses": { "200": { "description": "viewer descriptor" }, "401": { "description": "access denied" } } }
    },
    "/pdf/{tempDocumentId}": {
      "get": { "summary": "Stream a cached PDF", "responses": { "200": { "description": "PDF body" }, "410": { "description": "document expired" } } }
    },
    "/api/saveAnnotations": {
      "post": { "summary": "Replace the annotation set for a document", "responses": { "200": { "description": "saved" } } }
    },
    "/api/getAnnotations": {
      "get": { "summary": "Load the annotation set for a document", "responses": { "200": { "description": "annotation set" } } }
    },
    "/api/plugins": {
      "get": { "summary": "List registered plugins (admin)", "responses": { "200": { "description": "plugin names per family" }, "403": { "description": "access denied" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
