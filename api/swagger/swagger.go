package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Ticket Report Export API",
        "description": "Exports helpdesk ticket statistics as CSV, PNG charts and paginated PDF reports.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Statistics", "description": "Ticket statistics source"},
        {"name": "Dashboard", "description": "Chart surfaces currently on screen"},
        {"name": "Exports", "description": "CSV, PNG and PDF exports"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unreachable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "Metrics exposition"}
                }
            }
        },
        "/api/statistics/full-export": {
            "get": {
                "tags": ["Statistics"],
                "summary": "Tickets visible to the caller",
                "parameters": [
                    {"name": "x-user-email", "in": "header", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/FullExportResponse"}},
                    "401": {"description": "Missing identity", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Unknown caller", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/dashboard/surfaces": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "List mounted chart surfaces",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/dashboard/surfaces/{id}": {
            "put": {
                "tags": ["Dashboard"],
                "summary": "Mount or replace a chart snapshot",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "snapshot", "in": "formData", "type": "file", "required": true},
                    {"name": "title", "in": "formData", "type": "string"},
                    {"name": "crossOrigin", "in": "formData", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "Mounted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid snapshot", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "Snapshot too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Dashboard"],
                "summary": "Unmount a chart surface",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Unmounted"},
                    "404": {"description": "Not mounted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exports/tabular": {
            "post": {
                "tags": ["Exports"],
                "summary": "Export tickets spreadsheet",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Delivered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Export in progress or alert pending", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Statistics unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exports/raster": {
            "post": {
                "tags": ["Exports"],
                "summary": "Export one chart as PNG",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RasterExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Delivered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Export in progress or alert pending", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Chart unavailable or tainted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exports/document": {
            "post": {
                "tags": ["Exports"],
                "summary": "Export the paginated PDF report",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/DocumentExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Delivered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Export in progress or alert pending", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "A chart could not be rasterized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exports/status": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export lifecycle state",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/statistics/cache/invalidate": {
            "post": {
                "tags": ["Statistics"],
                "summary": "Drop cached ticket exports",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Cache cleared"},
                    "401": {"description": "Missing identity", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Caller is not an admin", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exports/acknowledge": {
            "post": {
                "tags": ["Exports"],
                "summary": "Dismiss the caller's pending failure alert",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Export in progress", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a delivered artifact",
                "produces": ["text/csv", "image/png", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Artifact"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Artifact removed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "TicketRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "title": {"type": "string"},
                "category": {"type": "string"},
                "problem": {"type": "string"},
                "status": {"type": "string"},
                "priority": {"type": "string"},
                "requester": {"type": "string"},
                "openedAt": {"type": "string", "format": "date-time"},
                "assignee": {"type": "string"},
                "resolvedAt": {"type": "string", "format": "date-time"},
                "resolutionDays": {"type": "number"},
                "openingReason": {"type": "string"}
            }
        },
        "FullExportResponse": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/TicketRecord"}}
            }
        },
        "RasterExportRequest": {
            "type": "object",
            "required": ["surfaceId"],
            "properties": {
                "surfaceId": {"type": "string"},
                "filename": {"type": "string"}
            }
        },
        "DocumentExportRequest": {
            "type": "object",
            "properties": {
                "surfaces": {"type": "array", "items": {"type": "string"}}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
