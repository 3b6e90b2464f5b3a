// docs/docs.go

// Package docs holds the OpenAPI description of the monitor served under
// /swagger. Keep it in step with the @Router annotations in internal/handler.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/run": {
            "get": {
                "description": "Live snapshot of the run in progress, or of the last finished one",
                "produces": ["application/json"],
                "tags": ["Runs"],
                "summary": "Current run",
                "responses": {
                    "200": {"description": "Current run retrieved", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "404": {"description": "No run started", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/runs": {
            "get": {
                "description": "Recorded runs, newest first, with filtering and pagination",
                "produces": ["application/json"],
                "tags": ["Runs"],
                "summary": "List runs",
                "parameters": [
                    {"type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "description": "Items per page", "name": "per_page", "in": "query"},
                    {"enum": ["loopback", "send", "recv", "file"], "type": "string", "description": "Filter by mode", "name": "mode", "in": "query"},
                    {"enum": ["RUNNING", "PASSED", "FAILED", "CANCELLED"], "type": "string", "description": "Filter by status", "name": "status", "in": "query"},
                    {"type": "string", "description": "Filter by device path", "name": "device", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Runs retrieved", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/runs/{run_id}": {
            "get": {
                "description": "One recorded run by ID",
                "produces": ["application/json"],
                "tags": ["Runs"],
                "summary": "Get run",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "run_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Run retrieved", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid run ID", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "404": {"description": "Run not found", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/ports": {
            "get": {
                "description": "Enumerate serial devices on the host, with USB details when available",
                "produces": ["application/json"],
                "tags": ["Ports"],
                "summary": "List serial ports",
                "parameters": [
                    {"type": "string", "default": "5s", "description": "Scan timeout", "name": "timeout", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Port scan completed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid timeout", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "500": {"description": "Scan failed", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.HealthResponse"}}
                }
            }
        },
        "/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object"}}
                }
            }
        },
        "/live": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        },
        "/ws/events": {
            "get": {
                "description": "Upgrade to a WebSocket that sends a snapshot followed by run events",
                "tags": ["Events"],
                "summary": "Event stream",
                "responses": {
                    "101": {"description": "Switching protocols"},
                    "403": {"description": "Origin not allowed"}
                }
            }
        }
    },
    "definitions": {
        "utils.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "utils.APIResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "error": {"$ref": "#/definitions/utils.APIError"},
                "message": {"type": "string"},
                "success": {"type": "boolean"},
                "timestamp": {"type": "string"}
            }
        },
        "handler.CheckResult": {
            "type": "object",
            "properties": {
                "data": {},
                "message": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "handler.HealthResponse": {
            "type": "object",
            "properties": {
                "checks": {"type": "object", "additionalProperties": {"$ref": "#/definitions/handler.CheckResult"}},
                "service": {"type": "string"},
                "status": {"type": "string"},
                "timestamp": {"type": "string"},
                "uptime": {"type": "string"},
                "version": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "uart-assist monitor API",
	Description:      "Read-only view of a running UART diagnostic session and its run history",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
