// Package docs содержит OpenAPI описание шлюза для /swagger
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/encode_face": {
            "post": {
                "description": "Strips the data URI prefix from the image and relays the recognition service response unchanged.",
                "consumes": ["application/json"],
                "produces": ["application/json", "text/plain"],
                "tags": ["search"],
                "summary": "Find similar faces",
                "parameters": [
                    {
                        "description": "Image as data URI or bare base64",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.EncodeFaceRequest"}
                    },
                    {"type": "integer", "description": "Number of results (1-20)", "name": "num_rows", "in": "query"},
                    {"type": "number", "description": "Distance tolerance (0-0.8)", "name": "tolerance_var", "in": "query"},
                    {"type": "integer", "description": "Minimum age", "name": "min_age", "in": "query"},
                    {"type": "integer", "description": "Maximum age", "name": "max_age", "in": "query"}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/models.SearchResult"}}
                    },
                    "400": {"description": "Missing image in request body", "schema": {"type": "string"}},
                    "405": {"description": "Method Not Allowed", "schema": {"type": "string"}},
                    "500": {"description": "Failed to encode a face", "schema": {"type": "string"}}
                }
            }
        },
        "/api/searches": {
            "get": {
                "description": "Latest audited gateway requests, newest first. The image itself is never stored.",
                "produces": ["application/json"],
                "tags": ["audit"],
                "summary": "Recent searches",
                "parameters": [
                    {"type": "integer", "default": 20, "description": "Number of records (1-100)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/models.SearchRecord"}}
                    },
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/api/stats": {
            "get": {
                "description": "Aggregate counters over audited searches. Cached for 5 minutes when Redis is enabled.",
                "produces": ["application/json"],
                "tags": ["audit"],
                "summary": "Gateway statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Stats"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        }
    },
    "definitions": {
        "models.EncodeFaceRequest": {
            "type": "object",
            "properties": {
                "image": {"type": "string"}
            }
        },
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "models.SearchRecord": {
            "type": "object",
            "properties": {
                "cache_hit": {"type": "boolean"},
                "created_at": {"type": "string"},
                "id": {"type": "string"},
                "image_sha256": {"type": "string"},
                "latency_ms": {"type": "integer"},
                "max_age": {"type": "string"},
                "min_age": {"type": "string"},
                "num_rows": {"type": "string"},
                "result_count": {"type": "integer"},
                "status_code": {"type": "integer"},
                "tolerance_var": {"type": "string"}
            }
        },
        "models.SearchResult": {
            "type": "object",
            "properties": {
                "distance": {"type": "number"},
                "id": {"type": "integer"},
                "image_base64": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "models.Stats": {
            "type": "object",
            "properties": {
                "avg_latency_ms": {"type": "number"},
                "cache_hits": {"type": "integer"},
                "failed_searches": {"type": "integer"},
                "total_searches": {"type": "integer"}
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
	Title:            "Face Search Gateway API",
	Description:      "Proxy between the face search UI and the recognition service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
