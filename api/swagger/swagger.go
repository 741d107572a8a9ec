package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Document Signing API",
        "description": "PDF field insertion, sealing and signing-completion service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Documents", "description": "Document lifecycle and distribution"},
        {"name": "Signing", "description": "Recipient signing flow"}
    ],
    "paths": {
        "/documents": {
            "post": {
                "tags": ["Documents"],
                "summary": "Create a draft document with recipients and fields",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/CreateDocumentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"}
                }
            }
        },
        "/documents/download": {
            "get": {
                "tags": ["Documents"],
                "summary": "Resolve a signed download token",
                "produces": ["application/pdf"],
                "parameters": [
                    {"in": "query", "name": "token", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "PDF bytes"},
                    "401": {"description": "Invalid token"}
                }
            }
        },
        "/documents/{id}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Document with recipients and fields",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Documents"],
                "summary": "Soft-delete a document",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "query", "name": "reason", "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Document already completed"}
                }
            }
        },
        "/documents/{id}/distribute": {
            "post": {
                "tags": ["Documents"],
                "summary": "Send the document out for signing",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Document is not a draft"}
                }
            }
        },
        "/documents/{id}/download-url": {
            "get": {
                "tags": ["Documents"],
                "summary": "Signed, expiring download link",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/{id}/certificate-token": {
            "post": {
                "tags": ["Documents"],
                "summary": "Issue a short-lived certificate render token",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/{id}/certificate": {
            "get": {
                "tags": ["Documents"],
                "summary": "Audit-certificate payload",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "query", "name": "token", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid certificate token"}
                }
            }
        },
        "/documents/{id}/reseal": {
            "post": {
                "tags": ["Documents"],
                "summary": "Re-run the sealing pipeline from the original upload",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "202": {"description": "Reseal enqueued"}
                }
            }
        },
        "/signing/{token}": {
            "get": {
                "tags": ["Signing"],
                "summary": "Signing session for a recipient token",
                "parameters": [
                    {"in": "path", "name": "token", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unknown token"}
                }
            }
        },
        "/signing/{token}/fields/{fieldId}/sign": {
            "post": {
                "tags": ["Signing"],
                "summary": "Sign one field",
                "parameters": [
                    {"in": "path", "name": "token", "type": "string", "required": true},
                    {"in": "path", "name": "fieldId", "type": "string", "required": true},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/SignFieldRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Value fails field validation"},
                    "401": {"description": "Out of turn"}
                }
            }
        },
        "/signing/{token}/fields/{fieldId}/unsign": {
            "post": {
                "tags": ["Signing"],
                "summary": "Clear a previously signed field",
                "parameters": [
                    {"in": "path", "name": "token", "type": "string", "required": true},
                    {"in": "path", "name": "fieldId", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/signing/{token}/complete": {
            "post": {
                "tags": ["Signing"],
                "summary": "End the recipient's signing turn",
                "parameters": [
                    {"in": "path", "name": "token", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Required fields unsigned"}
                }
            }
        },
        "/signing/{token}/reject": {
            "post": {
                "tags": ["Signing"],
                "summary": "Reject the document",
                "parameters": [
                    {"in": "path", "name": "token", "type": "string", "required": true},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/RejectRequest"}}
                ],
                "responses": {
                    "204": {"description": "Rejected"}
                }
            }
        }
    },
    "definitions": {
        "CreateDocumentRequest": {
            "type": "object",
            "required": ["title", "data", "ownerEmail", "recipients"],
            "properties": {
                "title": {"type": "string"},
                "data": {"type": "string", "description": "base64 PDF"},
                "signingOrder": {"type": "string", "enum": ["SEQUENTIAL", "PARALLEL"]},
                "ownerEmail": {"type": "string"},
                "ownerName": {"type": "string"},
                "meta": {"type": "object"},
                "recipients": {"type": "array", "items": {"type": "object"}},
                "fields": {"type": "array", "items": {"type": "object"}}
            }
        },
        "SignFieldRequest": {
            "type": "object",
            "properties": {
                "value": {"type": "string"},
                "imageBase64": {"type": "string"},
                "typedSignature": {"type": "string"},
                "fontName": {"type": "string"},
                "colorName": {"type": "string"}
            }
        },
        "RejectRequest": {
            "type": "object",
            "required": ["reason"],
            "properties": {
                "reason": {"type": "string"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "pageSize": {"type": "integer"},
                "total": {"type": "integer"}
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
