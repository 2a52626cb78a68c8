package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Grade Insight API",
        "description": "Analytics and AI-assisted reporting for class score data",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and token issuance"},
        {"name": "Analysis", "description": "Cohort analytics over exam scores"},
        {"name": "Reports", "description": "AI-generated class exam reports"},
        {"name": "AI", "description": "Comments, assistant chat and quota insight"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analysis/classes/{classId}/focus-groups": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Attention-worthy students of a class",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Class has no scored exams", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analysis/exams/{examId}/quality": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Per-course quality indicators for an exam",
                "parameters": [
                    {"name": "examId", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Exam not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analysis/classes/{classId}/exams/{examId}/distribution": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Grade band distribution for a class exam",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "integer"},
                    {"name": "examId", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analysis/students/{studentId}/profile": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Standardised latest-exam profile of a student",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Student not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analysis/classes/{classId}/exams/{examId}/report": {
            "post": {
                "tags": ["Reports"],
                "summary": "Generate or return the class exam report",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "integer"},
                    {"name": "examId", "in": "path", "required": true, "type": "integer"},
                    {"name": "force", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Daily AI budget exhausted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analysis/classes/{classId}/exams/{examId}/report/stream": {
            "post": {
                "tags": ["Reports"],
                "summary": "Stream a fresh class exam report",
                "produces": ["text/event-stream"],
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "integer"},
                    {"name": "examId", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "SSE stream"}
                }
            }
        },
        "/analysis/classes/{classId}/exams/{examId}/report/pdf": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download the stored class exam report as PDF",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "integer"},
                    {"name": "examId", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "PDF document"},
                    "404": {"description": "No stored report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ai/comments/students/{studentId}": {
            "post": {
                "tags": ["AI"],
                "summary": "Generate or return the term comment for a student",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "integer"},
                    {"name": "force", "in": "query", "type": "boolean"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/CommentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Daily AI budget exhausted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["AI"],
                "summary": "Most recently stored comment for a student",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No comment yet", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ai/chat/stream": {
            "post": {
                "tags": ["AI"],
                "summary": "Stream a teaching assistant chat answer",
                "produces": ["text/event-stream"],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "SSE stream"}
                }
            }
        },
        "/ai/usage": {
            "get": {
                "tags": ["AI"],
                "summary": "Today's AI request budget usage",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ai/models/quota": {
            "get": {
                "tags": ["AI"],
                "summary": "Vendor rate limit snapshots per model",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CommentRequest": {
            "type": "object",
            "properties": {
                "style": {"type": "string"}
            }
        },
        "ChatRequest": {
            "type": "object",
            "required": ["message"],
            "properties": {
                "message": {"type": "string"},
                "history": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "role": {"type": "string"},
                            "content": {"type": "string"}
                        }
                    }
                }
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
