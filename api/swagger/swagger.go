package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "E-Projects Platform API",
        "description": "Tiered access platform: tools, courses, promo codes, support chat",
        "version": "0.1.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Registration, login, and session lifecycle"},
        {"name": "Tools", "description": "Tier-gated tool catalog"},
        {"name": "Promos", "description": "Promo code redemption and administration"},
        {"name": "Courses", "description": "Courses, lessons, materials, purchases"},
        {"name": "Notifications", "description": "Targeted announcements"},
        {"name": "Chat", "description": "Support chat threads"},
        {"name": "Plans", "description": "Upgrade price list"},
        {"name": "Users", "description": "Account administration"},
        {"name": "Reports", "description": "Asynchronous exports"}
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
                    "200": {"description": "Ready"}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register account",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Email or CPF already registered"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Log in",
                "description": "Issues a token and supersedes any previous session for the account",
                "responses": {
                    "200": {"description": "Token and user info"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/session": {
            "get": {
                "tags": ["Auth"],
                "summary": "Session probe",
                "description": "Returns 401 with sessionExpired=true once another login supersedes this session",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Session still active"},
                    "401": {"description": "Session expired or invalid"}
                }
            }
        },
        "/tools": {
            "get": {
                "tags": ["Tools"],
                "summary": "List tools",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Catalog with per-caller lock state"}
                }
            }
        },
        "/promos/redeem": {
            "post": {
                "tags": ["Promos"],
                "summary": "Redeem promo code",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Code applied"},
                    "404": {"description": "Unknown code"},
                    "409": {"description": "Already redeemed or exhausted"},
                    "410": {"description": "Inactive or expired"}
                }
            }
        },
        "/courses/{id}/content": {
            "get": {
                "tags": ["Courses"],
                "summary": "Course lessons and materials",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Content"},
                    "403": {"description": "No valid purchase"}
                }
            }
        },
        "/ws": {
            "get": {
                "summary": "WebSocket upgrade",
                "description": "Push channel for session supersession and chat events; pass token as query parameter",
                "responses": {
                    "101": {"description": "Switching protocols"},
                    "401": {"description": "Invalid or expired session"}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
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
