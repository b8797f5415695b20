// Package docs registers the OpenAPI description of the ivor-core API with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "BLKOUT tech collective"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/coordination/metrics": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Event processing metrics over the trailing 24 hours",
                "produces": ["application/json"],
                "tags": ["Coordination"],
                "summary": "Coordination metrics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.CoordinationMetrics"}},
                    "403": {"description": "Admin access required", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/events": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Stores the event as pending and broadcasts it to the source, target and coordination channels",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Events"],
                "summary": "Publish a cross-domain event",
                "parameters": [
                    {"description": "Event draft", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.EventDraft"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.PublishEventResponse"}},
                    "400": {"description": "Invalid event", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "503": {"description": "Store or broker unavailable", "schema": {"$ref": "#/definitions/http.PublishEventResponse"}}
                }
            }
        },
        "/events/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Events"],
                "summary": "Get an event",
                "parameters": [
                    {"type": "string", "description": "Event ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.CrossDomainEvent"}},
                    "404": {"description": "Event not found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/intake": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Classifies, validates and routes one item to auto-publish or human review",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Intake"],
                "summary": "Ingest one content item",
                "parameters": [
                    {"description": "Raw content item", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.RawContentItem"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.IntakeOutcome"}},
                    "400": {"description": "Invalid request body", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "502": {"description": "Classification capability failed", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "503": {"description": "Downstream unavailable", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/intake/batch": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Processes items sequentially; per-item failures are counted as errors",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Intake"],
                "summary": "Ingest a batch of content items",
                "parameters": [
                    {"description": "Items", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.BatchIntakeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.BatchResult"}},
                    "400": {"description": "Invalid request body", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.BatchResult": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "published": {"type": "integer"},
                "pending_review": {"type": "integer"},
                "errors": {"type": "integer"},
                "outcomes": {"type": "array", "items": {"$ref": "#/definitions/domain.IntakeOutcome"}}
            }
        },
        "domain.CoordinationMetrics": {
            "type": "object",
            "properties": {
                "events_processed_24h": {"type": "integer"},
                "total_events_24h": {"type": "integer"},
                "average_processing_time": {"type": "number"},
                "cross_domain_efficiency": {"type": "number"},
                "community_engagement_rate": {"type": "number"},
                "liberation_impact_score": {"type": "number"},
                "computed_at": {"type": "string"}
            }
        },
        "domain.CrossDomainEvent": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "event_type": {"type": "string"},
                "source_domain": {"type": "string"},
                "target_domains": {"type": "array", "items": {"type": "string"}},
                "event_data": {"type": "object"},
                "journey_context": {"type": "object"},
                "community_impact_data": {"type": "object"},
                "processing_status": {"type": "string", "enum": ["pending", "processed", "failed"]},
                "liberation_relevance_score": {"type": "integer"},
                "cultural_sensitivity_check": {"type": "boolean"},
                "community_consent_verified": {"type": "boolean"},
                "created_at": {"type": "string"},
                "processed_at": {"type": "string"}
            }
        },
        "domain.EventDraft": {
            "type": "object",
            "required": ["event_type", "source_domain", "target_domains"],
            "properties": {
                "event_type": {"type": "string", "enum": ["PersonalAchievement", "CommunityInsight", "ProjectUpdate", "SocialShare", "ResourceRequest", "CommunityNotification"]},
                "source_domain": {"type": "string"},
                "target_domains": {"type": "array", "items": {"type": "string"}},
                "event_data": {"type": "object"},
                "journey_context": {"type": "object"},
                "community_impact_data": {"type": "object"},
                "liberation_relevance_score": {"type": "integer", "minimum": 0, "maximum": 100},
                "cultural_sensitivity_check": {"type": "boolean"},
                "community_consent_verified": {"type": "boolean"}
            }
        },
        "domain.IntakeOutcome": {
            "type": "object",
            "properties": {
                "content_id": {"type": "string"},
                "decision": {"type": "string", "enum": ["published", "review", "error"]},
                "event_id": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "domain.RawContentItem": {
            "type": "object",
            "required": ["original_url"],
            "properties": {
                "id": {"type": "string"},
                "source_id": {"type": "string"},
                "original_url": {"type": "string"},
                "title": {"type": "string", "maxLength": 500},
                "description": {"type": "string"},
                "body": {"type": "string"},
                "author": {"type": "string"},
                "published_at": {"type": "string"},
                "tags": {"type": "array", "items": {"type": "string"}},
                "image_url": {"type": "string"},
                "mime_type": {"type": "string"}
            }
        },
        "http.BatchIntakeRequest": {
            "type": "object",
            "required": ["items"],
            "properties": {
                "items": {"type": "array", "maxItems": 100, "minItems": 1, "items": {"$ref": "#/definitions/domain.RawContentItem"}}
            }
        },
        "http.ErrorResponse": {
            "description": "API error response",
            "type": "object",
            "properties": {"error": {"type": "string", "example": "invalid request body"}}
        },
        "http.PublishEventResponse": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "error": {"type": "string"}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT Bearer token. Format: \"Bearer {token}\"",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "IVOR Core API",
	Description:      "Content intake pipeline and cross-domain event coordination for the BLKOUT community platform.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
