// Package docs holds the OpenAPI document served under /swagger.
// Regenerate the full document with `swag init` after changing handler annotations.
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
        "/api/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Login",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/api.LoginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Response"}},
                    "401": {"description": "bad credentials", "schema": {"$ref": "#/definitions/api.Response"}},
                    "429": {"description": "too many attempts", "schema": {"$ref": "#/definitions/api.Response"}}
                }
            }
        },
        "/api/budgets/cost-codes": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Budget"],
                "summary": "Cost-code utilization",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "description": "fiscal year, defaults to the current year", "name": "fiscal_year", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Response"}}
                }
            }
        },
        "/api/prfs/{id}/status": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "tags": ["PRF"],
                "summary": "Change PRF status",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "description": "PRF id", "name": "id", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.StatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Response"}},
                    "409": {"description": "transition not allowed or budget overrun", "schema": {"$ref": "#/definitions/api.Response"}}
                }
            }
        },
        "/api/reconciliation/report": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Reconciliation"],
                "summary": "Reconciliation report",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "description": "fiscal year, defaults to the current year", "name": "fiscal_year", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Response"}}
                }
            }
        }
    },
    "definitions": {
        "api.LoginRequest": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {
                "password": {"type": "string", "example": "admin123"},
                "username": {"type": "string", "example": "admin"}
            }
        },
        "api.Response": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "data": {},
                "message": {"type": "string"}
            }
        },
        "api.StatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "actual_amount": {"type": "string"},
                "approved_amount": {"type": "string"},
                "notes": {"type": "string"},
                "status": {"type": "string", "example": "Approved"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
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
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "PRF Monitor API",
	Description:      "Purchase request and budget monitoring: chart of accounts, budgets, PRFs and reconciliation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
