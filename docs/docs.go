// Package docs registers the OpenAPI document served under /swagger.
// It has the layout `swag init -g cmd/server/main.go` writes; regenerate it
// after changing handler annotations.
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{.Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/invoicing/invoices": {
            "post": {
                "description": "Prices the selected products at the lead's branch tax rate, applies the discount and opens the invoice",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["invoicing"],
                "summary": "Create an invoice for a lead",
                "parameters": [
                    {"type": "string", "description": "Replay-safe request key", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Invoice request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.CreateInvoiceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/invoicing.InvoiceEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/invoicing/invoices/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["invoicing"],
                "summary": "Get an invoice",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Invoice ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/invoicing.InvoiceEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/invoicing/invoices/{id}/balance": {
            "get": {
                "produces": ["application/json"],
                "tags": ["invoicing"],
                "summary": "Get the outstanding balance of an invoice",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Invoice ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/invoicing.BalanceEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/invoicing/invoices/{id}/payments": {
            "post": {
                "description": "Accepts a payment no larger than the pending amount and issues a receipt. Overpayments are rejected with 409 OVERPAYMENT and leave the invoice unchanged.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["invoicing"],
                "summary": "Record a payment against an invoice",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Invoice ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Replay-safe request key", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Payment", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.RecordPaymentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/invoicing.ReceiptEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/invoicing/invoices/{id}/receipts": {
            "get": {
                "produces": ["application/json"],
                "tags": ["invoicing"],
                "summary": "List the receipts of an invoice in sequence order",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Invoice ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/invoicing.ReceiptListEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/invoicing/leads/{lead_id}/invoices": {
            "get": {
                "produces": ["application/json"],
                "tags": ["invoicing"],
                "summary": "List a lead's invoices",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Lead ID", "name": "lead_id", "in": "path", "required": true},
                    {"type": "string", "description": "OPEN or SETTLED", "name": "status", "in": "query"},
                    {"type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "maximum": 100, "description": "Page size", "name": "page_size", "in": "query"},
                    {"type": "string", "description": "created_at, updated_at, total, pending_amount or status", "name": "order_by", "in": "query"},
                    {"type": "string", "description": "asc or desc", "name": "order_dir", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/invoicing.InvoiceListEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/system/info": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Get system information",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/system/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Liveness and database readiness",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        }
    },
    "definitions": {
        "dto.ErrorInfo": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "OVERPAYMENT"},
                "message": {"type": "string"},
                "request_id": {"type": "string"},
                "details": {"type": "object", "additionalProperties": true},
                "fields": {"type": "array", "items": {"$ref": "#/definitions/dto.ValidationDetail"}},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        },
        "dto.ValidationDetail": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "dto.Meta": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "dto.Response": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "error": {"$ref": "#/definitions/dto.ErrorInfo"},
                "meta": {"$ref": "#/definitions/dto.Meta"}
            }
        },
        "handler.CreateInvoiceRequest": {
            "type": "object",
            "required": ["lead_id", "product_ids"],
            "properties": {
                "lead_id": {"type": "string", "format": "uuid"},
                "product_ids": {"type": "array", "minItems": 1, "items": {"type": "string", "format": "uuid"}},
                "discount": {"type": "string", "example": "50.00"}
            }
        },
        "handler.RecordPaymentRequest": {
            "type": "object",
            "required": ["amount"],
            "properties": {
                "amount": {"type": "string", "example": "40.00"}
            }
        },
        "invoicing.LineItemResponse": {
            "type": "object",
            "properties": {
                "line_no": {"type": "integer"},
                "product_id": {"type": "string", "format": "uuid"},
                "unit_price": {"type": "string"}
            }
        },
        "invoicing.InvoiceResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "format": "uuid"},
                "lead_id": {"type": "string", "format": "uuid"},
                "branch_id": {"type": "string", "format": "uuid"},
                "currency": {"type": "string"},
                "line_items": {"type": "array", "items": {"$ref": "#/definitions/invoicing.LineItemResponse"}},
                "subtotal": {"type": "string"},
                "discount": {"type": "string"},
                "taxable_base": {"type": "string"},
                "tax_percent": {"type": "string"},
                "tax_amount": {"type": "string"},
                "total": {"type": "string"},
                "pending_amount": {"type": "string"},
                "status": {"type": "string", "enum": ["OPEN", "SETTLED"]},
                "receipt_count": {"type": "integer"},
                "version": {"type": "integer"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"},
                "settled_at": {"type": "string", "format": "date-time"}
            }
        },
        "invoicing.ReceiptResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "format": "uuid"},
                "invoice_id": {"type": "string", "format": "uuid"},
                "sequence": {"type": "integer"},
                "amount_paid": {"type": "string"},
                "currency": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "pending_amount": {"type": "string"},
                "invoice_status": {"type": "string"}
            }
        },
        "invoicing.BalanceResponse": {
            "type": "object",
            "properties": {
                "invoice_id": {"type": "string", "format": "uuid"},
                "currency": {"type": "string"},
                "total": {"type": "string"},
                "paid_amount": {"type": "string"},
                "pending_amount": {"type": "string"},
                "status": {"type": "string"},
                "receipt_count": {"type": "integer"}
            }
        },
        "invoicing.InvoiceEnvelope": {
            "allOf": [{"$ref": "#/definitions/dto.Response"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/invoicing.InvoiceResponse"}}}]
        },
        "invoicing.InvoiceListEnvelope": {
            "allOf": [{"$ref": "#/definitions/dto.Response"}, {"type": "object", "properties": {"data": {"type": "array", "items": {"$ref": "#/definitions/invoicing.InvoiceResponse"}}}}]
        },
        "invoicing.ReceiptEnvelope": {
            "allOf": [{"$ref": "#/definitions/dto.Response"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/invoicing.ReceiptResponse"}}}]
        },
        "invoicing.ReceiptListEnvelope": {
            "allOf": [{"$ref": "#/definitions/dto.Response"}, {"type": "object", "properties": {"data": {"type": "array", "items": {"$ref": "#/definitions/invoicing.ReceiptResponse"}}}}]
        },
        "invoicing.BalanceEnvelope": {
            "allOf": [{"$ref": "#/definitions/dto.Response"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/invoicing.BalanceResponse"}}}]
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Billing Service API",
	Description:      "Invoice generation and payment reconciliation for CRM leads.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
