// Package docs serves the OpenAPI document of the HTTP API.
//
// openapi.json is regenerated with:
//
//	swag init --v3.1 -g cmd/server/main.go -o docs --outputTypes json
package docs

import (
	_ "embed"

	"github.com/swaggo/swag/v2"
)

//go:embed openapi.json
var docTemplate string

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "bcsync API",
	Description:      "Business Central catalog synchronization and phone sign-in",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
