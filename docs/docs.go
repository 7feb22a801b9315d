// Package docs registers the ledger's OpenAPI document with swag so
// gin-swagger can serve it. swagger.json is generated from the handler
// annotations; regenerate it with go generate after changing a handler.
package docs

//go:generate swag init -d ../ -g cmd/server/main.go -o . --outputTypes json --parseInternal --overridesFile .swaggo

import (
	_ "embed"

	"github.com/swaggo/swag/v2"
)

//go:embed swagger.json
var swaggerJSON string

// SwaggerInfo serves the embedded document
var SwaggerInfo = &document{name: swag.Name}

type document struct {
	name string
}

// ReadDoc returns the OpenAPI document
func (d *document) ReadDoc() string {
	return swaggerJSON
}

// InstanceName is the swag registry name gin-swagger reads from
func (d *document) InstanceName() string {
	return d.name
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
