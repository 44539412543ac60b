package database

import (
	"github.com/tributary-io/tributary/pkg/connector/core"
	"github.com/tributary-io/tributary/pkg/connector/registry"
)

func init() {
	registry.RegisterConnector(core.SourceTypeDatabase, func(source *core.DataSource) (core.Connector, error) {
		return NewConnector(source)
	})
}
