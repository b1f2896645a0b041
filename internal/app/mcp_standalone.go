package app

import (
	mcpserver "sitebuilder/internal/mcp"
)

// ServeMCP runs the MCP server on stdin/stdout until the client disconnects.
func (a *App) ServeMCP(version string) error {
	srv := mcpserver.New(mcpserver.Deps{
		Sites:       a.Sites,
		Blocks:      a.Blocks,
		Editor:      a.Editor,
		DataSources: a.DataSources,
		Publish:     a.Publish,
		Resolver:    a.Resolver,
		Version:     version,
	})
	return srv.ServeStdio()
}
