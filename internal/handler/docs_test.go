package handler

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every exported endpoint method carries a swag block with its route.
func TestHandlersDocumentRoutes(t *testing.T) {
	files, err := filepath.Glob("*_handler.go")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	fset := token.NewFileSet()
	endpoints := 0
	for _, name := range files {
		file, err := parser.ParseFile(fset, name, nil, parser.ParseComments)
		require.NoError(t, err)

		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || !fn.Name.IsExported() || !takesGinContext(fn) {
				continue
			}
			endpoints++

			doc := fn.Doc.Text()
			assert.Contains(t, doc, "@Summary", "%s.%s", name, fn.Name.Name)
			assert.Contains(t, doc, "@Router", "%s.%s", name, fn.Name.Name)
		}
	}
	assert.Equal(t, 16, endpoints)
}

func takesGinContext(fn *ast.FuncDecl) bool {
	params := fn.Type.Params.List
	if len(params) != 1 {
		return false
	}
	star, ok := params[0].Type.(*ast.StarExpr)
	if !ok {
		return false
	}
	sel, ok := star.X.(*ast.SelectorExpr)
	return ok && sel.Sel.Name == "Context" && identName(sel.X) == "gin"
}

func identName(expr ast.Expr) string {
	if ident, ok := expr.(*ast.Ident); ok {
		return ident.Name
	}
	return ""
}
