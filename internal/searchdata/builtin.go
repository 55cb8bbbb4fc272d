package searchdata

import (
	"context"
	"embed"
	"sync"

	"github.com/jcdickinson/doxsearch/internal/index"
)

// BuiltinSource names the index compiled into the binary.
const BuiltinSource = "sigmatransform"

//go:embed builtin/*.js
var builtinFS embed.FS

var builtin = sync.OnceValues(func() (*index.Table, error) {
	files, err := ReadFS(builtinFS, "builtin")
	if err != nil {
		return nil, err
	}
	return Build(context.Background(), files)
})

// Builtin returns the SigmaTransform function index shipped with the binary.
// It is parsed once; a broken literal fails every call.
func Builtin() (*index.Table, error) {
	return builtin()
}
