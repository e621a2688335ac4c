package main

import (
	"go/build"
	"path/filepath"
	"strings"
	"testing"
)

const modulePath = "github.com/ivlev/framescrub"

// The browser build cannot link MuPDF, so go-fitz must never be reachable
// from the wasm command once build tags are applied for js/wasm.
func TestWasmImportGraph(t *testing.T) {
	ctx := build.Default
	ctx.GOOS = "js"
	ctx.GOARCH = "wasm"
	ctx.CgoEnabled = false

	root := filepath.Join("..", "..")
	seen := map[string]bool{}
	queue := []string{modulePath + "/cmd/framescrub-wasm"}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		if seen[path] {
			continue
		}
		seen[path] = true

		dir := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(path, modulePath)))
		pkg, err := ctx.ImportDir(dir, 0)
		if err != nil {
			t.Fatalf("Failed to load %s for js/wasm: %v", path, err)
		}
		for _, imp := range pkg.Imports {
			if strings.HasPrefix(imp, "github.com/gen2brain/go-fitz") {
				t.Errorf("%s imports %s under js/wasm", path, imp)
			}
			if strings.HasPrefix(imp, modulePath+"/") {
				queue = append(queue, imp)
			}
		}
	}

	for _, want := range []string{"/internal/host/dom", "/internal/render", "/internal/source"} {
		if !seen[modulePath+want] {
			t.Errorf("Expected %s in the js/wasm graph", want)
		}
	}
	if seen[modulePath+"/internal/sequence"] {
		t.Error("internal/sequence must stay out of the js/wasm graph")
	}
}
