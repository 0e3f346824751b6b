//go:build js && wasm

// Command csl-wasm is the WebAssembly build of the combined shader
// preprocessor. It exposes expansion over an in-memory file tree to
// JavaScript via syscall/js.
package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/HugoDaniel/csl/pkg/api"
)

var version = "0.1.0"

func main() {
	// Export functions to JavaScript
	js.Global().Set("__csl", js.ValueOf(map[string]interface{}{
		"expand":  js.FuncOf(expandJS),
		"version": version,
	}))

	// Keep the Go runtime alive
	select {}
}

// expandJS is the JavaScript-callable expand function.
// Signature: __csl.expand(files: {[path]: string}, root: string, options?: object) => object
func expandJS(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("expand requires at least 2 arguments (files, root)")
	}

	var files map[string]string
	if err := json.Unmarshal([]byte(stringify(args[0])), &files); err != nil {
		return makeError("files must be an object mapping paths to source text")
	}
	root := args[1].String()

	opts := api.ExpandOptions{Dialect: "hlsl"}
	if len(args) > 2 && !args[2].IsUndefined() && !args[2].IsNull() {
		if err := json.Unmarshal([]byte(stringify(args[2])), &opts); err != nil {
			return makeError("invalid options: " + err.Error())
		}
	}

	result, err := api.ExpandFiles(files, root, opts)
	if err != nil {
		info := api.DescribeError(err)
		return map[string]interface{}{
			"code": "",
			"error": map[string]interface{}{
				"kind":    info.Kind,
				"code":    info.Code,
				"path":    info.Path,
				"line":    info.Line,
				"column":  info.Column,
				"message": info.Message,
			},
		}
	}

	// The result round-trips through JSON so nested slices become JS arrays.
	data, err := json.Marshal(result)
	if err != nil {
		return makeError(err.Error())
	}
	return js.Global().Get("JSON").Call("parse", string(data))
}

func stringify(v js.Value) string {
	return js.Global().Get("JSON").Call("stringify", v).String()
}

// makeError creates a result object with an error.
func makeError(msg string) interface{} {
	return map[string]interface{}{
		"code": "",
		"error": map[string]interface{}{
			"message": msg,
			"line":    0,
			"column":  0,
		},
	}
}
