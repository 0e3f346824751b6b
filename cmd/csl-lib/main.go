// Package main provides a C-callable static library for combined shader
// expansion.
//
// This is built with -buildmode=c-archive to produce libcsl.a
// that can be linked into C/C++/Zig/Rust programs.
//
// Build:
//
//	make lib
//	# or: CGO_ENABLED=1 go build -buildmode=c-archive -o build/libcsl.a ./cmd/csl-lib
//
// Exported functions:
//
//	csl_expand(root, root_len, options_json, options_len, out_code, out_code_len, out_json, out_json_len) -> error_code
//	csl_expand_files(files_json, files_len, root, root_len, options_json, options_len, out_code, out_code_len, out_json, out_json_len) -> error_code
//	csl_free(ptr) -> void
//	csl_version() -> *char
//
// Options are the JSON form of api.ExpandOptions, for example
// {"dialect": "glsl", "includeDirs": ["include"], "baseBindingIndex": 1}.
package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"encoding/json"
	"unsafe"

	"github.com/HugoDaniel/csl/pkg/api"
)

// Version should match the release version
const version = "0.1.0"

// Error codes
const (
	CSL_OK              = 0
	CSL_ERR_JSON_ENCODE = 1
	CSL_ERR_NULL_INPUT  = 2
	CSL_ERR_JSON_DECODE = 3
	CSL_ERR_EXPAND      = 4
)

var cVersion = C.CString(version)

// expandResult is the JSON written to out_json.
type expandResult struct {
	*api.ExpandResult
	Error *api.ErrorInfo `json:"error,omitempty"`
}

// csl_expand expands the combined shader file at root.
//
// Parameters:
//   - root: pointer to the root file path (UTF-8)
//   - root_len: length of root in bytes
//   - options_json: pointer to JSON options (can be NULL; dialect defaults to "hlsl")
//   - options_len: length of options JSON
//   - out_code: pointer to receive expanded code (caller must free with csl_free)
//   - out_code_len: pointer to receive code length
//   - out_json: pointer to receive JSON result with bindings, warnings and
//     stats, or the error (caller must free with csl_free; can be NULL)
//   - out_json_len: pointer to receive JSON length
//
// Returns:
//   - 0 on success
//   - CSL_ERR_EXPAND when expansion failed; out_json then holds the error
//   - another non-zero error code on failure
//
//export csl_expand
func csl_expand(
	root *C.char, root_len C.int,
	options_json *C.char, options_len C.int,
	out_code **C.char, out_code_len *C.int,
	out_json **C.char, out_json_len *C.int,
) C.int {
	if root == nil || out_code == nil || out_code_len == nil {
		return CSL_ERR_NULL_INPUT
	}

	opts, ok := parseOptions(options_json, options_len)
	if !ok {
		return CSL_ERR_JSON_DECODE
	}

	result, err := api.Expand(C.GoStringN(root, root_len), opts)
	return finish(result, err, out_code, out_code_len, out_json, out_json_len)
}

// csl_expand_files expands root from an in-memory file tree.
//
// Parameters:
//   - files_json: pointer to a JSON object mapping slash-separated paths to file contents
//   - files_len: length of files_json
//   - root, options_json and the outputs are as for csl_expand
//
//export csl_expand_files
func csl_expand_files(
	files_json *C.char, files_len C.int,
	root *C.char, root_len C.int,
	options_json *C.char, options_len C.int,
	out_code **C.char, out_code_len *C.int,
	out_json **C.char, out_json_len *C.int,
) C.int {
	if files_json == nil || root == nil || out_code == nil || out_code_len == nil {
		return CSL_ERR_NULL_INPUT
	}

	var files map[string]string
	if err := json.Unmarshal([]byte(C.GoStringN(files_json, files_len)), &files); err != nil {
		return CSL_ERR_JSON_DECODE
	}
	opts, ok := parseOptions(options_json, options_len)
	if !ok {
		return CSL_ERR_JSON_DECODE
	}

	result, err := api.ExpandFiles(files, C.GoStringN(root, root_len), opts)
	return finish(result, err, out_code, out_code_len, out_json, out_json_len)
}

// parseOptions decodes JSON options, defaulting the dialect to HLSL.
func parseOptions(options_json *C.char, options_len C.int) (api.ExpandOptions, bool) {
	opts := api.ExpandOptions{Dialect: "hlsl"}
	if options_json != nil && options_len > 0 {
		if err := json.Unmarshal([]byte(C.GoStringN(options_json, options_len)), &opts); err != nil {
			return opts, false
		}
	}
	return opts, true
}

// finish fills the output parameters.
func finish(
	result api.ExpandResult, expandErr error,
	out_code **C.char, out_code_len *C.int,
	out_json **C.char, out_json_len *C.int,
) C.int {
	*out_code = C.CString(result.Code)
	*out_code_len = C.int(len(result.Code))

	if out_json != nil && out_json_len != nil {
		jsonResult := expandResult{Error: api.DescribeError(expandErr)}
		if expandErr == nil {
			jsonResult.ExpandResult = &result
		}
		jsonBytes, err := json.Marshal(jsonResult)
		if err != nil {
			return CSL_ERR_JSON_ENCODE
		}
		*out_json = C.CString(string(jsonBytes))
		*out_json_len = C.int(len(jsonBytes))
	}

	if expandErr != nil {
		return CSL_ERR_EXPAND
	}
	return CSL_OK
}

// csl_free frees memory allocated by csl functions.
//
// Parameters:
//   - ptr: pointer returned in out_code or out_json
//
//export csl_free
func csl_free(ptr *C.char) {
	if ptr != nil {
		C.free(unsafe.Pointer(ptr))
	}
}

// csl_version returns the library version string.
// The returned pointer is static and must NOT be freed.
//
//export csl_version
func csl_version() *C.char {
	return cVersion
}

// Required for c-archive build mode
func main() {}
