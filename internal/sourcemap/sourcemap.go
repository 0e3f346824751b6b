package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"sort"
	"strings"
)

// SourceMap represents a Source Map v3.
type SourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Mapping represents a decoded source map mapping. All positions are
// 0-indexed.
type Mapping struct {
	GenLine  int
	GenCol   int
	SrcIndex int
	SrcLine  int
	SrcCol   int
}

// Generator builds a source map for output assembled from several files.
type Generator struct {
	file          string
	includeSource bool

	sources  []string
	contents []string
	index    map[string]int
	mappings []Mapping
}

// NewGenerator creates an empty generator.
func NewGenerator() *Generator {
	return &Generator{index: make(map[string]int)}
}

// SetFile sets the generated file name.
func (g *Generator) SetFile(file string) {
	g.file = file
}

// IncludeSourceContent sets whether to embed sources in sourcesContent.
func (g *Generator) IncludeSourceContent(include bool) {
	g.includeSource = include
}

// AddSource registers a source file and returns its index. Adding a name
// twice returns the first index.
func (g *Generator) AddSource(name, content string) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	i := len(g.sources)
	g.index[name] = i
	g.sources = append(g.sources, name)
	g.contents = append(g.contents, content)
	return i
}

// AddMapping maps a generated position to a position in source src.
// Mappings must be added in generated order.
func (g *Generator) AddMapping(genLine, genCol, src, srcLine, srcCol int) {
	g.mappings = append(g.mappings, Mapping{
		GenLine:  genLine,
		GenCol:   genCol,
		SrcIndex: src,
		SrcLine:  srcLine,
		SrcCol:   srcCol,
	})
}

// Generate produces the final SourceMap.
func (g *Generator) Generate() *SourceMap {
	sm := &SourceMap{
		Version:  3,
		File:     g.file,
		Sources:  append([]string{}, g.sources...),
		Names:    []string{},
		Mappings: g.encodeMappings(),
	}
	if g.includeSource {
		sm.SourcesContent = append([]string{}, g.contents...)
	}
	return sm
}

func (g *Generator) encodeMappings() string {
	var buf []byte
	var prevGenCol, prevSrc, prevSrcLine, prevSrcCol int
	line := 0
	first := true

	for _, m := range g.mappings {
		for line < m.GenLine {
			buf = append(buf, ';')
			line++
			prevGenCol = 0
			first = true
		}
		if !first {
			buf = append(buf, ',')
		}
		first = false

		buf = appendVLQ(buf, m.GenCol-prevGenCol)
		buf = appendVLQ(buf, m.SrcIndex-prevSrc)
		buf = appendVLQ(buf, m.SrcLine-prevSrcLine)
		buf = appendVLQ(buf, m.SrcCol-prevSrcCol)
		prevGenCol, prevSrc, prevSrcLine, prevSrcCol = m.GenCol, m.SrcIndex, m.SrcLine, m.SrcCol
	}
	return string(buf)
}

// ToJSON returns the source map as a JSON string.
func (sm *SourceMap) ToJSON() string {
	data, _ := json.Marshal(sm)
	return string(data)
}

// ToDataURI returns the source map as a data URI for inline embedding.
func (sm *SourceMap) ToDataURI() string {
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString([]byte(sm.ToJSON()))
}

// ToComment returns a source map comment for appending to generated code.
// Both dialects accept line comments.
func (sm *SourceMap) ToComment(inline bool) string {
	if inline {
		return "//# sourceMappingURL=" + sm.ToDataURI()
	}
	return "//# sourceMappingURL=" + sm.File + ".map"
}

// Lookup returns the source file and 1-based line that generated the
// 1-based output line genLine.
func (sm *SourceMap) Lookup(genLine int) (source string, line int, ok bool) {
	mappings, err := DecodeMappings(sm.Mappings)
	if err != nil {
		return "", 0, false
	}
	i := sort.Search(len(mappings), func(i int) bool { return mappings[i].GenLine >= genLine-1 })
	if i == len(mappings) || mappings[i].GenLine != genLine-1 {
		return "", 0, false
	}
	m := mappings[i]
	if m.SrcIndex < 0 || m.SrcIndex >= len(sm.Sources) {
		return "", 0, false
	}
	return sm.Sources[m.SrcIndex], m.SrcLine + 1, true
}

// DecodeMappings decodes a VLQ-encoded mappings string. Segments without a
// source position are skipped.
func DecodeMappings(mappings string) ([]Mapping, error) {
	if mappings == "" {
		return nil, nil
	}

	var result []Mapping
	var srcIndex, srcLine, srcCol int
	for genLine, line := range strings.Split(mappings, ";") {
		genCol := 0
		for _, segment := range strings.Split(line, ",") {
			var values []int
			for pos := 0; pos < len(segment); {
				v, n := DecodeVLQ(segment[pos:])
				if n == 0 {
					return nil, errInvalidVLQ
				}
				values = append(values, v)
				pos += n
			}
			if len(values) == 0 {
				continue
			}
			genCol += values[0]
			if len(values) < 4 {
				continue
			}
			srcIndex += values[1]
			srcLine += values[2]
			srcCol += values[3]
			result = append(result, Mapping{
				GenLine:  genLine,
				GenCol:   genCol,
				SrcIndex: srcIndex,
				SrcLine:  srcLine,
				SrcCol:   srcCol,
			})
		}
	}
	return result, nil
}
