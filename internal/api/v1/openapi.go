package apiv1

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

const DocumentPath = "public/docs/v1/openapi.yml"

var pathParam = regexp.MustCompile(`\{([a-zA-Z_]+)\}`)

// LoadDocument reads and validates the OpenAPI document.
func LoadDocument(path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
}

// FiberPath converts an OpenAPI path template into fiber route syntax.
func FiberPath(p string) string {
	p = strings.ReplaceAll(p, ":", "\\:")
	return pathParam.ReplaceAllString(p, ":$1")
}

// Undocumented returns the routes missing from doc and the documented
// operations without a route, as "METHOD path" strings.
func Undocumented(doc *openapi3.T, routes []Route) (missing, extra []string) {
	documented := map[string]bool{}
	for path, item := range doc.Paths.Map() {
		for method := range item.Operations() {
			documented[strings.ToUpper(method)+" "+FiberPath(path)] = true
		}
	}
	registered := map[string]bool{}
	for _, r := range routes {
		key := r.Method + " " + r.Path
		registered[key] = true
		if !documented[key] {
			missing = append(missing, key)
		}
	}
	for key := range documented {
		if !registered[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}
