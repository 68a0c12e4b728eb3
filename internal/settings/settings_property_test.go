package settings

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// ParseExtensions always yields lower-case, dot-prefixed entries
func TestProperty_ParseExtensionsNormalized(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("normalized_extensions", prop.ForAll(
		func(parts []string) bool {
			for _, ext := range ParseExtensions(strings.Join(parts, ",")) {
				if !strings.HasPrefix(ext, ".") || ext != strings.ToLower(ext) || len(ext) < 2 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
