package js_module

import (
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
)

// LoadTypeScript strips types with esbuild and evaluates the result as CommonJS.
func LoadTypeScript(r *Require, m *Module, filename string) error {
	src, err := r.ReadFile(filename)
	if err != nil {
		return err
	}
	code, err := TransformTypeScript(filename, string(src))
	if err != nil {
		return err
	}
	return r.RunSource(m, filename, code)
}

func TransformTypeScript(filename, src string) (string, error) {
	result := api.Transform(src, api.TransformOptions{
		Loader:     api.LoaderTS,
		Format:     api.FormatCommonJS,
		Target:     api.ES2015,
		Sourcefile: filename,
	})
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		if msg.Location != nil {
			return "", fmt.Errorf("transform %s:%d:%d: %s", filename, msg.Location.Line, msg.Location.Column, msg.Text)
		}
		return "", fmt.Errorf("transform %s: %s", filename, msg.Text)
	}
	return string(result.Code), nil
}
