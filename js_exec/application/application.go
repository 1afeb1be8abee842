// Package application exposes host metadata to scripts as the application and system globals.
package application

import (
	"os"
	"runtime"
	"strings"

	"github.com/dop251/goja"
	"github.com/fatih/structs"
	"golang.org/x/text/language"

	"jsbridge/js_exec"
)

// Info describes the host application.
type Info struct {
	Version            string   `structs:"version"`
	Build              string   `structs:"build"`
	Identifier         string   `structs:"identifier"`
	Locale             string   `structs:"locale"`
	PreferredLanguages []string `structs:"preferredLanguages"`
}

// System describes the machine the host runs on.
type System struct {
	Version string `structs:"version"`
	Name    string `structs:"name"`
	Model   string `structs:"model"`
}

func CurrentSystem() System {
	return System{
		Version: runtime.Version(),
		Name:    runtime.GOOS,
		Model:   runtime.GOARCH,
	}
}

// NormalizeLocale turns POSIX style locales such as "en_US.UTF-8" into BCP 47 tags.
// Unparseable input yields "und".
func NormalizeLocale(s string) string {
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "_", "-")
	if s == "" || s == "C" || s == "POSIX" {
		return language.Und.String()
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und.String()
	}
	return tag.String()
}

// PreferredLanguages reads LANGUAGE, LC_ALL and LANG in that order, dropping duplicates.
func PreferredLanguages() []string {
	var raw []string
	raw = append(raw, strings.Split(os.Getenv("LANGUAGE"), ":")...)
	raw = append(raw, os.Getenv("LC_ALL"), os.Getenv("LANG"))

	seen := map[string]bool{}
	var out []string
	for _, r := range raw {
		tag := NormalizeLocale(r)
		if tag == language.Und.String() || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// Fill completes locale data missing from info using the environment.
func (info Info) Fill() Info {
	if info.Locale == "" {
		if langs := PreferredLanguages(); len(langs) > 0 {
			info.Locale = langs[0]
		} else {
			info.Locale = language.AmericanEnglish.String()
		}
	} else {
		info.Locale = NormalizeLocale(info.Locale)
	}
	if len(info.PreferredLanguages) == 0 {
		info.PreferredLanguages = PreferredLanguages()
		if len(info.PreferredLanguages) == 0 {
			info.PreferredLanguages = []string{info.Locale}
		}
	}
	return info
}

func toObject(vm *goja.Runtime, s interface{}) *goja.Object {
	obj := vm.NewObject()
	for k, v := range structs.Map(s) {
		if list, ok := v.([]string); ok {
			items := make([]interface{}, len(list))
			for i, item := range list {
				items[i] = item
			}
			_ = obj.Set(k, vm.NewArray(items...))
			continue
		}
		_ = obj.Set(k, v)
	}
	return obj
}

// Extension binds the application and system globals. application.console is the console
// builtin when one is registered.
func Extension(info Info, system System) js_exec.Extension {
	info = info.Fill()
	return js_exec.Named("application", func(c *js_exec.Context) error {
		vm := c.Runtime()
		app := toObject(vm, info)
		if console, err := c.Modules().Require("console", nil); err == nil {
			_ = app.Set("console", console)
		}
		if err := vm.Set("application", app); err != nil {
			return err
		}
		return vm.Set("system", toObject(vm, system))
	})
}
