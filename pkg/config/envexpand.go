package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv expands {{.VAR_NAME}} references in YAML content from the
// process environment. Shell-style $VAR and ${VAR} are left untouched so
// log query patterns and regexes survive.
//
// Missing variables expand to the empty string; validation catches required
// fields left empty. Content that is not a valid template is returned as is.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok && key != "" {
			env[key] = value
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return data
	}
	return buf.Bytes()
}
