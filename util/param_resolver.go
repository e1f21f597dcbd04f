package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenPattern = regexp.MustCompile("{(.*?)}")

// ResolveTemplate replaces every {$.path} token in template with the value found at that
// jsonpath in data. Tokens that do not resolve are left as they are.
func ResolveTemplate(data map[string]any, template string) string {
	tokens := tokenPattern.FindAllString(template, -1)
	if len(tokens) == 0 {
		return template
	}
	tokenMap := make(map[string]any)
	for _, token := range tokens {
		tmatch := strings.TrimSuffix(strings.TrimPrefix(token, "{"), "}")
		if !strings.HasPrefix(tmatch, "$") {
			continue
		}
		value, err := jsonpath.JsonPathLookup(data, tmatch)
		if err != nil || value == nil {
			continue
		}
		tokenMap[token] = value
	}
	newStr := template
	for t, tv := range tokenMap {
		newStr = strings.ReplaceAll(newStr, t, fmt.Sprintf("%v", tv))
	}
	return newStr
}
