// Package resolver implements ${path} template substitution against a
// message's JSON representation, used by the transform and log node types.
package resolver

import (
	"regexp"

	"github.com/lyzr/rulechain/engine/message"
	"github.com/tidwall/gjson"
)

var placeholder = regexp.MustCompile(`\$\{([^}]+)\}`)

// Resolve replaces every ${path} marker in tmpl with the dotted-path lookup
// of path against msg's JSON form. Required forms: ${msg.id}, ${msg.type}
// (mapped to the msg_type field), and ${msg.data.<path>}. Missing paths
// substitute the empty string. Substitution is idempotent on stringly-typed
// inputs: a result containing no further ${...} markers resolves to itself
// on a second pass.
func Resolve(tmpl string, msg message.Message) (string, error) {
	raw, err := msg.JSON()
	if err != nil {
		return "", err
	}

	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		path := placeholder.FindStringSubmatch(match)[1]
		path = rewritePath(path)
		result := gjson.GetBytes(raw, path)
		if !result.Exists() {
			return ""
		}
		return result.String()
	}), nil
}

// rewritePath maps the spec's required dotted forms onto the Message JSON
// tags: "msg.id" -> "id", "msg.type" -> "msg_type", "msg.data.foo" -> "data.foo".
func rewritePath(path string) string {
	switch {
	case path == "msg.id":
		return "id"
	case path == "msg.type":
		return "msg_type"
	case len(path) > 4 && path[:4] == "msg.":
		return path[4:]
	default:
		return path
	}
}
