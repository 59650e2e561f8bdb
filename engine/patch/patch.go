// Package patch applies RFC 6902 JSON Patch documents to a loaded chain for
// hot reconfiguration, pre-checking the raw operations the way the
// teacher's node-addition validator checks agent-node patches before the
// document ever reaches the patch library.
package patch

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/lyzr/rulechain/engine/chain"
	"github.com/lyzr/rulechain/engine/ruleerr"
)

// maxNodesAdded bounds how many /nodes/- additions a single patch may carry,
// mirroring the teacher's per-patch agent-node cap.
const maxNodesAdded = 20

// Apply decodes patchDoc as an RFC 6902 document, pre-validates its raw
// operations, and applies it to a JSON-marshaled copy of c. The caller is
// responsible for re-validating the result before swapping it into the
// store; Apply never mutates c in place.
func Apply(c chain.Chain, patchDoc []byte) (chain.Chain, error) {
	var ops []map[string]interface{}
	if err := json.Unmarshal(patchDoc, &ops); err != nil {
		return chain.Chain{}, ruleerr.Wrap(ruleerr.KindConfigError, err, "malformed JSON Patch document")
	}
	if err := validateOperations(ops); err != nil {
		return chain.Chain{}, err
	}

	decoded, err := jsonpatch.DecodePatch(patchDoc)
	if err != nil {
		return chain.Chain{}, ruleerr.Wrap(ruleerr.KindConfigError, err, "invalid JSON Patch document")
	}

	// A nil slice marshals as null, which a "/nodes/-" or "/connections/-"
	// add cannot append to; present absent lists as empty arrays instead.
	if c.Nodes == nil {
		c.Nodes = []chain.Node{}
	}
	if c.Connections == nil {
		c.Connections = []chain.Connection{}
	}

	original, err := json.Marshal(c)
	if err != nil {
		return chain.Chain{}, ruleerr.Wrap(ruleerr.KindConfigError, err, "failed to marshal chain for patching")
	}

	patched, err := decoded.Apply(original)
	if err != nil {
		return chain.Chain{}, ruleerr.Wrap(ruleerr.KindConfigError, err, "failed to apply patch")
	}

	var result chain.Chain
	if err := json.Unmarshal(patched, &result); err != nil {
		return chain.Chain{}, ruleerr.Wrap(ruleerr.KindConfigError, err, "patched chain is not a valid chain document")
	}
	return result, nil
}

// validateOperations checks structural shape before the patch is ever
// decoded by the json-patch library, so malformed operations fail with a
// domain-specific message rather than a library-internal one.
func validateOperations(ops []map[string]interface{}) error {
	nodesAdded := 0

	for i, op := range ops {
		opType, ok := op["op"].(string)
		if !ok {
			return ruleerr.New(ruleerr.KindConfigError, "patch operation %d: missing or invalid 'op' field", i)
		}
		path, ok := op["path"].(string)
		if !ok {
			return ruleerr.New(ruleerr.KindConfigError, "patch operation %d: missing or invalid 'path' field", i)
		}

		switch opType {
		case "add", "replace":
			if _, ok := op["value"]; !ok {
				return ruleerr.New(ruleerr.KindConfigError, "patch operation %d: 'value' required for %s", i, opType)
			}
			if path == "/nodes/-" {
				if err := validateNodeValue(op["value"], i); err != nil {
					return err
				}
				nodesAdded++
			}
		case "remove", "move", "copy", "test":
			// no further structural checks beyond op/path presence
		default:
			return ruleerr.New(ruleerr.KindConfigError, "patch operation %d: unsupported op %q", i, opType)
		}
	}

	if nodesAdded > maxNodesAdded {
		return ruleerr.New(ruleerr.KindConfigError, "patch adds %d nodes, exceeding the %d-per-patch limit", nodesAdded, maxNodesAdded)
	}
	return nil
}

func validateNodeValue(value interface{}, opIndex int) error {
	node, ok := value.(map[string]interface{})
	if !ok {
		return ruleerr.New(ruleerr.KindConfigError, "patch operation %d: node value must be an object, got %T", opIndex, value)
	}
	if _, ok := node["id"].(string); !ok {
		return ruleerr.New(ruleerr.KindConfigError, "patch operation %d: node must have a string 'id'", opIndex)
	}
	if _, ok := node["type_name"].(string); !ok {
		return ruleerr.New(ruleerr.KindConfigError, "patch operation %d: node must have a string 'type_name'", opIndex)
	}
	if cfg, exists := node["config"]; exists {
		if _, ok := cfg.(map[string]interface{}); !ok {
			return ruleerr.New(ruleerr.KindConfigError, "patch operation %d: node 'config' must be an object, got %T", opIndex, cfg)
		}
	}
	return nil
}
