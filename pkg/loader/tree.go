package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/topictree/pkg/metrics"
	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/nodekey"
)

// ErrInvalidTreeConfig wraps every validation failure of an authored tree.
var ErrInvalidTreeConfig = errors.New("invalid tree config")

// Format is the encoding of a tree configuration file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format by extension; anything but .json is YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadTreeConfig reads and validates the tree configuration at path.
func LoadTreeConfig(path string) (*model.ConfigNode, error) {
	defer metrics.Timer(metrics.ConfigLoad)()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tree config: %w", err)
	}
	root, err := ParseTreeConfig(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return root, nil
}

// ParseTreeConfig decodes and validates a tree configuration. The document
// is either the root node (name may be omitted) or a list of root children.
// Unknown fields are rejected.
func ParseTreeConfig(data []byte, format Format) (*model.ConfigNode, error) {
	data = bytes.TrimSpace(stripBOM(data))
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidTreeConfig)
	}

	var (
		root *model.ConfigNode
		err  error
	)
	switch format {
	case FormatJSON:
		root, err = decodeJSONTree(data)
	case FormatYAML:
		root, err = decodeYAMLTree(data)
	default:
		return nil, fmt.Errorf("unsupported tree config format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTreeConfig, err)
	}

	if root.Name == "" && root.TopicName == "" {
		root.Name = nodekey.RootName
	}
	if err := ValidateTreeConfig(root); err != nil {
		return nil, err
	}
	return root, nil
}

func decodeJSONTree(data []byte) (*model.ConfigNode, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if data[0] == '[' {
		var children []*model.ConfigNode
		if err := dec.Decode(&children); err != nil {
			return nil, err
		}
		return &model.ConfigNode{Name: nodekey.RootName, Children: children}, nil
	}
	var root model.ConfigNode
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	return &root, nil
}

func decodeYAMLTree(data []byte) (*model.ConfigNode, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("empty document")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if doc.Content[0].Kind == yaml.SequenceNode {
		var children []*model.ConfigNode
		if err := dec.Decode(&children); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		return &model.ConfigNode{Name: nodekey.RootName, Children: children}, nil
	}
	var root model.ConfigNode
	if err := dec.Decode(&root); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &root, nil
}

// ValidateTreeConfig checks an authored tree:
//   - the top node is named root and has no topic
//   - a node is either a topic leaf or a named group, never both
//   - topic leaves have no children
//   - group names and topic names are unique
//
// Errors name the offending node's path.
func ValidateTreeConfig(root *model.ConfigNode) error {
	if root == nil {
		return fmt.Errorf("%w: missing root", ErrInvalidTreeConfig)
	}
	if root.TopicName != "" || root.Name != nodekey.RootName {
		return fmt.Errorf("%w: top-level node must be the group %q", ErrInvalidTreeConfig, nodekey.RootName)
	}
	v := &validator{seen: make(map[string]string)}
	return v.visit(root, nodekey.RootName)
}

type validator struct {
	seen map[string]string
}

func (v *validator) visit(node *model.ConfigNode, path string) error {
	if node.TopicName != "" {
		if len(node.Children) > 0 {
			return fmt.Errorf("%w: %s: topic %q cannot have children", ErrInvalidTreeConfig, path, node.TopicName)
		}
		if _, feature := nodekey.BaseTopic(node.TopicName); feature {
			return fmt.Errorf("%w: %s: topic %q must not carry the feature prefix", ErrInvalidTreeConfig, path, node.TopicName)
		}
		return v.claim(nodekey.TopicKey(node.TopicName, model.BaseColumn), path)
	}
	if node.Name == "" {
		return fmt.Errorf("%w: %s: node needs a name or a topicName", ErrInvalidTreeConfig, path)
	}
	if err := v.claim(nodekey.MustGenerate(nodekey.Params{Name: node.Name}), path); err != nil {
		return err
	}
	for i, child := range node.Children {
		if child == nil {
			return fmt.Errorf("%w: %s > [%d]: empty node", ErrInvalidTreeConfig, path, i)
		}
		if err := v.visit(child, path+" > "+segment(child, i)); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) claim(key, path string) error {
	if prev, dup := v.seen[key]; dup {
		return fmt.Errorf("%w: %s: duplicate %s (first at %s)", ErrInvalidTreeConfig, path, key, prev)
	}
	v.seen[key] = path
	return nil
}

func segment(node *model.ConfigNode, i int) string {
	switch {
	case node.TopicName != "":
		return node.TopicName
	case node.Name != "":
		return node.Name
	}
	return fmt.Sprintf("[%d]", i)
}
