// Package nodekey encodes and decodes the string keys that identify topic
// tree nodes in persisted panel state.
//
// Grammar:
//
//	t:<topic>                 topic node
//	name:<group>              group node (base column)
//	name_2:<group>            group node (feature column)
//	ns:<topic>:<namespace>    namespace of a topic
//
// Feature-column topic and namespace keys carry FeaturePrefix in front of the
// topic name. Topic names may not contain ':'; namespaces may.
package nodekey

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vanderheijden86/topictree/pkg/model"
)

// FeaturePrefix is prepended to topic names served by the feature source.
// Only a prefix followed by '/' marks a feature topic, so /source_2_camera
// is a base topic. Topic names are expected to start with '/'.
const FeaturePrefix = "/source_2"

// RootName is the configuration name of the tree root; RootKey its key.
const (
	RootName = "root"
	RootKey  = "name:" + RootName
)

const (
	topicPrefix        = "t:"
	namePrefix         = "name:"
	featureNamePrefix  = "name_2:"
	namespacePrefix    = "ns:"
	featureTopicPrefix = topicPrefix + FeaturePrefix
	featureNsPrefix    = namespacePrefix + FeaturePrefix
	featureTopicMarker = FeaturePrefix + "/"
)

// ErrInvalidKeyInput is returned when a key cannot be built from the given
// parameters.
var ErrInvalidKeyInput = errors.New("invalid node key input")

// Kind classifies a decoded key.
type Kind int

const (
	KindGroup Kind = iota
	KindTopic
	KindNamespace
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindTopic:
		return "topic"
	case KindNamespace:
		return "namespace"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Params describes the node a key is generated for.
type Params struct {
	TopicName string
	Name      string
	Namespace string
	Feature   bool
}

// Key is a decoded node key. TopicName is always the base (unprefixed) name.
type Key struct {
	Kind      Kind
	TopicName string
	Name      string
	Namespace string
	Feature   bool
}

// String re-encodes the key.
func (k Key) String() string {
	return MustGenerate(Params{TopicName: k.TopicName, Name: k.Name, Namespace: k.Namespace, Feature: k.Feature})
}

// Generate builds the key for p. Namespace wins over topic, topic over name.
func Generate(p Params) (string, error) {
	if p.Namespace != "" {
		if p.TopicName == "" {
			return "", fmt.Errorf("%w: namespace %q without topic", ErrInvalidKeyInput, p.Namespace)
		}
		return namespacePrefix + prefixTopic(p.TopicName, p.Feature) + ":" + p.Namespace, nil
	}
	if p.TopicName != "" {
		return topicPrefix + prefixTopic(p.TopicName, p.Feature), nil
	}
	if p.Name != "" {
		if p.Feature {
			return featureNamePrefix + p.Name, nil
		}
		return namePrefix + p.Name, nil
	}
	return "", fmt.Errorf("%w: neither topic nor name given", ErrInvalidKeyInput)
}

// MustGenerate is like Generate but panics on invalid input. Use it only where
// the parameters have already been validated.
func MustGenerate(p Params) string {
	key, err := Generate(p)
	if err != nil {
		panic(err)
	}
	return key
}

// TopicKey returns the key of a topic node in the given column.
func TopicKey(topic string, column int) string {
	return MustGenerate(Params{TopicName: topic, Feature: column == model.FeatureColumn})
}

// NamespaceKey returns the key of a topic's namespace in the given column.
func NamespaceKey(topic, namespace string, column int) string {
	return MustGenerate(Params{TopicName: topic, Namespace: namespace, Feature: column == model.FeatureColumn})
}

// NamespacePrefix returns the prefix shared by every namespace key of a topic
// in the given column.
func NamespacePrefix(topic string, column int) string {
	return namespacePrefix + ColumnTopic(topic, column) + ":"
}

// BaseKey strips the feature encoding from key. Base keys are returned as is.
func BaseKey(key string) string {
	switch {
	case strings.HasPrefix(key, featureNamePrefix):
		return namePrefix + key[len(featureNamePrefix):]
	case strings.HasPrefix(key, featureTopicPrefix+"/"):
		return topicPrefix + key[len(featureTopicPrefix):]
	case strings.HasPrefix(key, featureNsPrefix+"/"):
		return namespacePrefix + key[len(featureNsPrefix):]
	}
	return key
}

// FeatureKey is the inverse of BaseKey for base keys. Keys that are already
// feature keys are returned unchanged.
func FeatureKey(key string) string {
	if IsFeature(key) {
		return key
	}
	switch {
	case strings.HasPrefix(key, namePrefix):
		return featureNamePrefix + key[len(namePrefix):]
	case strings.HasPrefix(key, topicPrefix):
		return featureTopicPrefix + key[len(topicPrefix):]
	case strings.HasPrefix(key, namespacePrefix):
		return featureNsPrefix + key[len(namespacePrefix):]
	}
	return key
}

// IsFeature reports whether key addresses the feature column.
func IsFeature(key string) bool {
	return strings.HasPrefix(key, featureNamePrefix) ||
		strings.HasPrefix(key, featureTopicPrefix+"/") ||
		strings.HasPrefix(key, featureNsPrefix+"/")
}

// ColumnKey converts key to the form used by column.
func ColumnKey(key string, column int) string {
	if column == model.FeatureColumn {
		return FeatureKey(key)
	}
	return BaseKey(key)
}

// ColumnTopic returns the topic name as the given column's source reports it.
func ColumnTopic(topic string, column int) string {
	return prefixTopic(topic, column == model.FeatureColumn)
}

// BaseTopic strips FeaturePrefix from a source topic name.
func BaseTopic(topic string) (string, bool) {
	if strings.HasPrefix(topic, featureTopicMarker) {
		return topic[len(FeaturePrefix):], true
	}
	return topic, false
}

// Parse decodes key. Namespace keys split at the first ':' after the topic.
func Parse(key string) (Key, error) {
	switch {
	case strings.HasPrefix(key, featureNamePrefix):
		name := key[len(featureNamePrefix):]
		if name == "" {
			return Key{}, fmt.Errorf("%w: empty group name in %q", ErrInvalidKeyInput, key)
		}
		return Key{Kind: KindGroup, Name: name, Feature: true}, nil
	case strings.HasPrefix(key, namePrefix):
		name := key[len(namePrefix):]
		if name == "" {
			return Key{}, fmt.Errorf("%w: empty group name in %q", ErrInvalidKeyInput, key)
		}
		return Key{Kind: KindGroup, Name: name}, nil
	case strings.HasPrefix(key, topicPrefix):
		topic, feature := BaseTopic(key[len(topicPrefix):])
		if topic == "" {
			return Key{}, fmt.Errorf("%w: empty topic in %q", ErrInvalidKeyInput, key)
		}
		return Key{Kind: KindTopic, TopicName: topic, Feature: feature}, nil
	case strings.HasPrefix(key, namespacePrefix):
		rest := key[len(namespacePrefix):]
		idx := strings.IndexByte(rest, ':')
		if idx <= 0 || idx == len(rest)-1 {
			return Key{}, fmt.Errorf("%w: malformed namespace key %q", ErrInvalidKeyInput, key)
		}
		topic, feature := BaseTopic(rest[:idx])
		if topic == "" {
			return Key{}, fmt.Errorf("%w: empty topic in %q", ErrInvalidKeyInput, key)
		}
		return Key{Kind: KindNamespace, TopicName: topic, Namespace: rest[idx+1:], Feature: feature}, nil
	}
	return Key{}, fmt.Errorf("%w: unknown key prefix in %q", ErrInvalidKeyInput, key)
}

// IsRoot reports whether key is the root group key in either column.
func IsRoot(key string) bool {
	return BaseKey(key) == RootKey
}

func prefixTopic(topic string, feature bool) string {
	if feature {
		return FeaturePrefix + topic
	}
	return topic
}
