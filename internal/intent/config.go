package intent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Template is the structured reply attached to an intent. Body parts are
// joined with blank lines; Greeting and FollowUp pick one entry at random.
// Variants, when set, replace the whole assembly with one random string.
type Template struct {
	Greeting        []string `yaml:"greeting"`
	Body            string   `yaml:"body"`
	BodyPromoActive string   `yaml:"body_promo_active"`
	BodyPromoEnded  string   `yaml:"body_promo_ended"`
	FollowUp        []string `yaml:"follow_up"`
	Variants        []string `yaml:"variants"`
}

// Empty reports whether the template carries no renderable content.
func (t Template) Empty() bool {
	return len(t.Greeting) == 0 && t.Body == "" && t.BodyPromoActive == "" &&
		t.BodyPromoEnded == "" && len(t.FollowUp) == 0 && len(t.Variants) == 0
}

// Definition describes one intent: the phrases that trigger it and the
// template used to answer it. Action intents (those dispatched into a
// conversation flow) may omit the template.
type Definition struct {
	Keywords     []string  `yaml:"keywords"`
	CallbackKeys []string  `yaml:"callback_keys"`
	Template     *Template `yaml:"template"`
}

// Config is the validated intent table keyed by intent tag.
type Config struct {
	Intents map[string]Definition
	// order preserves YAML declaration order so rule matching is deterministic.
	order []string
}

// LoadConfig reads and validates the intent table. Every intent must declare
// at least one trigger, and a declared template must carry content.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("intent: read config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("intent: parse config: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("intent: config %s: top level must be a mapping", path)
	}

	root := doc.Content[0]
	cfg := &Config{Intents: make(map[string]Definition, len(root.Content)/2)}
	for i := 0; i+1 < len(root.Content); i += 2 {
		tag := root.Content[i].Value
		var def Definition
		if err := root.Content[i+1].Decode(&def); err != nil {
			return nil, fmt.Errorf("intent: decode intent %q: %w", tag, err)
		}
		if len(def.Keywords) == 0 && len(def.CallbackKeys) == 0 {
			return nil, fmt.Errorf("intent: intent %q declares no keywords or callback keys", tag)
		}
		if def.Template != nil && def.Template.Empty() {
			return nil, fmt.Errorf("intent: intent %q declares an empty template", tag)
		}
		if _, dup := cfg.Intents[tag]; dup {
			return nil, fmt.Errorf("intent: duplicate intent %q", tag)
		}
		cfg.Intents[tag] = def
		cfg.order = append(cfg.order, tag)
	}
	if len(cfg.Intents) == 0 {
		return nil, fmt.Errorf("intent: config %s defines no intents", path)
	}
	return cfg, nil
}

// TemplateFor returns the template for an intent tag, if it has one.
func (c *Config) TemplateFor(tag string) (*Template, bool) {
	def, ok := c.Intents[tag]
	if !ok || def.Template == nil {
		return nil, false
	}
	return def.Template, true
}

// Tags returns intent tags in declaration order.
func (c *Config) Tags() []string {
	return c.order
}
