package strategy

import "strings"

// PromptStrategy is a canned analysis prompt the user can pick instead of typing one
type PromptStrategy interface {
	Name() string
	Label() string
	Prompt() string
}

type presetStrategy struct {
	name   string
	label  string
	prompt string
}

func (s presetStrategy) Name() string   { return s.name }
func (s presetStrategy) Label() string  { return s.label }
func (s presetStrategy) Prompt() string { return s.prompt }

// NewPromptStrategy creates a custom preset
func NewPromptStrategy(name, label, prompt string) PromptStrategy {
	return presetStrategy{name: name, label: label, prompt: prompt}
}

// NewTechnicalStrategy asks for a technical breakdown of the image
func NewTechnicalStrategy() PromptStrategy {
	return NewPromptStrategy("technical", "TECHNICAL ANALYSIS",
		"Provide detailed technical breakdown including objects, colors, composition, and metadata patterns.")
}

// NewEmotionalStrategy asks for the mood of the image
func NewEmotionalStrategy() PromptStrategy {
	return NewPromptStrategy("emotional", "EMOTIONAL PROFILE",
		"Analyze emotional resonance. Describe mood, atmosphere, and psychological impact with confidence percentages.")
}

// NewArtisticStrategy asks for an artistic critique of the image
func NewArtisticStrategy() PromptStrategy {
	return NewPromptStrategy("artistic", "ARTISTIC DECONSTRUCTION",
		"Deconstruct artistic elements including composition theory, color harmonics, and creative execution quality.")
}

// Registry keeps strategies in registration order, looked up by case-insensitive name
type Registry struct {
	order      []string
	strategies map[string]PromptStrategy
}

// NewRegistry creates a registry. Later strategies replace earlier ones with the same name.
func NewRegistry(strategies ...PromptStrategy) *Registry {
	r := &Registry{strategies: make(map[string]PromptStrategy)}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// DefaultRegistry holds the built-in quick scan presets
func DefaultRegistry() *Registry {
	return NewRegistry(NewTechnicalStrategy(), NewEmotionalStrategy(), NewArtisticStrategy())
}

// Register adds or replaces a strategy
func (r *Registry) Register(s PromptStrategy) {
	key := normalize(s.Name())
	if _, exists := r.strategies[key]; !exists {
		r.order = append(r.order, key)
	}
	r.strategies[key] = s
}

// Lookup finds a strategy by name
func (r *Registry) Lookup(name string) (PromptStrategy, bool) {
	s, ok := r.strategies[normalize(name)]
	return s, ok
}

// List returns the strategies in registration order
func (r *Registry) List() []PromptStrategy {
	out := make([]PromptStrategy, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.strategies[key])
	}
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
