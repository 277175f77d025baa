package models

type SourceID string

const (
	SourceNewsAPI  SourceID = "newsapi"
	SourceGuardian SourceID = "guardian"
	SourceNYT      SourceID = "nyt"
)

// SourceDescriptor describes one upstream provider and whether the user has it
// switched on.
type SourceDescriptor struct {
	ID      SourceID `json:"id"`
	Name    string   `json:"name"`
	Enabled bool     `json:"enabled"`
}

// DefaultSources returns the process-start source list, all enabled.
func DefaultSources() []SourceDescriptor {
	return []SourceDescriptor{
		{ID: SourceNewsAPI, Name: "NewsAPI", Enabled: true},
		{ID: SourceGuardian, Name: "The Guardian", Enabled: true},
		{ID: SourceNYT, Name: "The New York Times", Enabled: true},
	}
}

// EnabledSources filters descriptors down to the enabled ones, keeping order.
func EnabledSources(sources []SourceDescriptor) []SourceDescriptor {
	enabled := make([]SourceDescriptor, 0, len(sources))
	for _, s := range sources {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	return enabled
}
