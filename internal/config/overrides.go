// ABOUTME: Command-line overrides applied on top of loaded settings
// ABOUTME: Zero-valued override fields leave the loaded value untouched

package config

// Overrides carries values set explicitly on the command line.
type Overrides struct {
	Provider      string
	Model         string
	BaseURL       string
	Stream        *bool
	MaxIterations int
	LogLevel      string
}

// Apply overlays o onto s in place. CLI values always win.
func (o Overrides) Apply(s *Settings) {
	setString(&s.Provider, o.Provider)
	setString(&s.Model, o.Model)
	setString(&s.BaseURL, o.BaseURL)
	setString(&s.LogLevel, o.LogLevel)
	setInt(&s.MaxIterations, o.MaxIterations)
	if o.Stream != nil {
		v := *o.Stream
		s.Stream = &v
	}
}
