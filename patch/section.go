package patch

// Marker is the first character of a line that starts a new patch, or
// names a patch in an enabled/disabled list.
const Marker = '$'

// Suffixes of the companion sections that hold enable and disable
// overrides for a patch section.
const (
	EnabledSuffix  = "_Enabled"
	DisabledSuffix = "_Disabled"
)

// Patch is a named, ordered group of entries.
type Patch struct {
	Name    string
	Entries []Entry

	// Enabled is the effective state.
	Enabled bool

	// DefaultEnabled is the state after the global source alone was read.
	// A difference from Enabled is a user override.
	DefaultEnabled bool

	// UserDefined is set for patches read from the local source. Only
	// these are written back by SaveSection.
	UserDefined bool
}

// Origin identifies which configuration source a line came from.
type Origin int

const (
	// OriginGlobal is the distributed default configuration.
	OriginGlobal Origin = iota
	// OriginLocal is the user's configuration.
	OriginLocal
)

// String implements fmt.Stringer.
func (o Origin) String() string {
	if o == OriginLocal {
		return "local"
	}
	return "global"
}

// LineSource reads the raw lines of a configuration section.
type LineSource interface {
	GetLines(section string) []string
}

// LineSink replaces the raw lines of a configuration section.
type LineSink interface {
	SetLines(section string, lines []string)
}

// SkippedLine records a line that could not be decoded during a load.
type SkippedLine struct {
	Origin  Origin
	Section string
	Line    string
	Err     error
}

// Diagnostics collects the recoverable problems found by LoadSection.
type Diagnostics struct {
	Skipped []SkippedLine
}

// LoadSection reads the patches of a section from the global source and
// then the local source. Lines that fail to decode are recorded in the
// returned Diagnostics and otherwise ignored. Either source may be nil.
func LoadSection(
	section string,
	global, local LineSource,
) ([]Patch, Diagnostics) {
	var (
		patches []Patch
		diag    Diagnostics
	)

	sources := [...]struct {
		src    LineSource
		origin Origin
	}{
		{global, OriginGlobal},
		{local, OriginLocal},
	}

	for _, s := range sources {
		if s.src != nil {
			patches = readPatches(s.src, s.origin, section, patches, &diag)
			ReadEnabledAndDisabled(s.src, section, patches)
		}

		if s.origin == OriginGlobal {
			for i := range patches {
				patches[i].DefaultEnabled = patches[i].Enabled
			}
		}
	}

	return patches, diag
}

func readPatches(
	src LineSource,
	origin Origin,
	section string,
	patches []Patch,
	diag *Diagnostics,
) []Patch {
	var current Patch

	for _, line := range src.GetLines(section) {
		if line == "" {
			continue
		}

		if line[0] == Marker {
			if current.Name != "" {
				patches = append(patches, current)
			}

			current = Patch{
				Name:        line[1:],
				UserDefined: origin == OriginLocal,
			}
			continue
		}

		entry, err := ParseEntry(line)
		if err != nil {
			diag.Skipped = append(diag.Skipped, SkippedLine{
				Origin:  origin,
				Section: section,
				Line:    line,
				Err:     err,
			})
			continue
		}

		current.Entries = append(current.Entries, entry)
	}

	if current.Name != "" && len(current.Entries) > 0 {
		patches = append(patches, current)
	}

	return patches
}

// ReadEnabledAndDisabled applies the enable and disable override lists of
// a section to every patch with a matching name. Disable overrides are
// applied last.
func ReadEnabledAndDisabled(src LineSource, section string, patches []Patch) {
	readOverrides(src, section+EnabledSuffix, true, patches)
	readOverrides(src, section+DisabledSuffix, false, patches)
}

func readOverrides(src LineSource, section string, enabled bool, patches []Patch) {
	for _, line := range src.GetLines(section) {
		if line == "" || line[0] != Marker {
			continue
		}

		name := line[1:]
		for i := range patches {
			if patches[i].Name == name {
				patches[i].Enabled = enabled
			}
		}
	}
}

// Saved is the serialized form of a patch section.
type Saved struct {
	// Enabled and Disabled hold marker lines for patches whose state
	// differs from the default.
	Enabled  []string
	Disabled []string

	// Lines holds the marker and entry lines of user-defined patches.
	Lines []string
}

// SaveSection serializes the user's view of a patch section.
func SaveSection(patches []Patch) Saved {
	var saved Saved

	for _, p := range patches {
		marker := MarkerLine(p.Name)

		if p.Enabled != p.DefaultEnabled {
			if p.Enabled {
				saved.Enabled = append(saved.Enabled, marker)
			} else {
				saved.Disabled = append(saved.Disabled, marker)
			}
		}

		if !p.UserDefined {
			continue
		}

		saved.Lines = append(saved.Lines, marker)
		for _, e := range p.Entries {
			saved.Lines = append(saved.Lines, SerializeEntry(e))
		}
	}

	return saved
}

// WriteSection stores the output of SaveSection under section and its
// enabled/disabled companion sections.
func WriteSection(sink LineSink, section string, patches []Patch) {
	saved := SaveSection(patches)

	sink.SetLines(section+EnabledSuffix, saved.Enabled)
	sink.SetLines(section+DisabledSuffix, saved.Disabled)
	sink.SetLines(section, saved.Lines)
}

// MarkerLine returns the line that names a patch.
func MarkerLine(name string) string {
	return string(Marker) + name
}
