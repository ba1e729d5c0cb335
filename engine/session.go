package engine

import (
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/go-logr/logr"
	"github.com/rs/xid"

	"github.com/sarchlab/patchsim/patch"
	"github.com/sarchlab/patchsim/speedhack"
)

// OnFrameSection is the configuration section holding frame patches.
const OnFrameSection = "OnFrame"

// Mode selects where the code-injection engines take their codes from for
// the lifetime of a loaded session.
type Mode int

const (
	// ModeIndependent loads codes from the title's configuration and
	// applies the session's own patches every frame.
	ModeIndependent Mode = iota

	// ModeSynchronized takes codes from a shared source. The session's own
	// patches are not applied.
	ModeSynchronized
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeIndependent:
		return "independent"
	case ModeSynchronized:
		return "synchronized"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Stats counts frame-hook activity since the session was created.
type Stats struct {
	// Applied is the number of frames on which the hook ran.
	Applied uint64
	// Deferred is the number of frames on which the CPU was not in a state
	// safe for patching.
	Deferred uint64
	// Writes is the number of patch entries written to memory.
	Writes uint64
}

// Session owns the patch store and speed-hint table of one loaded title.
//
// All methods must be called from the emulation thread. Reload must not be
// called while OnFrame is running.
type Session struct {
	provider ConfigProvider
	engines  []CodeEngine
	log      logr.Logger

	id         xid.ID
	mode       Mode
	patches    []patch.Patch
	speedhacks *speedhack.Table
	diag       patch.Diagnostics
	stats      Stats
}

// SessionOption is a functional option for configuring the Session.
type SessionOption func(*Session)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logr.Logger) SessionOption {
	return func(s *Session) {
		s.log = log
	}
}

// WithCodeEngines registers the code-injection engines run at the frame
// hook, in the order given.
func WithCodeEngines(engines ...CodeEngine) SessionOption {
	return func(s *Session) {
		s.engines = append(s.engines, engines...)
	}
}

// NewSession creates an empty session that loads from provider.
func NewSession(provider ConfigProvider, opts ...SessionOption) *Session {
	s := &Session{
		provider:   provider,
		log:        logr.Discard(),
		speedhacks: speedhack.NewTable(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.log = s.log.WithName("patchengine")

	return s
}

// Load reads the title's configuration and populates the patch store and
// the speed-hint table, replacing what was loaded before. Lines that do
// not decode are skipped and reported by Diagnostics. An error is only
// returned when the configuration cannot be read at all, in which case
// the session is left unchanged.
func (s *Session) Load() error {
	cfg, err := s.provider.LoadGameConfig()
	if err != nil {
		return fmt.Errorf("failed to load game config: %w", err)
	}

	s.speedhacks.Clear()
	s.id = xid.New()
	log := s.log.WithValues("session", s.id.String())

	s.patches, s.diag = patch.LoadSection(OnFrameSection, cfg.Global, cfg.Local)
	for _, skipped := range s.diag.Skipped {
		log.V(1).Info("skipped patch line",
			"origin", skipped.Origin.String(),
			"section", skipped.Section,
			"line", skipped.Line,
			"reason", skipped.Err.Error())
	}

	if s.provider.CodeSyncOverride() {
		s.mode = ModeSynchronized
		for _, e := range s.engines {
			e.SetSyncedActiveFromSharedSource()
		}
	} else {
		s.mode = ModeIndependent
		for _, e := range s.engines {
			e.LoadActiveSet(cfg.Global, cfg.Local)
		}
	}

	if cfg.Merged != nil {
		if n := s.speedhacks.Load(speedhack.Section, cfg.Merged); n > 0 {
			log.V(1).Info("skipped speed hints", "count", n)
		}
	}

	fp := s.Fingerprint()
	log.Info("patches loaded",
		"patches", len(s.patches),
		"enabled", s.enabledCount(),
		"skipped", len(s.diag.Skipped),
		"speedhacks", s.speedhacks.Len(),
		"mode", s.mode.String(),
		"fingerprint", hex.EncodeToString(fp[:8]))

	return nil
}

// Shutdown clears the patch store and the speed-hint table and resets
// every code engine.
func (s *Session) Shutdown() {
	s.patches = nil
	s.diag = patch.Diagnostics{}
	s.speedhacks.Clear()
	s.mode = ModeIndependent

	for _, e := range s.engines {
		e.Reset()
	}

	s.log.V(1).Info("patches cleared", "session", s.id.String())
}

// Reload shuts the session down and loads it again.
func (s *Session) Reload() error {
	s.Shutdown()
	return s.Load()
}

// OnFrame is the frame hook, called once per timer interrupt. It returns
// false, without touching memory, when the CPU is not in a state in which
// patching is safe; the caller should try again a few cycles later.
func (s *Session) OnFrame(cpu CPU) bool {
	if !translationEnabled(cpu) || !IsStackSane(cpu, cpu) {
		s.stats.Deferred++
		s.log.V(2).Info("need to retry later, CPU configuration is currently incorrect",
			"pc", fmt.Sprintf("%#010x", cpu.ProgramCounter()),
			"msr", fmt.Sprintf("%#010x", cpu.MSRHex()))
		return false
	}

	// Per-frame handlers run first so that user codes can overwrite what
	// the built-in ones wrote.
	for _, e := range s.engines {
		e.RunPerFrameHandler()
	}

	if s.mode != ModeSynchronized {
		s.stats.Writes += uint64(ApplyPatches(cpu, s.patches))
		for _, e := range s.engines {
			e.RunAllActive()
		}
	}

	s.stats.Applied++

	return true
}

// SpeedhackCycles returns the speed hint for an address, or 0.
func (s *Session) SpeedhackCycles(address uint32) int {
	return s.speedhacks.Cycles(address)
}

// Patches returns a copy of the patch store.
func (s *Session) Patches() []patch.Patch {
	return slices.Clone(s.patches)
}

// SetEnabled sets the state of every patch with the given name and returns
// how many patches matched.
func (s *Session) SetEnabled(name string, enabled bool) int {
	n := 0
	for i := range s.patches {
		if s.patches[i].Name == name {
			s.patches[i].Enabled = enabled
			n++
		}
	}
	return n
}

// SaveUser writes the user-defined patches and the enable overrides to
// sink.
func (s *Session) SaveUser(sink patch.LineSink) {
	patch.WriteSection(sink, OnFrameSection, s.patches)
}

// Fingerprint hashes the enabled patches of the store.
func (s *Session) Fingerprint() [32]byte {
	return patch.Fingerprint(s.patches)
}

// Mode returns the mode chosen by the last Load.
func (s *Session) Mode() Mode {
	return s.mode
}

// Diagnostics returns the problems found by the last Load.
func (s *Session) Diagnostics() patch.Diagnostics {
	return s.diag
}

// Stats returns the frame-hook counters.
func (s *Session) Stats() Stats {
	return s.stats
}

// ID returns the identifier assigned by the last Load.
func (s *Session) ID() xid.ID {
	return s.id
}

func (s *Session) enabledCount() int {
	n := 0
	for _, p := range s.patches {
		if p.Enabled {
			n++
		}
	}
	return n
}
