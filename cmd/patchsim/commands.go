package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sugawarayuuta/sonnet"

	"github.com/sarchlab/patchsim/emu"
	"github.com/sarchlab/patchsim/engine"
	"github.com/sarchlab/patchsim/ini"
	"github.com/sarchlab/patchsim/loader"
	"github.com/sarchlab/patchsim/patch"
	"github.com/sarchlab/patchsim/patchdb"
	"github.com/sarchlab/patchsim/timing"
)

// defaultFrames bounds image runs when neither -frames nor the timer
// configuration does.
const defaultFrames = 60

func gameSettings(opts *options) *ini.GameSettings {
	return &ini.GameSettings{
		DefaultDir: opts.defaultDir,
		UserDir:    opts.userDir,
		TitleID:    opts.title,
		SyncCodes:  opts.sync,
	}
}

// openProvider returns the configuration source selected by the flags and
// a function that releases it.
func openProvider(opts *options) (engine.ConfigProvider, func(), error) {
	if opts.title == "" {
		return nil, nil, fmt.Errorf("-title is required")
	}

	if opts.dbPath == "" {
		return gameSettings(opts), func() {}, nil
	}

	db, err := patchdb.Open(opts.dbPath)
	if err != nil {
		return nil, nil, err
	}

	provider := &patchdb.Provider{
		DB:        db,
		Title:     opts.title,
		SyncCodes: opts.sync,
	}

	return provider, func() { _ = db.Close() }, nil
}

func loadSession(opts *options, log logr.Logger) (*engine.Session, func(), error) {
	provider, release, err := openProvider(opts)
	if err != nil {
		return nil, nil, err
	}

	session := engine.NewSession(provider, engine.WithLogger(log))
	if err := session.Load(); err != nil {
		release()
		return nil, nil, err
	}

	return session, release, nil
}

func runImport(opts *options, stdout io.Writer, log logr.Logger) error {
	if opts.dbPath == "" || opts.title == "" {
		return fmt.Errorf("-import needs -db and -title")
	}

	settings := gameSettings(opts)

	global, err := settings.LoadDefault()
	if err != nil {
		return err
	}

	local, err := settings.LoadLocal()
	if err != nil {
		return err
	}

	db, err := patchdb.Open(opts.dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.Import(opts.title, patch.OriginGlobal, global); err != nil {
		return err
	}
	if err := db.Import(opts.title, patch.OriginLocal, local); err != nil {
		return err
	}

	log.V(1).Info("title imported", "title", opts.title, "db", opts.dbPath)
	fmt.Fprintf(stdout, "Imported %s: %d global sections, %d local sections\n",
		opts.title, len(global.Sections()), len(local.Sections()))

	return nil
}

// runCheck reports the lines that did not decode. It returns false when
// there were any.
func runCheck(opts *options, stdout io.Writer, log logr.Logger) (bool, error) {
	session, release, err := loadSession(opts, log)
	if err != nil {
		return false, err
	}
	defer release()

	diag := session.Diagnostics()
	for _, s := range diag.Skipped {
		fmt.Fprintf(stdout, "%s [%s] %q: %v\n", s.Origin, s.Section, s.Line, s.Err)
	}

	enabled := 0
	patches := session.Patches()
	for _, p := range patches {
		if p.Enabled {
			enabled++
		}
	}

	fp := session.Fingerprint()
	fmt.Fprintf(stdout, "Title: %s\n", opts.title)
	fmt.Fprintf(stdout, "Patches: %d (%d enabled)\n", len(patches), enabled)
	fmt.Fprintf(stdout, "Skipped lines: %d\n", len(diag.Skipped))
	fmt.Fprintf(stdout, "Fingerprint: %s\n", hex.EncodeToString(fp[:]))

	return len(diag.Skipped) == 0, nil
}

type dumpEntry struct {
	Address   string `json:"address"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	Comparand string `json:"comparand,omitempty"`
}

type dumpPatch struct {
	Name           string      `json:"name"`
	Enabled        bool        `json:"enabled"`
	DefaultEnabled bool        `json:"default_enabled"`
	UserDefined    bool        `json:"user_defined"`
	Entries        []dumpEntry `json:"entries"`
}

type dumpReport struct {
	Title       string      `json:"title"`
	Session     string      `json:"session"`
	Mode        string      `json:"mode"`
	Fingerprint string      `json:"fingerprint"`
	Patches     []dumpPatch `json:"patches"`
}

func newDumpReport(title string, session *engine.Session) dumpReport {
	fp := session.Fingerprint()
	report := dumpReport{
		Title:       title,
		Session:     session.ID().String(),
		Mode:        session.Mode().String(),
		Fingerprint: hex.EncodeToString(fp[:]),
		Patches:     []dumpPatch{},
	}

	for _, p := range session.Patches() {
		dp := dumpPatch{
			Name:           p.Name,
			Enabled:        p.Enabled,
			DefaultEnabled: p.DefaultEnabled,
			UserDefined:    p.UserDefined,
			Entries:        make([]dumpEntry, 0, len(p.Entries)),
		}

		for _, e := range p.Entries {
			de := dumpEntry{
				Address: fmt.Sprintf("0x%08X", e.Address),
				Type:    e.Type.String(),
				Value:   fmt.Sprintf("0x%08X", e.Value),
			}
			if e.Conditional {
				de.Comparand = fmt.Sprintf("0x%08X", e.Comparand)
			}
			dp.Entries = append(dp.Entries, de)
		}

		report.Patches = append(report.Patches, dp)
	}

	return report
}

func runDump(opts *options, stdout io.Writer, log logr.Logger) error {
	session, release, err := loadSession(opts, log)
	if err != nil {
		return err
	}
	defer release()

	data, err := sonnet.Marshal(newDumpReport(opts.title, session))
	if err != nil {
		return fmt.Errorf("failed to serialize patches: %w", err)
	}

	_, err = fmt.Fprintln(stdout, string(data))
	return err
}

func loadProgram(opts *options) (*loader.Program, error) {
	if opts.rawBase == "" {
		return loader.Load(opts.image)
	}

	base, err := patch.ParseU32(opts.rawBase)
	if err != nil {
		return nil, fmt.Errorf("invalid -raw-base %q: %w", opts.rawBase, err)
	}

	return loader.LoadRaw(opts.image, base)
}

func timerConfig(opts *options) (*timing.Config, error) {
	config := timing.DefaultConfig()
	if opts.timingPath != "" {
		var err error
		config, err = timing.LoadConfig(opts.timingPath)
		if err != nil {
			return nil, err
		}
	}

	if opts.frames == 0 {
		return nil, fmt.Errorf("-frames must be > 0")
	}
	if opts.frames > 0 {
		config.Frames = uint64(opts.frames)
	}
	if config.Frames == 0 {
		config.Frames = defaultFrames
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timer configuration: %w", err)
	}

	return config, nil
}

func newMachine(opts *options, prog *loader.Program) (*emu.Machine, error) {
	sp := prog.InitialSP
	if opts.sp != "" {
		var err error
		sp, err = patch.ParseU32(opts.sp)
		if err != nil {
			return nil, fmt.Errorf("invalid -sp %q: %w", opts.sp, err)
		}
	}

	machine := emu.NewMachine(
		emu.WithStackPointer(sp),
		emu.WithProgramCounter(prog.EntryPoint),
	)

	if err := loader.Install(prog, machine); err != nil {
		return nil, err
	}

	return machine, nil
}

// runImage installs the image, then raises the frame interrupt on a
// virtual timer and runs the frame hook against the machine.
func runImage(opts *options, stdout io.Writer, log logr.Logger) error {
	config, err := timerConfig(opts)
	if err != nil {
		return err
	}

	prog, err := loadProgram(opts)
	if err != nil {
		return err
	}

	machine, err := newMachine(opts, prog)
	if err != nil {
		return err
	}

	session, release, err := loadSession(opts, log)
	if err != nil {
		return err
	}
	defer release()

	simEngine := sim.NewSerialEngine()
	timer := timing.NewFrameTimer(simEngine, *config, func() bool {
		return session.OnFrame(machine)
	}, timing.WithLogger(log))

	timer.Start()
	if err := simEngine.Run(); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	stats := session.Stats()
	timerStats := timer.Stats()

	fmt.Fprintf(stdout, "Image: %s\n", opts.image)
	fmt.Fprintf(stdout, "Session: %s (%s)\n", session.ID(), session.Mode())
	fmt.Fprintf(stdout, "Frames: %d applied, %d deferred\n", stats.Applied, stats.Deferred)
	fmt.Fprintf(stdout, "Patch writes: %d\n", stats.Writes)
	fmt.Fprintf(stdout, "Timer retries: %d\n", timerStats.Retries)
	fmt.Fprintf(stdout, "Cycles: %d\n", timerStats.Cycles)
	fmt.Fprintf(stdout, "Simulated time: %.6fs\n", float64(simEngine.CurrentTime()))

	if opts.out != "" {
		if err := os.WriteFile(opts.out, machine.Memory().Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write RAM: %w", err)
		}
	}

	return nil
}
