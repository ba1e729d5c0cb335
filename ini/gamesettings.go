package ini

import (
	"fmt"
	"path/filepath"

	"github.com/sarchlab/patchsim/engine"
)

// GameSettings locates the configuration files of one title. Files are
// named after the title ID. For six-character IDs the three-character
// region-free prefix is read first, so that "GALE01" picks up "GAL.ini"
// and then "GALE01.ini".
type GameSettings struct {
	// DefaultDir holds the distributed configuration.
	DefaultDir string
	// UserDir holds the user's configuration.
	UserDir string
	// TitleID names the title.
	TitleID string
	// SyncCodes makes sessions take codes from a synchronized source.
	SyncCodes bool
}

// filenames returns the files of a title in load order.
func (g *GameSettings) filenames() []string {
	if len(g.TitleID) == 6 {
		return []string{g.TitleID[:3] + ".ini", g.TitleID + ".ini"}
	}
	return []string{g.TitleID + ".ini"}
}

// LocalPath returns the path of the user's file for the title.
func (g *GameSettings) LocalPath() string {
	return filepath.Join(g.UserDir, g.TitleID+".ini")
}

// LoadDefault reads the distributed configuration of the title.
func (g *GameSettings) LoadDefault() (*File, error) {
	return loadLayered(g.DefaultDir, g.filenames())
}

// LoadLocal reads the user's configuration of the title.
func (g *GameSettings) LoadLocal() (*File, error) {
	return loadLayered(g.UserDir, g.filenames())
}

// SaveLocal writes the user's configuration of the title.
func (g *GameSettings) SaveLocal(f *File) error {
	return f.Save(g.LocalPath())
}

// LoadGameConfig implements engine.ConfigProvider.
func (g *GameSettings) LoadGameConfig() (engine.GameConfig, error) {
	if g.TitleID == "" {
		return engine.GameConfig{}, fmt.Errorf("no title ID")
	}

	global, err := g.LoadDefault()
	if err != nil {
		return engine.GameConfig{}, err
	}

	local, err := g.LoadLocal()
	if err != nil {
		return engine.GameConfig{}, err
	}

	merged := global.Clone()
	merged.Merge(local)

	return engine.GameConfig{
		Merged: merged,
		Global: global,
		Local:  local,
	}, nil
}

// CodeSyncOverride implements engine.ConfigProvider.
func (g *GameSettings) CodeSyncOverride() bool {
	return g.SyncCodes
}

func loadLayered(dir string, names []string) (*File, error) {
	f := New()
	if dir == "" {
		return f, nil
	}

	for _, name := range names {
		layer, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		f.Merge(layer)
	}

	return f, nil
}
