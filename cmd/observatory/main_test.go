package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"news", "tech"}, splitList(" news, ,tech,"))
	assert.Empty(t, splitList(""))
}

func TestLoadHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,handle\nRIA,@rian_ru\nTASS,tass_agency\n"), 0o600))

	handles, err := loadHandles("meduzalive", path)
	require.NoError(t, err)
	assert.Equal(t, []string{"meduzalive", "@rian_ru", "tass_agency"}, handles)
}

func TestLoadHandles_Errors(t *testing.T) {
	_, err := loadHandles("", "")
	require.ErrorIs(t, err, errUsage)

	_, err = loadHandles("", filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestRunExport_Validation(t *testing.T) {
	tests := []struct {
		name string
		f    flags
	}{
		{name: "unknown network", f: flags{network: "mentions", seedList: "news", out: "g.graphml"}},
		{name: "no seed list", f: flags{network: "forward", out: "g.graphml"}},
		{name: "no sink", f: flags{network: "domain", seedList: "news"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runExport(t.Context(), nil, tt.f)
			require.ErrorIs(t, err, errUsage)
		})
	}
}

func TestRunMode_Unknown(t *testing.T) {
	require.ErrorIs(t, runMode(t.Context(), nil, flags{mode: "crawl"}), errUsage)
	require.ErrorIs(t, runMode(t.Context(), nil, flags{mode: "messages"}), errUsage)
}
