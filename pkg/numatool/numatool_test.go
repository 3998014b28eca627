package numatool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
)

const desc = `
sockets:
  - {id: 0, kti: [{peer: 1}]}
  - {id: 1, kti: [{peer: 0}]}
memoryMap:
  - {socket: 0, type: 1lm-ddr, base: 0x0, size: 0x80000000, imcBitmap: 0x1}
  - {socket: 1, type: 1lm-ddr, base: 0x80000000, size: 0x80000000, imcBitmap: 0x1}
threads:
  - {socket: 0, apicId: 0x0}
  - {socket: 1, apicId: 0x40}
`

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "platform.yaml")
	require.NoError(t, os.WriteFile(yml, []byte(desc), 0644))

	built, err := Load(yml)
	require.NoError(t, err)
	want := []string{acpi.SigSRAT, acpi.SigSLIT, acpi.SigHMAT, acpi.SigMSCT}
	assert.Equal(t, want, built.Signatures())

	bin := filepath.Join(dir, "tables.bin")
	out := filepath.Join(dir, "out")
	require.NoError(t, Run(yml, "validate", "bundle", bin, "extract", out))

	for _, path := range []string{bin, out} {
		s, err := Load(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, s.Signatures(), path)
		for i := range s.Tables {
			assert.Equal(t, built.Tables[i].Buf(), s.Tables[i].Buf())
		}
		require.NoError(t, Run(path, "validate"))
	}
}

func TestRunErrors(t *testing.T) {
	assert.Error(t, Run())
	assert.Error(t, Run(filepath.Join(t.TempDir(), "missing.yaml")))

	junk := filepath.Join(t.TempDir(), "junk.bin")
	require.NoError(t, os.WriteFile(junk, []byte("not a bundle"), 0644))
	assert.Error(t, Run(junk, "json"))
	assert.Error(t, Run(junk, "nosuchverb"))
}
