package felconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseEnvFile(t *testing.T) {
	content := "# comment\n" +
		"FEL_BUS=3\n" +
		"FEL_DEVICE = 7 \n" +
		"\n" +
		"FEL_TIMEOUT=5s\n" +
		"FEL_VERBOSE=true\n" +
		"GARBAGE_LINE_NO_EQUALS\n"

	cfg := &Config{Bus: -1, Device: -1}
	parseEnvFile(content, cfg)

	assert.Equal(t, 3, cfg.Bus)
	assert.Equal(t, 7, cfg.Device)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, cfg.Verbose)
}

func TestParseEnvFileIgnoresMalformedValues(t *testing.T) {
	cfg := &Config{Bus: -1, Device: -1}
	parseEnvFile("FEL_BUS=not-a-number\nFEL_TIMEOUT=not-a-duration\n", cfg)

	assert.Equal(t, -1, cfg.Bus) // unchanged: malformed int is ignored
	assert.Zero(t, cfg.Timeout)
}

func TestParseEnvFileVerboseAcceptsOneOrTrue(t *testing.T) {
	cfg := &Config{}
	parseEnvFile("FEL_VERBOSE=1\n", cfg)
	assert.True(t, cfg.Verbose)

	cfg2 := &Config{}
	parseEnvFile("FEL_VERBOSE=TRUE\n", cfg2)
	assert.True(t, cfg2.Verbose)

	cfg3 := &Config{}
	parseEnvFile("FEL_VERBOSE=0\n", cfg3)
	assert.False(t, cfg3.Verbose)
}
