package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	orig := [3]string{Version, Commit, BuildTime}
	t.Cleanup(func() { Version, Commit, BuildTime = orig[0], orig[1], orig[2] })

	Version, Commit, BuildTime = "1.2.0", "abc1234", "2026-01-02T03:04:05Z"

	assert.Equal(t, "1.2.0 (abc1234) built 2026-01-02T03:04:05Z", String())
	assert.Equal(t, "marketstream/1.2.0", UserAgent())
}
